package pixiv

import (
	"encoding/json"
	"fmt"

	"github.com/pixelfall/tagrelay/internal/relay"
)

// Generation selects which API surface the client speaks.
type Generation string

// Supported API generations.
const (
	GenerationPublic Generation = "public"
	GenerationApp    Generation = "app"
)

// FallbackVariant returns the variant label the generation uses below large.
func (g Generation) FallbackVariant() string {
	if g == GenerationApp {
		return relay.VariantMedium
	}
	return relay.VariantPx480mw
}

// publicSearchResponse is the public generation search envelope. A missing
// or empty response array means the service is out of pages.
type publicSearchResponse struct {
	Status   string       `json:"status"`
	Response []publicWork `json:"response"`
}

// publicWork is one work as returned by the public search API.
type publicWork struct {
	ID        json.Number       `json:"id"`
	Tags      []string          `json:"tags"`
	AgeLimit  string            `json:"age_limit"`
	IsManga   bool              `json:"is_manga"`
	ImageURLs map[string]string `json:"image_urls"`
}

func (w publicWork) toCandidate() relay.Candidate {
	return relay.Candidate{
		ID:          w.ID.String(),
		Tags:        append([]string(nil), w.Tags...),
		Restriction: publicRestriction(w.AgeLimit),
		IsManga:     w.IsManga,
		Variants:    copyVariants(w.ImageURLs),
	}
}

func publicRestriction(ageLimit string) relay.Restriction {
	switch ageLimit {
	case "r18":
		return relay.RestrictionR18
	case "r18-g":
		return relay.RestrictionR18G
	default:
		return relay.RestrictionNone
	}
}

// appSearchResponse is the app generation search envelope.
type appSearchResponse struct {
	Illusts []appIllust `json:"illusts"`
	NextURL string      `json:"next_url"`
}

// appDetailResponse wraps a single work detail lookup.
type appDetailResponse struct {
	Illust appIllust `json:"illust"`
}

// appIllust is one work as returned by the app API. XRestrict is only
// trustworthy on detail responses; search rows may omit it.
type appIllust struct {
	ID        json.Number       `json:"id"`
	Type      string            `json:"type"`
	Tags      []appTag          `json:"tags"`
	XRestrict int               `json:"x_restrict"`
	ImageURLs map[string]string `json:"image_urls"`
}

type appTag struct {
	Name string `json:"name"`
}

func (i appIllust) toCandidate() relay.Candidate {
	tags := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		tags = append(tags, t.Name)
	}
	return relay.Candidate{
		ID:          i.ID.String(),
		Tags:        tags,
		Restriction: appRestriction(i.XRestrict),
		IsManga:     i.Type == "manga",
		Variants:    copyVariants(i.ImageURLs),
	}
}

func appRestriction(xRestrict int) relay.Restriction {
	switch xRestrict {
	case 1:
		return relay.RestrictionR18
	case 2:
		return relay.RestrictionR18G
	default:
		return relay.RestrictionNone
	}
}

// authResponse is the OAuth token envelope shared by both grant types.
type authResponse struct {
	Response struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	} `json:"response"`
	HasError bool                       `json:"has_error"`
	Errors   map[string]json.RawMessage `json:"errors"`
}

func copyVariants(urls map[string]string) map[string]string {
	out := make(map[string]string, len(urls))
	for name, u := range urls {
		out[name] = u
	}
	return out
}

// apiError reports a non-success API status with enough context to debug.
type apiError struct {
	Endpoint   string
	StatusCode int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("pixiv %s returned status %d", e.Endpoint, e.StatusCode)
}
