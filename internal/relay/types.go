// Package relay defines core types shared across the pipeline stages.
package relay

// Restriction represents the age-restriction level attached to a candidate.
type Restriction string

// Restriction levels normalized across API generations.
const (
	RestrictionNone Restriction = "none"
	RestrictionR18  Restriction = "r18"
	RestrictionR18G Restriction = "r18g"
)

// Variant names. Every eligible candidate must expose VariantLarge plus the
// policy's fallback variant. The fallback label differs between API
// generations: the public API calls it px_480mw, the app API medium.
const (
	VariantLarge   = "large"
	VariantPx480mw = "px_480mw"
	VariantMedium  = "medium"
)

// SearchRequest describes one themed search: a sub-tag paired with the
// messages to post when an image is found or missing. Instances come from
// configuration and are immutable.
type SearchRequest struct {
	SubTag         string
	FoundMessage   string
	MissingMessage string
}

// Candidate is one normalized search result. It is transient: produced by a
// single search (plus optional detail lookup) and never persisted.
type Candidate struct {
	ID          string
	Tags        []string
	Restriction Restriction
	IsManga     bool
	// Variants maps a variant name to its download URL.
	Variants map[string]string
}

// HasTag reports whether the candidate carries the given tag.
func (c Candidate) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// LargeURL returns the large-variant URL, the stable dedup key. Empty when
// the candidate lacks a large variant.
func (c Candidate) LargeURL() string {
	return c.Variants[VariantLarge]
}

// FilterPolicy captures the content rules derived from configuration.
// MainTag must co-occur with the sub-tag on every accepted candidate; this is
// how fanart for an unrelated subject sharing a sub-tag name is kept out.
type FilterPolicy struct {
	MainTag         string
	FallbackVariant string
	AllowManga      bool
	AllowR18        bool
	AllowR18G       bool
}
