package pixiv

import (
	"context"
	"crypto/md5" //nolint:gosec // the auth API requires an MD5 client hash
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/relay"
)

// OAuth client credentials and hash salt published with the official mobile
// apps; required by the token endpoint regardless of account.
const (
	oauthClientID     = "MOBrBDS8blbauoSck0ZfDbtuzpyT"
	oauthClientSecret = "lsACyCD94FhDUtGTXi3QzcFE2uU1hqtDaKeqrdwj"
	oauthHashSalt     = "28c1fdd170a5204386cb1313c7077b34f83e4aaf4aa829ce78c231e05b0bae2c"
)

const (
	defaultAuthURL       = "https://oauth.secure.pixiv.net/auth/token"
	defaultPublicBaseURL = "https://public-api.secure.pixiv.net"
	defaultAppBaseURL    = "https://app-api.pixiv.net"
	defaultPerPage       = 30
	defaultHTTPTimeout   = 30 * time.Second
)

// ClientConfig controls authentication and API endpoints.
type ClientConfig struct {
	Generation Generation
	// Username/Password drive the password grant; RefreshTokenFile points
	// at a file holding a refresh token for the refresh grant. Exactly one
	// of the two mechanisms must be configured.
	Username         string
	Password         string
	RefreshTokenFile string
	// AuthURL and BaseURL are injectable for tests.
	AuthURL string
	BaseURL string
	PerPage int
	Timeout time.Duration
}

// Client speaks the Pixiv search and detail APIs. It implements
// relay.Searcher and, for the app generation, relay's Detailer.
type Client struct {
	cfg         ClientConfig
	httpClient  *http.Client
	accessToken string
	logger      *zap.Logger
}

// NewClient builds an unauthenticated Client; call Login before searching.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Generation == "" {
		cfg.Generation = GenerationPublic
	}
	if cfg.Generation != GenerationPublic && cfg.Generation != GenerationApp {
		return nil, fmt.Errorf("unknown api generation %q", cfg.Generation)
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.BaseURL == "" {
		if cfg.Generation == GenerationApp {
			cfg.BaseURL = defaultAppBaseURL
		} else {
			cfg.BaseURL = defaultPublicBaseURL
		}
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hasPassword := cfg.Username != "" && cfg.Password != ""
	if !hasPassword && cfg.RefreshTokenFile == "" {
		return nil, fmt.Errorf("either username/password or a refresh token file is required")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Login obtains an access token. Failure here is fatal for the run; nothing
// can be searched or downloaded without a token.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"client_id":      {oauthClientID},
		"client_secret":  {oauthClientSecret},
		"get_secure_url": {"1"},
	}
	if c.cfg.RefreshTokenFile != "" {
		token, err := os.ReadFile(c.cfg.RefreshTokenFile)
		if err != nil {
			return fmt.Errorf("read refresh token file: %w", err)
		}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", strings.TrimSpace(string(token)))
	} else {
		form.Set("grant_type", "password")
		form.Set("username", c.cfg.Username)
		form.Set("password", c.cfg.Password)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	clientTime := time.Now().UTC().Format(time.RFC3339)
	req.Header.Set("X-Client-Time", clientTime)
	req.Header.Set("X-Client-Hash", clientHash(clientTime))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &apiError{Endpoint: "auth/token", StatusCode: resp.StatusCode}
	}
	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	if parsed.HasError || parsed.Response.AccessToken == "" {
		return fmt.Errorf("authentication rejected by token endpoint")
	}
	c.accessToken = parsed.Response.AccessToken
	c.logger.Debug("authenticated", zap.Int("expires_in", parsed.Response.ExpiresIn))
	return nil
}

// SearchWorks queries one page of exact-tag matches and normalizes the rows.
// An empty result slice signals the end of pagination.
func (c *Client) SearchWorks(ctx context.Context, tag string, page int) ([]relay.Candidate, error) {
	if c.cfg.Generation == GenerationApp {
		return c.searchApp(ctx, tag, page)
	}
	return c.searchPublic(ctx, tag, page)
}

func (c *Client) searchPublic(ctx context.Context, tag string, page int) ([]relay.Candidate, error) {
	query := url.Values{
		"q":           {tag},
		"page":        {strconv.Itoa(page)},
		"per_page":    {strconv.Itoa(c.cfg.PerPage)},
		"mode":        {"exact_tag"},
		"image_sizes": {"px_480mw,large"},
	}
	endpoint := c.cfg.BaseURL + "/v1/search/works.json?" + query.Encode()
	var parsed publicSearchResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}
	candidates := make([]relay.Candidate, 0, len(parsed.Response))
	for _, work := range parsed.Response {
		candidates = append(candidates, work.toCandidate())
	}
	return candidates, nil
}

func (c *Client) searchApp(ctx context.Context, tag string, page int) ([]relay.Candidate, error) {
	query := url.Values{
		"word":          {tag},
		"search_target": {"exact_match_for_tags"},
		"offset":        {strconv.Itoa((page - 1) * c.cfg.PerPage)},
	}
	endpoint := c.cfg.BaseURL + "/v1/search/illust?" + query.Encode()
	var parsed appSearchResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}
	candidates := make([]relay.Candidate, 0, len(parsed.Illusts))
	for _, illust := range parsed.Illusts {
		candidates = append(candidates, illust.toCandidate())
	}
	return candidates, nil
}

// WorkDetail fetches the full record for one work. The app generation's
// search rows omit the restriction level, so the selector resolves each
// candidate through this lookup before filtering.
func (c *Client) WorkDetail(ctx context.Context, id string) (relay.Candidate, error) {
	query := url.Values{"illust_id": {id}}
	endpoint := c.cfg.BaseURL + "/v1/illust/detail?" + query.Encode()
	var parsed appDetailResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return relay.Candidate{}, err
	}
	if parsed.Illust.ID.String() == "" || parsed.Illust.ID.String() == "0" {
		return relay.Candidate{}, fmt.Errorf("work %s has no detail record", id)
	}
	return parsed.Illust.toCandidate(), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &apiError{Endpoint: req.URL.Path, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func clientHash(clientTime string) string {
	sum := md5.Sum([]byte(clientTime + oauthHashSalt)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
