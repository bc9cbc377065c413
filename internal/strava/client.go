// Package strava implements the HTTP client for Strava's OAuth and
// activity listing endpoints.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOAuthBaseURL = "https://www.strava.com/oauth"
	defaultAPIBaseURL   = "https://www.strava.com/api/v3"

	// DefaultScope is requested when linking a new account.
	DefaultScope = "read,activity:read_all"

	// maxErrorBodyBytes bounds how much of an error response is kept for diagnostics.
	maxErrorBodyBytes = 200
)

// APIError is returned for non-2xx provider responses. Body is truncated.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava: status %d: %s", e.Status, e.Body)
}

// TokenResponse is the provider's token endpoint payload. Athlete is only
// populated on the authorization-code exchange.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Athlete      struct {
		ID json.Number `json:"id"`
	} `json:"athlete"`
}

// ClientConfig holds the application credentials and optional overrides.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	OAuthBaseURL string
	APIBaseURL   string
	HTTPClient   *http.Client
}

// Client talks to Strava. It is safe for concurrent use.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient constructs a Client, applying defaults for unset overrides.
func NewClient(cfg ClientConfig) *Client {
	if cfg.OAuthBaseURL == "" {
		cfg.OAuthBaseURL = defaultOAuthBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Configured reports whether application credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != "" && c.cfg.RedirectURI != ""
}

// AuthorizeURL builds the OAuth authorize URL. The state round-trips the
// caller's user identifier through the provider redirect.
func (c *Client) AuthorizeURL(state, scope string) string {
	if scope == "" {
		scope = DefaultScope
	}
	params := url.Values{}
	params.Set("client_id", c.cfg.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("scope", scope)
	params.Set("approval_prompt", "auto")
	if state != "" {
		params.Set("state", state)
	}
	return c.cfg.OAuthBaseURL + "/authorize?" + params.Encode()
}

// ExchangeCode trades an authorization code for a token set.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	return c.postToken(ctx, form)
}

// RefreshToken exchanges a refresh token for a fresh token set.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.postToken(ctx, form)
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthBaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("strava: decode token response: %w", err)
	}
	if token.ExpiresAt == 0 {
		token.ExpiresAt = time.Now().Add(time.Hour).Unix()
	}
	return &token, nil
}

// ListActivities fetches one page of the athlete's activity feed.
// Pages are 1-indexed; after is an inclusive epoch-second lower bound,
// ignored when zero.
func (c *Client) ListActivities(ctx context.Context, accessToken string, page, perPage int, after int64) ([]RawActivity, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	if after > 0 {
		params.Set("after", strconv.FormatInt(after, 10))
	}

	endpoint := c.cfg.APIBaseURL + "/athlete/activities?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava: activity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeActivityPage(body)
}

// PageOptions bounds a paged feed pull.
type PageOptions struct {
	After    int64 // epoch seconds, 0 disables the filter
	PerPage  int
	MaxPages int
}

// ForEachPage pulls sequential feed pages and hands each batch to fn.
// It stops after an empty batch, a partial batch, or MaxPages pages, and
// returns the number of pages fetched. Pages already handed to fn count
// even when a later page fails, so callers keep best-effort progress.
func (c *Client) ForEachPage(ctx context.Context, accessToken string, opts PageOptions, fn func([]RawActivity) error) (int, error) {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	pages := 0
	for page := 1; page <= maxPages; page++ {
		batch, err := c.ListActivities(ctx, accessToken, page, perPage, opts.After)
		if err != nil {
			return pages, err
		}
		pages++

		if len(batch) == 0 {
			break
		}
		if err := fn(batch); err != nil {
			return pages, err
		}
		if len(batch) < perPage {
			break
		}
	}
	return pages, nil
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
