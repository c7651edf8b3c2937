// CLAUDE:SUMMARY HTTP client for the ad-library API: keyword search, platform IDs, per-page ads.
// Package adsource implements the client for the ad-library search API.
//
// The API is credit-metered: one credit buys a page of up to 100 ads, and the
// client surfaces credit exhaustion and rate limiting as distinguishable
// errors so the pipeline can fail with a structured result instead of
// retrying into a wall.
package adsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adveille/adveille/safeurl"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.scrapecreators.com/v1/meta/adLibrary"

// ErrMissingAPIKey is returned before any network call when no key is set.
var ErrMissingAPIKey = errors.New("adsource: API key is not configured")

// ErrCreditExhausted indicates the API account has no credits left.
var ErrCreditExhausted = errors.New("adsource: credit exhausted")

// ErrRateLimited indicates the API rejected the call with HTTP 429.
var ErrRateLimited = errors.New("adsource: rate limited")

// UpstreamError is a non-2xx response from the API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("adsource: http %d: %s", e.Status, e.Body)
}

// Config configures the Client.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"-"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	MaxRetries int           `yaml:"max_retries"` // retries on 429/5xx
	Backoff    time.Duration `yaml:"backoff"`     // initial backoff, doubled per attempt
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "adveille/1.0"
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
}

// Client talks to the ad-library API.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Client. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// SearchQuery parameterizes a keyword search.
type SearchQuery struct {
	Query        string
	Limit        int
	Country      string
	ActiveStatus string // "ACTIVE", "ALL", ...
	MediaType    string // "ALL", "IMAGE", "VIDEO"
	Trim         bool
}

// AdsQuery parameterizes a per-page ads fetch.
type AdsQuery struct {
	Limit   int
	Country string
	Trim    bool
}

// SearchAds searches the ad library by keyword. Pagination is followed until
// Limit ads are collected or the cursor runs out.
func (c *Client) SearchAds(ctx context.Context, q SearchQuery) ([]*Ad, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("adsource: empty search query")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	params := url.Values{}
	params.Set("query", strings.TrimSpace(q.Query))
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	if q.ActiveStatus != "" {
		params.Set("status", q.ActiveStatus)
	}
	if q.MediaType != "" && !strings.EqualFold(q.MediaType, "ALL") {
		params.Set("media_type", strings.ToUpper(q.MediaType))
	}
	params.Set("trim", strconv.FormatBool(q.Trim))

	return c.collectAds(ctx, c.config.BaseURL+"/search/ads", params, limit)
}

// Ads fetches ads run by one page (platform ID).
func (c *Client) Ads(ctx context.Context, platformID string, q AdsQuery) ([]*Ad, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(platformID) == "" {
		return nil, fmt.Errorf("adsource: empty platform ID")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{}
	params.Set("pageId", strings.TrimSpace(platformID))
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	params.Set("trim", strconv.FormatBool(q.Trim))

	return c.collectAds(ctx, c.config.BaseURL+"/company/ads", params, limit)
}

// AdsBatch fetches ads for several platform IDs. Per-ID failures are logged
// and reported as an empty slice so one broken page does not sink the batch.
func (c *Client) AdsBatch(ctx context.Context, platformIDs []string, q AdsQuery) (map[string][]*Ad, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	results := make(map[string][]*Ad, len(platformIDs))
	for _, id := range platformIDs {
		ads, err := c.Ads(ctx, id, q)
		if err != nil {
			// Credit/rate errors abort the whole batch: retrying the
			// remaining IDs would burn more calls against a hard wall.
			if errors.Is(err, ErrCreditExhausted) || errors.Is(err, ErrRateLimited) {
				return nil, err
			}
			c.logger.Warn("adsource: batch ads fetch failed", "platform_id", id, "error", err)
			results[id] = nil
			continue
		}
		results[id] = ads
	}
	return results, nil
}

// PlatformIDs resolves a brand name to its ad-library platform IDs.
func (c *Client) PlatformIDs(ctx context.Context, name string) ([]string, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("adsource: empty brand name")
	}

	params := url.Values{}
	params.Set("query", name)
	body, err := c.get(ctx, c.config.BaseURL+"/search/companies", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		SearchResults []struct {
			PageID string `json:"page_id"`
		} `json:"searchResults"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("adsource: decode companies: %w", err)
	}

	ids := make([]string, 0, len(resp.SearchResults))
	for _, r := range resp.SearchResults {
		if r.PageID != "" {
			ids = append(ids, r.PageID)
		}
	}
	return ids, nil
}

// PlatformIDsBatch resolves several brand names. Per-name failures yield an
// empty slice; credit/rate errors abort the batch.
func (c *Client) PlatformIDsBatch(ctx context.Context, names []string) (map[string][]string, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	results := make(map[string][]string, len(names))
	for _, name := range names {
		ids, err := c.PlatformIDs(ctx, name)
		if err != nil {
			if errors.Is(err, ErrCreditExhausted) || errors.Is(err, ErrRateLimited) {
				return nil, err
			}
			c.logger.Warn("adsource: batch platform lookup failed", "brand", name, "error", err)
			results[name] = nil
			continue
		}
		results[name] = ids
	}
	return results, nil
}

// collectAds pages through an ads endpoint until limit is reached or the
// cursor runs out.
func (c *Client) collectAds(ctx context.Context, endpoint string, params url.Values, limit int) ([]*Ad, error) {
	var ads []*Ad
	cursor := ""
	for {
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		body, err := c.get(ctx, endpoint, params)
		if err != nil {
			// Partial results beat none: a rate limit mid-pagination still
			// returns what earlier pages produced.
			if len(ads) > 0 && (errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCreditExhausted)) {
				c.logger.Warn("adsource: pagination cut short", "collected", len(ads), "error", err)
				return ads, nil
			}
			return nil, err
		}

		var resp struct {
			Ads    []*Ad  `json:"ads"`
			Cursor string `json:"cursor"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("adsource: decode ads: %w", err)
		}

		for _, ad := range resp.Ads {
			normalize(ad)
			ads = append(ads, ad)
			if len(ads) >= limit {
				return ads, nil
			}
		}
		if resp.Cursor == "" || len(resp.Ads) == 0 {
			return ads, nil
		}
		cursor = resp.Cursor
	}
}

// get performs one API call with auth header, bounded body read, status
// mapping, and bounded retry with exponential backoff on 429/5xx.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	full := endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.config.Backoff * (1 << uint(attempt-1))
			c.logger.Warn("adsource: retrying call",
				"attempt", attempt, "max_retries", c.config.MaxRetries,
				"backoff_ms", wait.Milliseconds(), "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, retryable, err := c.once(ctx, full)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, fullURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("adsource: new request: %w", err)
	}
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("adsource: http get: %w", err)
	}
	defer resp.Body.Close()

	data, err := safeurl.LimitedReadAll(resp.Body, safeurl.MaxResponseBody)
	if err != nil {
		return nil, false, fmt.Errorf("adsource: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, false, nil
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(string(data)), "credit"):
		return nil, false, fmt.Errorf("%w: %s", ErrCreditExhausted, snippet(data))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("%w: %s", ErrRateLimited, snippet(data))
	case resp.StatusCode >= 500:
		return nil, true, &UpstreamError{Status: resp.StatusCode, Body: snippet(data)}
	default:
		return nil, false, &UpstreamError{Status: resp.StatusCode, Body: snippet(data)}
	}
}

// normalize trims URL whitespace and backfills the external-link flag, which
// some API projections omit.
func normalize(ad *Ad) {
	for i := range ad.ExternalURLs {
		ad.ExternalURLs[i].FullURL = strings.TrimSpace(ad.ExternalURLs[i].FullURL)
		ad.ExternalURLs[i].Domain = strings.TrimSpace(ad.ExternalURLs[i].Domain)
	}
	ad.MediaURL = strings.TrimSpace(ad.MediaURL)
	if !ad.HasExternalLinks && len(ad.ExternalURLs) > 0 {
		ad.HasExternalLinks = true
	}
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
