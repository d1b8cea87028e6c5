// Package search wraps the external web search and page fetch services.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Brave Search web endpoint.
	DefaultBaseURL    = "https://api.search.brave.com/res/v1/web/search"
	DefaultMaxResults = 5
	MaxResultsCap     = 20
	defaultTimeout    = 30 * time.Second
)

var (
	// ErrUpstream wraps every failure reaching the search provider.
	ErrUpstream = errors.New("search: upstream failure")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("web search is not available (no API key configured)")
)

// Result is one web search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Config configures the search client.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

// Client queries the Brave Search API.
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	http       *http.Client
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 || cfg.MaxResults > MaxResultsCap {
		cfg.MaxResults = MaxResultsCap
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		maxResults: cfg.MaxResults,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Search returns up to n results for query. n is clamped to the configured
// maximum and defaults to DefaultMaxResults.
func (c *Client) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if n <= 0 {
		n = DefaultMaxResults
	}
	if n > c.maxResults {
		n = c.maxResults
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrUpstream, err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(n))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: API returned %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrUpstream, err)
	}
	results := payload.Web.Results
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

type braveResponse struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

// Format renders results as a numbered listing.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n\n", i+1, r.Title, r.URL, r.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
