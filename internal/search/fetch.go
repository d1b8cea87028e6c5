package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const maxFetchSize = 50 * 1024

// Page is the readable text of a fetched URL.
type Page struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Words int    `json:"words"`
	Text  string `json:"text"`
}

// Fetcher downloads pages and extracts their readable text.
type Fetcher struct {
	http      *http.Client
	userAgent string
}

// NewFetcher returns a Fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{http: &http.Client{Timeout: timeout}, userAgent: "notesmcp/1.0"}
}

// Fetch retrieves rawURL. HTML goes through readability; other content
// types are returned as truncated raw text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrUpstream, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	page := &Page{URL: rawURL}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
		page.Text = string(body)
		page.Words = len(strings.Fields(page.Text))
		return page, nil
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrUpstream, err)
	}
	var buf bytes.Buffer
	if err := article.RenderText(&buf); err != nil {
		return nil, fmt.Errorf("%w: render: %v", ErrUpstream, err)
	}

	page.Title = article.Title()
	page.Text = buf.String()
	page.Words = len(strings.Fields(page.Text))
	if len(page.Text) > maxFetchSize {
		page.Text = page.Text[:maxFetchSize] + "\n... [truncated]"
	}
	return page, nil
}

// String renders the page for a tool result.
func (p *Page) String() string {
	return fmt.Sprintf("Title: %s\nURL: %s\nWords: %d\n\n%s", p.Title, p.URL, p.Words, p.Text)
}
