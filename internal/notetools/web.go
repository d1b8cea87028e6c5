package notetools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/search"
)

// Searcher runs web searches. *search.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]search.Result, error)
}

// PageFetcher downloads readable page text. *search.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*search.Page, error)
}

// ─── SearchTool ──────────────────────────────────────────────────────────────

type searchArgs struct {
	Query      string `json:"query" validate:"required"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1"`
}

// SearchTool handles search.
type SearchTool struct {
	searcher Searcher
	cap      int
}

// NewSearchTool creates a SearchTool. maxResults caps the per-call count.
func NewSearchTool(s Searcher, maxResults int) *SearchTool {
	if maxResults <= 0 {
		maxResults = search.MaxResultsCap
	}
	return &SearchTool{searcher: s, cap: maxResults}
}

// Definition returns the MCP tool definition for search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search",
		mcp.WithDescription("Search the web and return the top results. Use save_search_result to keep one."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results (default 5)"),
			mcp.DefaultNumber(search.DefaultMaxResults),
			mcp.Min(1),
			mcp.Max(float64(t.cap)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Handle processes search. Provider failures degrade to an error text.
func (t *SearchTool) Handle(ctx context.Context, args searchArgs) protocol.Outcome {
	n := args.MaxResults
	if n <= 0 {
		n = search.DefaultMaxResults
	}
	if n > t.cap {
		n = t.cap
	}
	results, err := t.searcher.Search(ctx, args.Query, n)
	if errors.Is(err, search.ErrNotConfigured) {
		return protocol.Fail(protocol.KindUpstreamFailure, "%s", err.Error())
	}
	if err != nil {
		return protocol.Fail(protocol.KindUpstreamFailure, "Search failed: %v", err)
	}
	if len(results) == 0 {
		return protocol.Empty(search.Format(nil))
	}
	return protocol.OK(search.Format(results), results)
}

// ─── ReadURLTool ─────────────────────────────────────────────────────────────

type readURLArgs struct {
	URL string `json:"url" validate:"required,http_url"`
}

// ReadURLTool handles read_url.
type ReadURLTool struct {
	fetcher PageFetcher
}

// NewReadURLTool creates a ReadURLTool.
func NewReadURLTool(f PageFetcher) *ReadURLTool {
	return &ReadURLTool{fetcher: f}
}

// Definition returns the MCP tool definition for read_url.
func (t *ReadURLTool) Definition() mcp.Tool {
	return mcp.NewTool("read_url",
		mcp.WithDescription("Fetch a web page and return its readable text, e.g. a search hit worth saving."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http or https URL")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Handle processes read_url.
func (t *ReadURLTool) Handle(ctx context.Context, args readURLArgs) protocol.Outcome {
	page, err := t.fetcher.Fetch(ctx, args.URL)
	if err != nil {
		return protocol.Fail(protocol.KindUpstreamFailure, "Fetch failed: %v", err)
	}
	return protocol.OK(page.String(), page)
}

// ─── AddTool ─────────────────────────────────────────────────────────────────

type addArgs struct {
	A *int `json:"a" validate:"required"`
	B *int `json:"b" validate:"required"`
}

// AddTool handles add.
type AddTool struct{}

// NewAddTool creates an AddTool.
func NewAddTool() *AddTool { return &AddTool{} }

// Definition returns the MCP tool definition for add.
func (t *AddTool) Definition() mcp.Tool {
	return mcp.NewTool("add",
		mcp.WithDescription("Add two integers."),
		mcp.WithNumber("a", mcp.Required(), mcp.Description("First number")),
		mcp.WithNumber("b", mcp.Required(), mcp.Description("Second number")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// Handle processes add.
func (t *AddTool) Handle(_ context.Context, args addArgs) protocol.Outcome {
	sum := *args.A + *args.B
	return protocol.OK(fmt.Sprint(sum), map[string]any{"sum": sum})
}
