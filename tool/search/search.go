// Package search provides web search tools backed by Wikipedia and the
// DuckDuckGo lite HTML interface. Neither engine requires an API key.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/tool"
)

// Result is a single search hit from either engine.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher runs a query against one engine.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Options configures the combined web search tool.
type Options struct {
	// HTTPClient is used for both engines. Defaults to a client with a
	// 15 second timeout.
	HTTPClient *http.Client

	// WikipediaEndpoint overrides the MediaWiki API URL, mainly for tests.
	WikipediaEndpoint string

	// DuckDuckGoEndpoint overrides the lite HTML URL, mainly for tests.
	DuckDuckGoEndpoint string

	// MaxResults caps the hits reported per engine. Defaults to 5.
	MaxResults int
}

// Tool queries Wikipedia and DuckDuckGo and merges the results into a
// single markdown report. A failure of one engine degrades to the other's
// results; the tool errors only when both engines fail.
type Tool struct {
	wikipedia  Searcher
	duckduckgo Searcher
}

var _ tool.Tool = (*Tool)(nil)

// New creates the combined web search tool.
func New(optFns ...func(o *Options)) *Tool {
	opts := Options{MaxResults: 5}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Tool{
		wikipedia:  newWikipedia(opts.HTTPClient, opts.WikipediaEndpoint, opts.MaxResults),
		duckduckgo: newDuckDuckGo(opts.HTTPClient, opts.DuckDuckGoEndpoint, opts.MaxResults),
	}
}

// Name implements tool.Tool.
func (t *Tool) Name() string {
	return "web_search"
}

// Description implements tool.Tool.
func (t *Tool) Description() string {
	return "Search the web for current information on a topic. Queries Wikipedia and DuckDuckGo and returns titles, links and snippets."
}

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query.",
			},
		},
		"required": []string{"query"},
	}
}

// Call implements tool.Tool.
func (t *Tool) Call(toolCtx *core.ToolContext, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, tool.NewError(t.Name(), "query must not be empty", "VALIDATION_ERROR")
	}

	ctx := toolCtx.Context()

	var sections []string
	var errs []error

	if hits, err := t.wikipedia.Search(ctx, query); err != nil {
		errs = append(errs, fmt.Errorf("wikipedia: %w", err))
	} else if len(hits) > 0 {
		sections = append(sections, formatSection("Wikipedia", hits))
	}

	if hits, err := t.duckduckgo.Search(ctx, query); err != nil {
		errs = append(errs, fmt.Errorf("duckduckgo: %w", err))
	} else if len(hits) > 0 {
		sections = append(sections, formatSection("DuckDuckGo", hits))
	}

	if len(sections) == 0 {
		if len(errs) > 0 {
			return nil, tool.NewError(t.Name(), fmt.Sprintf("all search engines failed: %v", errs), "EXECUTION_ERROR")
		}
		return fmt.Sprintf("No results found for %q.", query), nil
	}

	return strings.Join(sections, "\n\n"), nil
}

func formatSection(engine string, hits []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s results\n", engine)
	for _, hit := range hits {
		fmt.Fprintf(&b, "\n- **%s**", hit.Title)
		if hit.URL != "" {
			fmt.Fprintf(&b, " (%s)", hit.URL)
		}
		if hit.Snippet != "" {
			fmt.Fprintf(&b, "\n  %s", hit.Snippet)
		}
	}
	return b.String()
}
