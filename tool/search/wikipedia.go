package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultWikipediaEndpoint = "https://en.wikipedia.org/w/api.php"

// wikipedia searches article titles and snippets through the MediaWiki
// search API.
type wikipedia struct {
	client     *http.Client
	endpoint   string
	maxResults int
}

func newWikipedia(client *http.Client, endpoint string, maxResults int) *wikipedia {
	if endpoint == "" {
		endpoint = defaultWikipediaEndpoint
	}
	return &wikipedia{client: client, endpoint: endpoint, maxResults: maxResults}
}

type wikipediaSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

func (w *wikipedia) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("format", "json")
	q.Set("srsearch", query)
	q.Set("srlimit", fmt.Sprintf("%d", w.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed wikipediaSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Query.Search))
	for _, hit := range parsed.Query.Search {
		title := strings.TrimSpace(hit.Title)
		if title == "" {
			continue
		}
		results = append(results, Result{
			Title:   title,
			URL:     articleURL(w.endpoint, title),
			Snippet: cleanHTML(hit.Snippet),
		})
		if len(results) >= w.maxResults {
			break
		}
	}
	return results, nil
}

// articleURL derives the canonical page link from the API endpoint, so
// tests pointed at a local server produce local links.
func articleURL(endpoint, title string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s://%s/wiki/%s", u.Scheme, u.Host, url.PathEscape(strings.ReplaceAll(title, " ", "_")))
}
