package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	defaultDuckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// duckduckgo scrapes the lite HTML page, which has a stable table layout
// of result links followed by snippet cells.
type duckduckgo struct {
	client     *http.Client
	endpoint   string
	maxResults int
}

func newDuckDuckGo(client *http.Client, endpoint string, maxResults int) *duckduckgo {
	if endpoint == "" {
		endpoint = defaultDuckDuckGoEndpoint
	}
	return &duckduckgo{client: client, endpoint: endpoint, maxResults: maxResults}
}

var (
	ddgLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	ddgLinkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	ddgSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>(.*?)</td>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
)

func (d *duckduckgo) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return d.parse(string(body)), nil
}

func (d *duckduckgo) parse(html string) []Result {
	matches := ddgLinkPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = ddgLinkPatternAlt.FindAllStringSubmatch(html, -1)
	}
	snippets := ddgSnippetPattern.FindAllStringSubmatch(html, -1)

	var results []Result
	for i, match := range matches {
		href := strings.TrimSpace(match[1])
		title := cleanHTML(match[2])
		if href == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}

		results = append(results, Result{Title: title, URL: href, Snippet: snippet})
		if len(results) >= d.maxResults {
			break
		}
	}
	return results
}

// cleanHTML strips tags and decodes the entities the lite page emits.
func cleanHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(replacer.Replace(s))
}
