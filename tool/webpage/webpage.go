// Package webpage provides the process_webpage tool: fetch a URL, extract
// its readable text and summarize it with the model.
package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/tool"
)

const (
	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 1 << 20

	// maxContentRunes bounds how much extracted text is fed to the model.
	maxContentRunes = 8000

	userAgent = "Mozilla/5.0 (compatible; LoupeBot/1.0)"

	summaryPrompt = "Summarize the following webpage content in a concise, well-structured way. Capture the main points, key facts and any notable conclusions.\n\nContent:\n%s"
)

// Options configures the webpage tool.
type Options struct {
	// HTTPClient performs the fetch. Defaults to a client with a 15
	// second timeout.
	HTTPClient *http.Client
}

// Tool fetches a webpage, extracts the article text and returns a model
// generated summary.
type Tool struct {
	client *http.Client
	llm    model.Model
}

var _ tool.Tool = (*Tool)(nil)

// New creates the webpage processing tool. The model is used for the
// summarization step.
func New(llm model.Model, optFns ...func(o *Options)) *Tool {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Tool{client: opts.HTTPClient, llm: llm}
}

// Name implements tool.Tool.
func (t *Tool) Name() string {
	return "process_webpage"
}

// Description implements tool.Tool.
func (t *Tool) Description() string {
	return "Fetch a webpage by URL, extract its readable text and return a concise summary of its content."
}

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The full URL of the webpage to process, including the scheme.",
			},
		},
		"required": []string{"url"},
	}
}

// Call implements tool.Tool.
func (t *Tool) Call(toolCtx *core.ToolContext, params map[string]any) (any, error) {
	rawURL, _ := params["url"].(string)
	rawURL = strings.TrimSpace(rawURL)

	if err := validateURL(rawURL); err != nil {
		return nil, tool.NewError(t.Name(), err.Error(), "VALIDATION_ERROR")
	}

	ctx := toolCtx.Context()

	content, err := t.Fetch(ctx, rawURL)
	if err != nil {
		return nil, tool.NewError(t.Name(), err.Error(), "EXECUTION_ERROR")
	}
	content = truncate(content, maxContentRunes)
	if content == "" {
		return nil, tool.NewError(t.Name(), fmt.Sprintf("no readable content at %s", rawURL), "EXECUTION_ERROR")
	}

	summary, err := model.Complete(ctx, t.llm, "", fmt.Sprintf(summaryPrompt, content))
	if err != nil {
		return nil, tool.NewError(t.Name(), fmt.Sprintf("summarize: %v", err), "EXECUTION_ERROR")
	}

	return fmt.Sprintf("### Summary of %s\n\n%s", rawURL, summary), nil
}

// Fetch downloads a URL and extracts its readable text. Exported so other
// tools can reuse the extraction step without the summary.
func (t *Tool) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("http %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	html := string(body)

	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.TextContent), nil
	}

	return stripHTML(html), nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url must not be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "\n... (truncated)"
}

var (
	scriptPattern     = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`[ \t]+`)
	blankLinePattern  = regexp.MustCompile(`\n{3,}`)
)

// stripHTML is the fallback when readability cannot find an article body.
func stripHTML(html string) string {
	text := scriptPattern.ReplaceAllString(html, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	).Replace(text)
	text = whitespacePattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
