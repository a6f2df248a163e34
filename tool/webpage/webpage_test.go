package webpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/tool"
)

const articleHTML = `<html><head><title>Gophers</title></head><body>
<article>
<h1>All About Gophers</h1>
<p>Gophers are burrowing rodents found across North and Central America. They
spend most of their lives underground in elaborate tunnel systems.</p>
<p>A single gopher can move several tons of soil per year, aerating the
ground and cycling nutrients through the ecosystem.</p>
</article>
<script>console.log("ignore me")</script>
</body></html>`

func newTestToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	emit := make(chan core.Event, 16)
	runCtx := core.NewRunContext(context.Background(), "sess-1", "inv-1", core.NewUserText("hi"), core.NewSession("sess-1"), emit, nil)
	return core.NewToolContext(runCtx, "fc-1")
}

func TestTool_SummarizesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	llm := model.NewMockModel("mock")
	llm.EnqueueText("Gophers are burrowing rodents that reshape soil.")

	wt := New(llm, func(o *Options) { o.HTTPClient = srv.Client() })

	result, err := wt.Call(newTestToolContext(t), map[string]any{"url": srv.URL})
	require.NoError(t, err)

	text := result.(string)
	assert.Contains(t, text, "### Summary of "+srv.URL)
	assert.Contains(t, text, "Gophers are burrowing rodents that reshape soil.")

	// The extracted article text, not raw HTML, goes into the prompt.
	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	prompt := reqs[0].Contents[len(reqs[0].Contents)-1].Text()
	assert.Contains(t, prompt, "burrowing rodents")
	assert.NotContains(t, prompt, "<article>")
	assert.NotContains(t, prompt, "ignore me")
}

func TestTool_InvalidURL(t *testing.T) {
	wt := New(model.NewMockModel("mock"))

	for _, bad := range []string{"", "not a url", "ftp://example.com/x", "https://"} {
		_, err := wt.Call(newTestToolContext(t), map[string]any{"url": bad})
		var toolErr *tool.Error
		require.ErrorAs(t, err, &toolErr, "url %q", bad)
		assert.Equal(t, "VALIDATION_ERROR", toolErr.Code, "url %q", bad)
	}
}

func TestTool_HTTPErrorBecomesToolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	wt := New(model.NewMockModel("mock"), func(o *Options) { o.HTTPClient = srv.Client() })

	_, err := wt.Call(newTestToolContext(t), map[string]any{"url": srv.URL})
	var toolErr *tool.Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "http 404")
}

func TestFetch_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("word ", 4000) // 20k chars of body text
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><article><p>" + long + "</p></article></body></html>"))
	}))
	defer srv.Close()

	llm := model.NewMockModel("mock")
	llm.EnqueueText("summary")
	wt := New(llm, func(o *Options) { o.HTTPClient = srv.Client() })

	_, err := wt.Call(newTestToolContext(t), map[string]any{"url": srv.URL})
	require.NoError(t, err)

	prompt := llm.Requests()[0].Contents[0].Text()
	assert.Contains(t, prompt, "(truncated)")
	assert.Less(t, len([]rune(prompt)), maxContentRunes+200)
}

func TestStripHTML(t *testing.T) {
	got := stripHTML(`<html><head><style>p{color:red}</style></head>
<body><p>Hello &amp; welcome</p><script>alert(1)</script></body></html>`)

	assert.Contains(t, got, "Hello & welcome")
	assert.NotContains(t, got, "color:red")
	assert.NotContains(t, got, "alert")
	assert.NotContains(t, got, "<p>")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	out := truncate(strings.Repeat("é", 20), 5)
	assert.Equal(t, strings.Repeat("é", 5)+"\n... (truncated)", out)
}
