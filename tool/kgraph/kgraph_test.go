package kgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/tool"
)

func newTestToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	emit := make(chan core.Event, 16)
	runCtx := core.NewRunContext(context.Background(), "sess-1", "inv-1", core.NewUserText("hi"), core.NewSession("sess-1"), emit, nil)
	return core.NewToolContext(runCtx, "fc-1")
}

func TestTool_RendersGraph(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueText(`AI | is a field of | computer science
Machine learning | is a subset of | AI
Neural networks | power | deep learning`)

	kt := New(llm)

	result, err := kt.Call(newTestToolContext(t), map[string]any{"topic": "artificial intelligence"})
	require.NoError(t, err)

	text := result.(string)
	assert.Contains(t, text, "### Knowledge Graph: artificial intelligence")
	assert.Contains(t, text, "```mermaid\ngraph TD")
	assert.Contains(t, text, "**Connections:** 3")
	assert.Contains(t, text, `n0["AI"]`)
}

func TestTool_SkipsMalformedLines(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueText("Here are the triples:\nA | relates to | B\nnot a triple")

	kt := New(llm)

	result, err := kt.Call(newTestToolContext(t), map[string]any{"topic": "x"})
	require.NoError(t, err)
	assert.Contains(t, result.(string), "**Connections:** 1")
}

func TestTool_NoTriplesIsToolError(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueText("I cannot produce triples for this topic.")

	kt := New(llm)

	_, err := kt.Call(newTestToolContext(t), map[string]any{"topic": "x"})
	var toolErr *tool.Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestTool_EmptyTopic(t *testing.T) {
	kt := New(model.NewMockModel("mock"))

	_, err := kt.Call(newTestToolContext(t), map[string]any{})
	var toolErr *tool.Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}
