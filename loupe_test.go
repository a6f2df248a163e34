package loupe

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/tool"
)

func TestAssistant_InvokeSync(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueText("Hello! I can research topics for you.")

	assistant := New(llm, func(o *Options) { o.EnableStreaming = false })

	invocationID, events, err := assistant.InvokeSync(context.Background(), "s1", core.NewUserText("hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, invocationID)

	require.Len(t, events, 1)
	assert.Equal(t, "Hello! I can research topics for you.", events[0].Content.Text())
}

func TestAssistant_TranscriptIsAdditiveAcrossTurns(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueText("answer one")
	llm.EnqueueText("answer two")

	assistant := New(llm, func(o *Options) { o.EnableStreaming = false })

	_, _, err := assistant.InvokeSync(context.Background(), "s1", core.NewUserText("question one"))
	require.NoError(t, err)
	_, _, err = assistant.InvokeSync(context.Background(), "s1", core.NewUserText("question two"))
	require.NoError(t, err)

	transcript, err := assistant.Transcript("s1")
	require.NoError(t, err)

	var texts []string
	for _, ev := range transcript {
		texts = append(texts, ev.Content.Text())
	}
	assert.Equal(t, []string{"question one", "answer one", "question two", "answer two"}, texts)

	// The second model call replays the first exchange.
	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Greater(t, len(reqs[1].Contents), len(reqs[0].Contents))
}

func TestAssistant_ToolConversationPersistsObservations(t *testing.T) {
	echo := tool.NewFunctionTool("lookup", "looks things up", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{"type": "string"},
		},
		"required": []string{"topic"},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return "looked up " + args["topic"].(string), nil
	})

	llm := model.NewMockModel("mock")
	llm.EnqueueFunctionCall("c1", "lookup", `{"topic":"go"}`)
	llm.EnqueueText("Go is great.")

	assistant := New(llm, func(o *Options) {
		o.EnableStreaming = false
		o.Tools = []tool.Tool{echo}
	})

	_, events, err := assistant.InvokeSync(context.Background(), "s1", core.NewUserText("tell me about go"))
	require.NoError(t, err)

	var sawObservation bool
	for _, ev := range events {
		for _, fr := range ev.GetFunctionResponses() {
			sawObservation = true
			assert.Equal(t, "looked up go", fr.Response)
		}
	}
	assert.True(t, sawObservation)

	transcript, err := assistant.Transcript("s1")
	require.NoError(t, err)
	assert.Len(t, transcript, 4) // user, tool call, observation, final answer
}

func TestAssistant_StreamingPartialsAreNotPersisted(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.AddResponse("hi", "hello")

	assistant := New(llm) // streaming on by default

	_, events, err := assistant.InvokeSync(context.Background(), "s1", core.NewUserText("hi"))
	require.NoError(t, err)

	var partials int
	for _, ev := range events {
		if ev.IsPartial() {
			partials++
		}
	}
	assert.Greater(t, partials, 0, "expected streamed fragments to be delivered")

	transcript, err := assistant.Transcript("s1")
	require.NoError(t, err)
	assert.Len(t, transcript, 2, "only the user message and final answer persist")
}

func TestAssistant_SessionsAreIsolated(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueText("for a")
	llm.EnqueueText("for b")

	assistant := New(llm, func(o *Options) { o.EnableStreaming = false })

	_, _, err := assistant.InvokeSync(context.Background(), "a", core.NewUserText("qa"))
	require.NoError(t, err)
	_, _, err = assistant.InvokeSync(context.Background(), "b", core.NewUserText("qb"))
	require.NoError(t, err)

	ta, err := assistant.Transcript("a")
	require.NoError(t, err)
	tb, err := assistant.Transcript("b")
	require.NoError(t, err)

	assert.Len(t, ta, 2)
	assert.Len(t, tb, 2)
	assert.Equal(t, "qa", ta[0].Content.Text())
	assert.Equal(t, "qb", tb[0].Content.Text())
}

func TestAssistant_CancelMidStreamWithoutDraining(t *testing.T) {
	// SIGINT cancels an in-flight turn with nobody reading the event channel.
	// The turn must wind down cleanly even with tiny buffers and a long
	// streamed response backing everything up.
	long := strings.Repeat("загадка ", 50)

	for i := 0; i < 25; i++ {
		llm := model.NewMockModel("mock")
		llm.AddResponse("go", long)

		assistant := New(llm, func(o *Options) { o.EventBufferSize = 2 })

		ctx, cancel := context.WithCancel(context.Background())
		_, eventsCh, errorsCh, err := assistant.Invoke(ctx, "s1", core.NewUserText("go"))
		require.NoError(t, err)

		cancel()

		// Both channels still close in bounded time; any terminal error is
		// the cancellation, reported at most once.
		for eventsCh != nil || errorsCh != nil {
			select {
			case _, ok := <-eventsCh:
				if !ok {
					eventsCh = nil
				}
			case turnErr, ok := <-errorsCh:
				if !ok {
					errorsCh = nil
				} else {
					assert.ErrorIs(t, turnErr, context.Canceled)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("turn did not wind down after cancellation")
			}
		}
	}
}

func TestAssistant_UserEventsCarryTimestamps(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueText("noted")

	assistant := New(llm, func(o *Options) { o.EnableStreaming = false })

	_, _, err := assistant.InvokeSync(context.Background(), "s1", core.NewUserText("remember this"))
	require.NoError(t, err)

	transcript, err := assistant.Transcript("s1")
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	for _, ev := range transcript {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero(), "persisted events must be timestamped")
	}
}
