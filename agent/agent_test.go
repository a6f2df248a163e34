package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/tool"
)

// runAgent drives one turn to completion and returns the emitted events.
func runAgent(t *testing.T, a *ResearchAgent, userText string) ([]core.Event, error) {
	t.Helper()

	sess := core.NewSession("sess-1")
	userEv := core.NewUserMessageEvent("inv-1", userText)
	sess.AddEvent(userEv)

	emit := make(chan core.Event, 128)
	runCtx := core.NewRunContext(context.Background(), "sess-1", "inv-1", *userEv.Content, sess, emit, nil)

	err := a.Run(runCtx)
	close(emit)

	var events []core.Event
	for ev := range emit {
		events = append(events, ev)
	}
	return events, err
}

func finalTexts(events []core.Event) []string {
	var out []string
	for _, ev := range events {
		if ev.IsPartial() || ev.Content == nil {
			continue
		}
		if text := ev.Content.Text(); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func TestAgent_DirectAnswer(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueText("The answer is 4.")

	a := New("loupe", llm, func(o *Options) { o.EnableStreaming = false })

	events, err := runAgent(t, a, "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, []string{"The answer is 4."}, finalTexts(events))
}

func TestAgent_DeterministicAcrossRuns(t *testing.T) {
	run := func() []string {
		llm := model.NewMockModel("mock")
		llm.EnqueueFunctionCall("c1", "lookup", `{"topic":"go"}`)
		llm.EnqueueText("Go is a programming language.")

		a := New("loupe", llm, func(o *Options) {
			o.EnableStreaming = false
			o.Tools = []tool.Tool{echoTool(t)}
		})
		events, err := runAgent(t, a, "Tell me about go")
		require.NoError(t, err)
		return finalTexts(events)
	}

	assert.Equal(t, run(), run())
}

func echoTool(t *testing.T) tool.Tool {
	t.Helper()
	return tool.NewFunctionTool("lookup", "looks up a topic", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{"type": "string"},
		},
		"required": []string{"topic"},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return fmt.Sprintf("result for %v", args["topic"]), nil
	})
}

func TestAgent_ToolCallThenAnswer(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueFunctionCall("c1", "lookup", `{"topic":"compilers"}`)
	llm.EnqueueText("Compilers translate source code.")

	a := New("loupe", llm, func(o *Options) {
		o.EnableStreaming = false
		o.Tools = []tool.Tool{echoTool(t)}
	})

	events, err := runAgent(t, a, "Explain compilers")
	require.NoError(t, err)

	var observation *core.FunctionResponse
	for _, ev := range events {
		if resps := ev.GetFunctionResponses(); len(resps) == 1 {
			observation = &resps[0]
		}
	}
	require.NotNil(t, observation, "expected a function response observation")
	assert.Equal(t, "c1", observation.ID)
	assert.Equal(t, "lookup", observation.Name)
	assert.Equal(t, "result for compilers", observation.Response)
	assert.Empty(t, observation.Error)

	// The observation is replayed to the model on the second step.
	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	roles := make([]string, 0, len(reqs[1].Contents))
	for _, c := range reqs[1].Contents {
		roles = append(roles, c.Role)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool"}, roles)
}

func TestAgent_UnknownToolBecomesObservation(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.EnqueueFunctionCall("c1", "does_not_exist", `{}`)
	llm.EnqueueText("I could not use that tool.")

	a := New("loupe", llm, func(o *Options) { o.EnableStreaming = false })

	events, err := runAgent(t, a, "use a made up tool")
	require.NoError(t, err, "an unknown tool must never be fatal")

	var found bool
	for _, ev := range events {
		for _, fr := range ev.GetFunctionResponses() {
			found = true
			assert.Equal(t, "does_not_exist", fr.Name)
			assert.Contains(t, fr.Error, "unknown tool")
		}
	}
	assert.True(t, found)
	assert.Contains(t, finalTexts(events), "I could not use that tool.")
}

func TestAgent_ToolErrorBecomesObservation(t *testing.T) {
	failing := tool.NewFunctionTool("flaky", "always fails", map[string]any{"type": "object"},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return nil, errors.New("upstream timeout")
		})

	llm := model.NewMockModel("mock")
	llm.EnqueueFunctionCall("c1", "flaky", `{}`)
	llm.EnqueueText("The tool failed, sorry.")

	a := New("loupe", llm, func(o *Options) {
		o.EnableStreaming = false
		o.Tools = []tool.Tool{failing}
	})

	events, err := runAgent(t, a, "try the flaky tool")
	require.NoError(t, err)

	var errText string
	for _, ev := range events {
		for _, fr := range ev.GetFunctionResponses() {
			errText = fr.Error
		}
	}
	assert.Contains(t, errText, "upstream timeout")
}

func TestAgent_PanickingToolBecomesObservation(t *testing.T) {
	panicking := tool.NewFunctionTool("explosive", "panics", map[string]any{"type": "object"},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			panic("kaboom")
		})

	llm := model.NewMockModel("mock")
	llm.EnqueueFunctionCall("c1", "explosive", `{}`)
	llm.EnqueueText("That did not go well.")

	a := New("loupe", llm, func(o *Options) {
		o.EnableStreaming = false
		o.Tools = []tool.Tool{panicking}
	})

	events, err := runAgent(t, a, "boom")
	require.NoError(t, err, "a panicking tool must never crash the loop")

	var errText string
	for _, ev := range events {
		for _, fr := range ev.GetFunctionResponses() {
			errText = fr.Error
		}
	}
	assert.Contains(t, errText, "panicked")
}

func TestAgent_StepLimit(t *testing.T) {
	const maxSteps = 3

	llm := model.NewMockModel("mock")
	for i := 0; i < maxSteps+2; i++ {
		llm.EnqueueFunctionCall(fmt.Sprintf("c%d", i), "lookup", `{"topic":"again"}`)
	}

	a := New("loupe", llm, func(o *Options) {
		o.EnableStreaming = false
		o.MaxSteps = maxSteps
		o.Tools = []tool.Tool{echoTool(t)}
	})

	events, err := runAgent(t, a, "loop forever")
	require.NoError(t, err)

	require.Len(t, llm.Requests(), maxSteps, "model calls must stop at the step bound")

	texts := finalTexts(events)
	require.NotEmpty(t, texts)
	assert.Equal(t, StepLimitMessage, texts[len(texts)-1])
}

func TestAgent_ModelErrorIsTerminal(t *testing.T) {
	llm := &failingModel{err: errors.New("api down")}

	a := New("loupe", llm, func(o *Options) { o.EnableStreaming = false })

	events, err := runAgent(t, a, "anything")
	require.Error(t, err)

	var sawErrorEvent bool
	for _, ev := range events {
		if ev.ErrorCode != nil && *ev.ErrorCode == "MODEL_ERROR" {
			sawErrorEvent = true
		}
	}
	assert.True(t, sawErrorEvent)
}

type failingModel struct{ err error }

func (f *failingModel) Generate(context.Context, model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- f.err
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (f *failingModel) Info() model.Info {
	return model.Info{Name: "failing", Provider: "test"}
}

func TestAgent_StreamingEmitsPartials(t *testing.T) {
	llm := model.NewMockModel("mock")
	llm.AddResponse("hello", "hi there")

	a := New("loupe", llm) // streaming on by default

	events, err := runAgent(t, a, "hello")
	require.NoError(t, err)

	var partials, finals int
	for _, ev := range events {
		if ev.IsPartial() {
			partials++
		} else {
			finals++
		}
	}
	assert.Greater(t, partials, 0, "expected streamed fragments")
	assert.Equal(t, 1, finals)
}

func TestAgent_ToolDefinitionsSortedByName(t *testing.T) {
	a := New("loupe", model.NewMockModel("mock"), func(o *Options) {
		o.Tools = []tool.Tool{
			tool.NewFunctionTool("zeta", "z", map[string]any{"type": "object"}, nil),
			tool.NewFunctionTool("alpha", "a", map[string]any{"type": "object"}, nil),
		}
	})

	defs := a.toolDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Function.Name)
	assert.Equal(t, "zeta", defs[1].Function.Name)
}
