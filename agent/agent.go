// Package agent implements the conversational research agent: a bounded
// loop that alternates between model reasoning and tool invocation until a
// final natural-language answer is produced.
package agent

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/tool"
)

// StepLimitMessage is the assistant reply emitted when the loop exhausts its
// step budget without reaching a final answer.
const StepLimitMessage = "I could not complete this request within the allowed number of reasoning steps. Try rephrasing or narrowing the question."

// Options configure a ResearchAgent.
type Options struct {
	// Instruction is the system prompt. Defaults to DefaultInstruction.
	Instruction Instruction
	// MaxSteps bounds model calls per user turn so a tool-happy model can
	// never loop forever. Defaults to 8.
	MaxSteps int
	// EnableStreaming forwards partial text fragments as events.
	EnableStreaming bool
	// Tools registered at construction. The registry is fixed afterwards.
	Tools []tool.Tool
}

// ResearchAgent drives one model conversation with tool dispatch. At each
// step the model either names a tool (whose result becomes an observation in
// the transcript) or emits the final answer.
type ResearchAgent struct {
	name        string
	llm         model.Model
	instruction Instruction
	registry    *tool.Registry
	maxSteps    int
	stream      bool
}

// New constructs a ResearchAgent with sensible defaults.
func New(name string, llm model.Model, optFns ...func(o *Options)) *ResearchAgent {
	opts := Options{
		Instruction:     NewInstructionFromText(DefaultInstruction),
		MaxSteps:        8,
		EnableStreaming: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ResearchAgent{
		name:        name,
		llm:         llm,
		instruction: opts.Instruction,
		registry:    tool.NewRegistry(opts.Tools...),
		maxSteps:    opts.MaxSteps,
		stream:      opts.EnableStreaming,
	}
}

// Name returns the agent's display name.
func (a *ResearchAgent) Name() string { return a.name }

// Registry returns the agent's tool registry.
func (a *ResearchAgent) Registry() *tool.Registry { return a.registry }

// MaxSteps returns the per-turn model call bound.
func (a *ResearchAgent) MaxSteps() int { return a.maxSteps }

// Run executes one user turn: repeated model steps with sequential tool
// execution until a final answer, an unrecoverable model error, or the step
// bound. Events are emitted on runCtx.Emit as they occur; the caller owns
// persistence. Run never treats a tool failure as fatal.
func (a *ResearchAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.name, "invocation", runCtx.InvocationID)

	for step := 1; step <= a.maxSteps; step++ {
		runCtx.LogDebug("agent.step.start", "agent", a.name, "step", step)

		last, err := a.step(runCtx)
		if err != nil {
			runCtx.LogError("agent.step.error", "agent", a.name, "step", step, "error", err.Error())
			ev := core.NewErrorEvent(runCtx.InvocationID, a.name, "MODEL_ERROR", err.Error())
			if emitErr := a.emit(runCtx, ev); emitErr != nil {
				return emitErr
			}
			return err
		}
		if last == nil {
			return runCtx.Err()
		}
		if last.IsFinalResponse() {
			runCtx.LogDebug("agent.run.complete", "agent", a.name, "steps", step)
			return nil
		}
		// Tool observations were appended; give the model another look.
	}

	runCtx.LogWarn("agent.step_limit.exceeded", "agent", a.name, "max_steps", a.maxSteps)
	ev := core.NewAssistantMessageEvent(runCtx.InvocationID, a.name, StepLimitMessage)
	complete := true
	ev.TurnComplete = &complete
	if err := a.emit(runCtx, ev); err != nil {
		return err
	}
	runCtx.Session.AddEvent(ev)
	return nil
}

// step performs one model turn including any sequential tool executions and
// returns the last emitted event. A nil event with nil error means the
// context was cancelled mid-stream.
func (a *ResearchAgent) step(runCtx *core.RunContext) (*core.Event, error) {
	req := model.Request{
		Contents: a.buildContents(runCtx),
		Tools:    a.toolDefinitions(),
		Stream:   a.stream,
	}

	start := time.Now()
	respCh, errCh := a.llm.Generate(runCtx.Context, req)

	var last *core.Event
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			ev := core.NewEvent(runCtx.InvocationID, a.name)
			ev.Content = &resp.Content
			partial := resp.Partial
			ev.Partial = &partial

			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}
			if err := a.emit(runCtx, ev); err != nil {
				return nil, nil
			}
			last = &ev

			if resp.Partial {
				continue // fragments are display-only, never replayed
			}
			runCtx.Session.AddEvent(ev)
			runCtx.LogDebug(
				"agent.model.response",
				"agent", a.name,
				"duration_ms", time.Since(start).Milliseconds(),
				"fn_calls", len(ev.GetFunctionCalls()),
				"finish_reason", resp.FinishReason,
			)

			// One outstanding tool call at a time, in model order.
			for _, fc := range ev.GetFunctionCalls() {
				respEv := a.executeCall(runCtx, fc)
				if err := a.emit(runCtx, respEv); err != nil {
					return nil, nil
				}
				runCtx.Session.AddEvent(respEv)
				last = &respEv
			}

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}

		case <-runCtx.Done():
			return nil, runCtx.Err()
		}
	}
	return last, nil
}

// executeCall resolves and invokes one requested tool, converting every
// failure mode (unknown tool, malformed arguments, tool error, panic) into a
// function response observation.
func (a *ResearchAgent) executeCall(runCtx *core.RunContext, fc core.FunctionCall) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)
	start := time.Now()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool %s panicked: %v", fc.Name, r)
				runCtx.LogError("agent.tool.panic", "tool", fc.Name, "recover", r, "stack", string(debug.Stack()))
			}
		}()
		result, err = a.invokeTool(toolCtx, fc)
	}()

	runCtx.LogInfo(
		"agent.tool.executed",
		"agent", a.name,
		"tool", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)
	return core.NewFunctionResponseEvent(runCtx.InvocationID, a.name, fc.ID, fc.Name, result, err)
}

func (a *ResearchAgent) invokeTool(toolCtx *core.ToolContext, fc core.FunctionCall) (any, error) {
	impl, err := a.registry.Resolve(fc.Name)
	if err != nil {
		return nil, err
	}
	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to decode arguments for %s: %w", fc.Name, err)
		}
	}
	return impl.Call(toolCtx, args)
}

// buildContents assembles the model input: resolved system instruction first,
// then the filtered transcript in chronological order.
func (a *ResearchAgent) buildContents(runCtx *core.RunContext) []core.Content {
	var contents []core.Content
	if text, err := a.instruction.Resolve(runCtx); err == nil && text != "" {
		contents = append(contents, core.Content{Role: "system", Parts: []core.Part{core.TextPart{Text: text}}})
	}
	for _, ev := range runCtx.Session.History() {
		contents = append(contents, *ev.Content)
	}
	return contents
}

func (a *ResearchAgent) toolDefinitions() []model.ToolDefinition {
	tools := a.registry.All()
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, name := range a.registry.Names() {
		t := tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// emit forwards an event to the invocation's channel, honoring cancellation.
func (a *ResearchAgent) emit(runCtx *core.RunContext, ev core.Event) error {
	select {
	case runCtx.Emit <- ev:
		return nil
	case <-runCtx.Done():
		return runCtx.Err()
	}
}
