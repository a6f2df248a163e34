// Package loupe provides a high-level façade over the research assistant:
// a tool-using agent loop, in-memory conversation sessions and streaming
// event delivery. Most applications interact with this package by:
//  1. Creating an Assistant via New() with a model and tools
//  2. Invoking turns asynchronously (Invoke) or synchronously (InvokeSync)
//
// All defaults are safe for local development; callers typically supply a
// structured logger and a configured model provider.
package loupe

import (
	"context"
	"fmt"

	"github.com/loupehq/loupe/agent"
	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/logging"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/session"
	"github.com/loupehq/loupe/tool"
)

// Options configures the Assistant.
type Options struct {
	// AgentName is the author recorded on assistant events.
	AgentName string

	// Instruction overrides the default system prompt.
	Instruction agent.Instruction

	// MaxSteps bounds model calls per turn.
	MaxSteps int

	// EnableStreaming forwards partial text fragments as events.
	EnableStreaming bool

	// Tools registered with the agent.
	Tools []tool.Tool

	// SessionStore defaults to an in-memory implementation.
	SessionStore core.SessionStore

	// Logger defaults to the NoOp logger.
	Logger logging.Logger

	// EventBufferSize sets channel buffering for emitted events.
	EventBufferSize int
}

// Assistant aggregates the agent, the session store and the logger behind a
// small invocation surface.
type Assistant struct {
	agent           *agent.ResearchAgent
	sessions        core.SessionStore
	logger          logging.Logger
	eventBufferSize int
}

// New creates an Assistant around the given model. Any unset service is
// initialized with an in-memory or no-op implementation.
func New(llm model.Model, optFns ...func(o *Options)) *Assistant {
	opts := Options{
		AgentName:       "loupe",
		MaxSteps:        8,
		EnableStreaming: true,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
		EventBufferSize: 64,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := agent.New(opts.AgentName, llm, func(o *agent.Options) {
		if !opts.Instruction.IsZero() {
			o.Instruction = opts.Instruction
		}
		o.MaxSteps = opts.MaxSteps
		o.EnableStreaming = opts.EnableStreaming
		o.Tools = opts.Tools
	})

	return &Assistant{
		agent:           a,
		sessions:        opts.SessionStore,
		logger:          opts.Logger,
		eventBufferSize: opts.EventBufferSize,
	}
}

// Agent exposes the underlying agent, mainly for inspection in tests.
func (as *Assistant) Agent() *agent.ResearchAgent { return as.agent }

// Invoke starts an asynchronous turn. The user message and every non-partial
// event the agent emits are persisted to the session before delivery, so the
// transcript is strictly additive across turns. The returned channels are
// closed when the turn completes; a terminal failure is sent on the error
// channel.
func (as *Assistant) Invoke(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := as.sessions.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("get session: %w", err)
	}

	invocationID := core.NewID()

	userEvent := core.NewEvent(invocationID, "user")
	userEvent.Content = &userContent
	if err := as.sessions.AppendEvent(sessionID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("append user event: %w", err)
	}
	sess.AddEvent(userEvent)

	emit := make(chan core.Event, as.eventBufferSize)
	eventsCh := make(chan core.Event, as.eventBufferSize)
	errorsCh := make(chan error, 1)

	runCtx := core.NewRunContext(ctx, sessionID, invocationID, userContent, sess, emit, as.logger)

	runErrCh := make(chan error, 1)

	go func() {
		defer close(emit)
		runErrCh <- as.agent.Run(runCtx)
	}()

	// The forwarder is the only goroutine that sends on or closes errorsCh,
	// and it does so only after the agent run has finished. On cancellation
	// it stops delivering but keeps draining emit so the agent never blocks.
	go func() {
		defer close(eventsCh)
		defer close(errorsCh)
		delivering := true
		for ev := range emit {
			if !ev.IsPartial() {
				if err := as.sessions.AppendEvent(sessionID, ev); err != nil {
					as.logger.Error("session.append_failed", "session_id", sessionID, "error", err)
				}
			}
			if !delivering {
				continue
			}
			select {
			case eventsCh <- ev:
			case <-ctx.Done():
				delivering = false
			}
		}
		if err := <-runErrCh; err != nil {
			errorsCh <- err
		}
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// InvokeSync runs a turn to completion, draining the async channels, and
// returns the collected events.
func (as *Assistant) InvokeSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, []core.Event, error) {
	invocationID, eventsCh, errorsCh, err := as.Invoke(ctx, sessionID, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return invocationID, events, ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				select {
				case err := <-errorsCh:
					return invocationID, events, err
				default:
					return invocationID, events, nil
				}
			}
			events = append(events, ev)

		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if err != nil {
				// Drain remaining events before reporting the failure.
				for ev := range eventsCh {
					events = append(events, ev)
				}
				return invocationID, events, err
			}
		}
	}
}

// Transcript returns the persisted history of a session in order.
func (as *Assistant) Transcript(sessionID string) ([]core.Event, error) {
	sess, err := as.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.History(), nil
}
