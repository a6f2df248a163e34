package core

import (
	"context"

	"github.com/loupehq/loupe/logging"
)

// RunContext carries the per-invocation execution scope handed to an agent:
// the ambient cancellation context, identifiers, the user input, a working
// session snapshot and the event emission channel. The snapshot is the
// agent's private working copy; the caller owns persistence of emitted
// events to the backing store.
type RunContext struct {
	Context      context.Context
	SessionID    string
	InvocationID string
	UserContent  Content
	Session      *Session
	Emit         chan<- Event
	Logger       logging.Logger
}

// NewRunContext constructs a RunContext. A nil logger is replaced with the
// NoOp logger so call sites never need nil checks.
func NewRunContext(
	ctx context.Context,
	sessionID, invocationID string,
	userContent Content,
	sess *Session,
	emit chan<- Event,
	logger logging.Logger,
) *RunContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &RunContext{
		Context:      ctx,
		SessionID:    sessionID,
		InvocationID: invocationID,
		UserContent:  userContent,
		Session:      sess,
		Emit:         emit,
		Logger:       logger,
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// LogDebug logs at debug level via the bound logger.
func (rc *RunContext) LogDebug(msg string, args ...any) { rc.Logger.Debug(msg, args...) }

// LogInfo logs at info level via the bound logger.
func (rc *RunContext) LogInfo(msg string, args ...any) { rc.Logger.Info(msg, args...) }

// LogWarn logs at warn level via the bound logger.
func (rc *RunContext) LogWarn(msg string, args ...any) { rc.Logger.Warn(msg, args...) }

// LogError logs at error level via the bound logger.
func (rc *RunContext) LogError(msg string, args ...any) { rc.Logger.Error(msg, args...) }

// ToolContext is the constrained surface handed to tool implementations for
// a single function call. It exposes the invocation context, correlation ids
// and the logger, nothing else: tools are pure request/response functions
// with no access to mutable session state.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
}

// NewToolContext binds a tool context to a parent RunContext and a unique
// function call id.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{runCtx: runCtx, functionCallID: functionCallID}
}

// Context returns the context governing the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session the invocation belongs to.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// InvocationID returns the invocation the call belongs to.
func (tc *ToolContext) InvocationID() string { return tc.runCtx.InvocationID }

// FunctionCallID returns the id correlating model request and tool execution.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger bound to the invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.runCtx.Logger }
