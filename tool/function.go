package tool

import (
	"fmt"
	"time"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/internal/schema"
)

// ValidationError re-exports the schema validation error type so tool
// consumers do not import internal packages.
type ValidationError = schema.ValidationError

// FunctionTool adapts a plain Go function into a Tool. It validates model
// supplied arguments against the declared schema before execution and
// normalizes failures into *Error with consistent codes:
//
//	VALIDATION_ERROR -> schema / argument mismatch
//	EXECUTION_ERROR  -> the wrapped function returned a non-*Error error
//	(custom codes pass through when the function returns *Error directly)
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct's
// json/description tags, a convenience for simple argument containers.
//
// Example:
//
//	type lookupArgs struct {
//		Topic string `json:"topic" description:"Topic to look up"`
//	}
//	t := NewFunctionToolFromStruct("lookup", "Look up a topic", lookupArgs{}, fn)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, schema.FromStruct(structType), fn)
}

// Name returns the unique tool name used in function call routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to the model.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the declared schema then invokes the wrapped
// function, wrapping failures as *Error for uniform downstream handling.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := schema.Validate(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &Error{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		if toolErr, ok := err.(*Error); ok {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return nil, toolErr
		}
		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())
		return nil, &Error{Tool: t.name, Message: err.Error(), Code: "EXECUTION_ERROR"}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
