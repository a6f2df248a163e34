package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single transcript record. Once appended to a session it is
// treated as immutable. It captures correlation (InvocationID, ID, Author),
// conversational content, streaming markers and error metadata. Content may
// be nil for error-only events.
type Event struct {
	ID           string    `json:"id"`
	InvocationID string    `json:"invocation_id"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Content      *Content  `json:"content,omitempty"`
	Partial      *bool     `json:"partial,omitempty"`
	TurnComplete *bool     `json:"turn_complete,omitempty"`
	ErrorCode    *string   `json:"error_code,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by author bound to an invocation.
// Prefer the semantic constructors below for common event shapes.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewAssistantMessageEvent creates an assistant text message event.
func NewAssistantMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewFunctionResponseEvent records the outcome of a tool invocation. A non-nil
// err is copied into the response Error field so failures travel the
// transcript as observations rather than aborting the turn.
func NewFunctionResponseEvent(invocationID, author, callID, toolName string, result any, err error) Event {
	e := NewEvent(invocationID, author)
	fr := FunctionResponse{ID: callID, Name: toolName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewErrorEvent creates a content-free event carrying an error code + message.
func NewErrorEvent(invocationID, author, code, message string) Event {
	e := NewEvent(invocationID, author)
	e.ErrorCode = &code
	e.ErrorMessage = &message
	return e
}

// NewID generates a unique identifier for events and function calls.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event is a streaming fragment that will be
// followed by further events composing the final assistant turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetFunctionCalls returns any FunctionCall parts in original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts in original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalResponse reports whether the event completes an assistant turn: no
// pending function calls or responses and not a streaming fragment.
func (e Event) IsFinalResponse() bool {
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}
