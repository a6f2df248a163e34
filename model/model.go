// Package model defines the provider-neutral language model interface plus
// the normalized request/response types exchanged with it. Concrete adapters
// live in the openai and anthropic subpackages.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/loupehq/loupe/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual tool exposed to the model.
// Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalized model input assembled by the agent: the full
// conversation contents (system instruction first, then the transcript
// replay), the registered tool definitions, and the streaming flag.
type Request struct {
	Contents []core.Content   `json:"contents"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Stream   bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. A final
// response may carry text parts, function call parts, or both.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info describes a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the agent needs to drive generation. One
// Generate call corresponds to one model turn; the response channel closes
// after the final (non-partial) response or an error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns metadata about the model implementation.
	Info() Info
}

// MockModel is an in-memory Model for tests and examples. Two scripting
// styles are supported: canned completions keyed by the latest user text
// (AddResponse), or an explicit FIFO of responses consumed one Generate call
// at a time (Enqueue) for scripting multi-step tool conversations.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	queue     []Response
	requests  []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends a scripted response returned by the next Generate call.
// Queued responses take precedence over canned completions.
func (m *MockModel) Enqueue(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

// EnqueueText is shorthand for queuing a plain final text response.
func (m *MockModel) EnqueueText(text string) {
	m.Enqueue(Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	})
}

// EnqueueFunctionCall is shorthand for queuing a response requesting a tool.
func (m *MockModel) EnqueueFunctionCall(callID, name, arguments string) {
	m.Enqueue(Response{
		Content: core.Content{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: callID, Name: name, Arguments: arguments}},
		}},
		FinishReason: "tool_calls",
	})
}

// Requests returns every Request seen so far, in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model. With queued responses it pops the next script
// entry; otherwise it echoes a canned (or default) completion for the last
// text content, streaming rune chunks first when req.Stream is set.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var scripted *Response
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		scripted = &r
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if scripted != nil {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
			case respCh <- *scripted:
			}
			return
		}

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		last := req.Contents[len(req.Contents)-1]
		inputText := last.Text()

		m.mu.Lock()
		full := m.responses[inputText]
		m.mu.Unlock()
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: string(r)}}},
				}:
				}
			}
		}
		respCh <- Response{
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: full}}},
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
