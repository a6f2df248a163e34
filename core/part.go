package core

// Part is a polymorphic segment of role-based content. The unexported marker
// keeps the set of part kinds closed.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// FunctionCall describes a tool invocation requested by the model.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // JSON-encoded argument payload
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

func (FunctionCallPart) isPart() {}

// FunctionResponse is the observation produced by executing (or failing to
// execute) a requested tool. Either Response or Error is populated.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"` // matches the originating FunctionCall ID
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

func (FunctionResponsePart) isPart() {}

// Content holds a conversation role plus ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // user, assistant, tool, system
	Parts []Part `json:"parts"`
}

// NewUserText is a convenience constructor for a single-part user content.
func NewUserText(text string) Content {
	return Content{Role: "user", Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates all text parts of the content.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
