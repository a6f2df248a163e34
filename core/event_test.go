package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("inv-123", "loupe")
	if e.Author != "loupe" || e.InvocationID != "inv-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	user := NewUserMessageEvent("inv-123", "hi")
	if user.Content == nil || user.Content.Role != "user" {
		t.Fatalf("NewUserMessageEvent malformed: %+v", user)
	}
	assert.Equal(t, "hi", user.Content.Text())

	msg := NewAssistantMessageEvent("inv-123", "loupe", "hello world")
	if msg.Content == nil || msg.Content.Role != "assistant" || len(msg.Content.Parts) != 1 {
		t.Fatalf("NewAssistantMessageEvent malformed: %+v", msg)
	}

	fRespOK := NewFunctionResponseEvent("inv-123", "loupe", "call-1", "web_search", 42, nil)
	resps := fRespOK.GetFunctionResponses()
	if len(resps) != 1 || resps[0].Response.(int) != 42 || resps[0].Error != "" {
		t.Fatalf("function response success extraction failed: %+v", resps)
	}
	assert.Equal(t, "tool", fRespOK.Content.Role)

	fRespErr := NewFunctionResponseEvent("inv-123", "loupe", "call-2", "web_search", nil, errors.New("boom"))
	resps = fRespErr.GetFunctionResponses()
	assert.Equal(t, "boom", resps[0].Error)

	errEv := NewErrorEvent("inv-123", "loupe", "MODEL_ERROR", "bad things")
	assert.Equal(t, "MODEL_ERROR", *errEv.ErrorCode)
	assert.Equal(t, "bad things", *errEv.ErrorMessage)
}

func TestEvent_GetFunctionCalls(t *testing.T) {
	e := NewEvent("inv", "loupe")
	e.Content = &Content{Role: "assistant", Parts: []Part{
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "web_search", Arguments: `{"query":"go"}`}},
		TextPart{Text: "thinking"},
	}}

	calls := e.GetFunctionCalls()
	if assert.Len(t, calls, 1) {
		assert.Equal(t, "web_search", calls[0].Name)
		assert.Equal(t, `{"query":"go"}`, calls[0].Arguments)
	}
}

func TestEvent_IsFinalResponse(t *testing.T) {
	final := NewAssistantMessageEvent("inv", "loupe", "done")
	assert.True(t, final.IsFinalResponse())

	partial := NewAssistantMessageEvent("inv", "loupe", "do")
	p := true
	partial.Partial = &p
	assert.False(t, partial.IsFinalResponse())

	withCall := NewEvent("inv", "loupe")
	withCall.Content = &Content{Role: "assistant", Parts: []Part{
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "web_search"}},
	}}
	assert.False(t, withCall.IsFinalResponse())

	observation := NewFunctionResponseEvent("inv", "loupe", "c1", "web_search", "ok", nil)
	assert.False(t, observation.IsFinalResponse())
}

func TestContent_Text(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "hello "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "x"}},
		TextPart{Text: "world"},
	}}
	assert.Equal(t, "hello world", c.Text())
}
