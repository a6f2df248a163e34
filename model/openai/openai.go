// Package openai adapts the OpenAI Chat Completions API (streaming and
// function/tool calling included) to the generic model.Model interface.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
)

// Options configure the OpenAI adapter. Kept intentionally minimal; extend
// via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates an OpenAI model using the official client. The client
// reads OPENAI_API_KEY from the environment.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates an OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := m.buildParams(req)
		if req.Stream {
			m.generateStreaming(ctx, params, out, errCh)
			return
		}
		m.generateOnce(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildParams converts normalized contents into OpenAI chat messages,
// pairing each recorded tool observation with the assistant tool call that
// produced it, then attaches tool definitions.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	toolResponses, order := indexToolResponses(req.Contents)

	var messages []openai.ChatCompletionMessageParamUnion
	for _, c := range req.Contents {
		if c.Role == "tool" {
			continue // embedded after their originating assistant message
		}
		text := c.Text()
		switch c.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		case "assistant":
			toolCalls, callIDs := assistantToolCalls(c)
			if len(toolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(text))
				continue
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
			for _, id := range callIDs {
				if resp, ok := toolResponses[id]; ok {
					messages = append(messages, openai.ToolMessage(resp, id))
					delete(toolResponses, id)
				}
			}
		default: // user and anything unrecognized
			if text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}
	// Orphaned tool responses (no matching assistant call seen) go last.
	for _, id := range order {
		if resp, ok := toolResponses[id]; ok {
			messages = append(messages, openai.ToolMessage(resp, id))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Function.Name,
					Description: openai.String(tdef.Function.Description),
					Parameters:  tdef.Function.Parameters,
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// indexToolResponses maps function call id to observation text preserving
// first-seen order.
func indexToolResponses(contents []core.Content) (map[string]string, []string) {
	responses := map[string]string{}
	var order []string
	for i := range contents {
		if contents[i].Role != "tool" {
			continue
		}
		ev := core.Event{Content: &contents[i]}
		for _, fr := range ev.GetFunctionResponses() {
			if fr.ID == "" {
				continue
			}
			if _, exists := responses[fr.ID]; exists {
				continue
			}
			responses[fr.ID] = observationText(fr)
			order = append(order, fr.ID)
		}
	}
	return responses, order
}

// observationText renders a function response for the model: the error
// message for failed calls, the result otherwise.
func observationText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return fmt.Sprintf("error: %s", fr.Error)
	}
	if s, ok := fr.Response.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", fr.Response)
}

func assistantToolCalls(c core.Content) ([]openai.ChatCompletionMessageToolCallParam, []string) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	var callIDs []string
	for _, p := range c.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: fc.FunctionCall.Arguments,
			},
		})
		callIDs = append(callIDs, fc.FunctionCall.ID)
	}
	return toolCalls, callIDs
}

// aggCall accumulates streamed tool call deltas (id, name, argument chunks)
// until the finish reason arrives.
type aggCall struct{ id, name, args string }

func (m *Model) generateStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	var text strings.Builder
	agg := map[int64]*aggCall{}
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				out <- model.Response{
					Partial: true,
					Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: choice.Delta.Content}}},
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				ac, ok := agg[tc.Index]
				if !ok {
					ac = &aggCall{}
					agg[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
			if choice.FinishReason != "" {
				out <- finalResponse(text.String(), agg, choice.FinishReason)
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func finalResponse(text string, agg map[int64]*aggCall, finishReason string) model.Response {
	parts := make([]core.Part, 0, len(agg)+1)
	if text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, ac := range agg {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        ac.id,
			Name:      ac.name,
			Arguments: ac.args,
		}})
	}
	return model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finishReason,
	}
}

func (m *Model) generateOnce(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}
	choice := resp.Choices[0]
	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}
	out <- model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai", SupportsTools: true}
}
