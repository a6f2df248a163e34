// Package anthropic adapts the Anthropic Messages API to the generic
// model.Model interface. Tool calling is supported; generation is
// non-streaming (the final response arrives as a single chunk).
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
)

// Options configure the Anthropic adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates an Anthropic model using the official client. Without an
// explicit APIKey option the client reads ANTHROPIC_API_KEY from the
// environment.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model. Stream requests fall back to a single
// final response; the agent treats that identically apart from losing
// incremental text.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Contents),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if system := systemBlocks(req.Contents); len(system) > 0 {
			params.System = system
		}
		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []core.Part
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				if text := block.AsText().Text; text != "" {
					parts = append(parts, core.TextPart{Text: text})
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := ""
				if toolBlock.Input != nil {
					if raw, err := json.Marshal(toolBlock.Input); err == nil {
						args = string(raw)
					}
				}
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        toolBlock.ID,
					Name:      toolBlock.Name,
					Arguments: args,
				}})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}
		out <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// buildMessages converts normalized contents to Anthropic messages. The
// Messages API requires tool_result blocks to arrive in a user-role message,
// so observations matching an assistant's tool_use blocks are emitted as a
// user message immediately following that assistant message.
func buildMessages(contents []core.Content) []anthropic.MessageParam {
	toolResponses := map[string]string{}
	for i := range contents {
		if contents[i].Role != "tool" {
			continue
		}
		ev := core.Event{Content: &contents[i]}
		for _, fr := range ev.GetFunctionResponses() {
			if fr.ID == "" {
				continue
			}
			if fr.Error != "" {
				toolResponses[fr.ID] = fmt.Sprintf("error: %s", fr.Error)
			} else if s, ok := fr.Response.(string); ok {
				toolResponses[fr.ID] = s
			} else {
				toolResponses[fr.ID] = fmt.Sprintf("%v", fr.Response)
			}
		}
	}

	var messages []anthropic.MessageParam
	for _, c := range contents {
		switch c.Role {
		case "system", "tool":
			continue // system handled separately, tool results embedded
		case "assistant":
			content, results := assistantBlocks(c.Parts, toolResponses)
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
			if len(results) > 0 {
				messages = append(messages, anthropic.NewUserMessage(results...))
			}
		default:
			if content := textBlocks(c.Parts); len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		}
	}
	return messages
}

func systemBlocks(contents []core.Content) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, c := range contents {
		if c.Role != "system" {
			continue
		}
		if text := c.Text(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	return blocks
}

func textBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			content = append(content, anthropic.NewTextBlock(tp.Text))
		}
	}
	return content
}

// assistantBlocks converts assistant parts to content blocks and returns the
// tool_result blocks for any matched calls, which the caller places in a
// separate user message as the API requires.
func assistantBlocks(parts []core.Part, toolResponses map[string]string) ([]anthropic.ContentBlockParamUnion, []anthropic.ContentBlockParamUnion) {
	var content []anthropic.ContentBlockParamUnion
	var results []anthropic.ContentBlockParamUnion
	var callIDs []string
	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				content = append(content, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			var input any
			if part.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &input); err != nil {
					input = part.FunctionCall.Arguments
				}
			}
			content = append(content, anthropic.NewToolUseBlock(
				part.FunctionCall.ID,
				input,
				part.FunctionCall.Name,
			))
			callIDs = append(callIDs, part.FunctionCall.ID)
		}
	}
	for _, id := range callIDs {
		if resp, ok := toolResponses[id]; ok {
			results = append(results, anthropic.NewToolResultBlock(id, resp, false))
			delete(toolResponses, id)
		}
	}
	return content, results
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if params := tdef.Function.Parameters; params != nil {
			if properties, ok := params["properties"]; ok {
				inputSchema.Properties = properties
			}
			switch required := params["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}
		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Function.Name)
	}
	return out
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic", SupportsTools: true}
}
