// Package notes provides the research_notes tool, which produces a
// structured study sheet for a topic in a single model call.
package notes

import (
	"fmt"
	"strings"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/tool"
)

const notesPrompt = `Write structured research notes on the topic: %s

Organize the notes into exactly these sections, each as a markdown heading:

## Overview
A short paragraph introducing the topic.

## Key Concepts
Bullet points defining the essential terms and ideas.

## Important Facts
Bullet points with concrete facts, figures or dates.

## Applications or Implications
Bullet points on where the topic matters in practice.

## Open Questions
Bullet points on what is unresolved or actively debated.

Be factual and concise. Do not add sections beyond these five.`

// Tool generates research notes for a topic.
type Tool struct {
	llm model.Model
}

var _ tool.Tool = (*Tool)(nil)

// New creates the research notes tool.
func New(llm model.Model) *Tool {
	return &Tool{llm: llm}
}

// Name implements tool.Tool.
func (t *Tool) Name() string {
	return "research_notes"
}

// Description implements tool.Tool.
func (t *Tool) Description() string {
	return "Generate structured research notes on a topic, organized into overview, key concepts, important facts, applications and open questions."
}

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{
				"type":        "string",
				"description": "The topic to produce research notes for.",
			},
		},
		"required": []string{"topic"},
	}
}

// Call implements tool.Tool.
func (t *Tool) Call(toolCtx *core.ToolContext, params map[string]any) (any, error) {
	topic, _ := params["topic"].(string)
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, tool.NewError(t.Name(), "topic must not be empty", "VALIDATION_ERROR")
	}

	body, err := model.Complete(toolCtx.Context(), t.llm, "", fmt.Sprintf(notesPrompt, topic))
	if err != nil {
		return nil, tool.NewError(t.Name(), fmt.Sprintf("generate notes: %v", err), "EXECUTION_ERROR")
	}

	return fmt.Sprintf("### Research Notes: %s\n\n%s", topic, body), nil
}
