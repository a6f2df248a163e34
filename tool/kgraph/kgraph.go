// Package kgraph provides the knowledge_graph tool. It asks the model for
// relationship triples about a topic and renders them as a Mermaid diagram.
package kgraph

import (
	"fmt"
	"strings"

	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/graph"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/tool"
)

const triplesPrompt = `Extract the key entities and relationships for the topic: %s

Output 7 to 12 relationship triples, one per line, in exactly this format:

entity | relation | entity

Rules:
- Use short entity names (1-4 words).
- Use a short lowercase verb phrase for the relation.
- Output only the triples, no headings, numbering or commentary.

Example:
Photosynthesis | occurs in | chloroplasts
Chlorophyll | absorbs | light energy`

// Tool generates a knowledge graph for a topic.
type Tool struct {
	llm model.Model
}

var _ tool.Tool = (*Tool)(nil)

// New creates the knowledge graph tool.
func New(llm model.Model) *Tool {
	return &Tool{llm: llm}
}

// Name implements tool.Tool.
func (t *Tool) Name() string {
	return "knowledge_graph"
}

// Description implements tool.Tool.
func (t *Tool) Description() string {
	return "Generate a knowledge graph of the key entities and relationships for a topic, rendered as a Mermaid diagram with summary statistics."
}

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{
				"type":        "string",
				"description": "The topic to build a knowledge graph for.",
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

	raw, err := model.Complete(toolCtx.Context(), t.llm, "", fmt.Sprintf(triplesPrompt, topic))
	if err != nil {
		return nil, tool.NewError(t.Name(), fmt.Sprintf("extract triples: %v", err), "EXECUTION_ERROR")
	}

	fragment := graph.NewFragment(topic, raw)
	if len(fragment.Triples) == 0 {
		return nil, tool.NewError(t.Name(), fmt.Sprintf("model produced no usable triples for %q", topic), "EXECUTION_ERROR")
	}

	return fragment.Render(), nil
}
