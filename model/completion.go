package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/loupehq/loupe/core"
)

// Complete runs a single-shot prompt against a model and returns the final
// text, draining any partial fragments. It is the building block for tools
// that format a prompt, call the model once and parse the reply.
func Complete(ctx context.Context, m Model, system, user string) (string, error) {
	contents := make([]core.Content, 0, 2)
	if system != "" {
		contents = append(contents, core.Content{Role: "system", Parts: []core.Part{core.TextPart{Text: system}}})
	}
	contents = append(contents, core.NewUserText(user))

	respCh, errCh := m.Generate(ctx, Request{Contents: contents})

	var text strings.Builder
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				continue
			}
			text.WriteString(resp.Content.Text())
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", fmt.Errorf("model returned empty completion")
	}
	return out, nil
}
