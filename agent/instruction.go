package agent

import "github.com/loupehq/loupe/core"

// Provider supplies dynamic instruction text at runtime. Implementations can
// derive instructions from the session, environment, current date, etc.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either a static instruction string or a dynamic provider,
// a Go-idiomatic union of string | Provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction carries neither text nor provider.
func (i Instruction) IsZero() bool { return i.text == "" && i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}
	return i.text, nil
}

// DefaultInstruction is the system prompt used when callers do not override
// it: a research assistant that leans on its tools for fresh information and
// answers directly when the transcript already contains what it needs.
const DefaultInstruction = `You are a research assistant. Answer the user's questions accurately and concisely.

You have tools for web search, webpage summarization, research note generation and knowledge graph creation. Use a tool when the question needs external or current information; answer directly from the conversation when it does not. After observing tool output, either call another tool or give your final answer in natural language.`
