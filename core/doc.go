// Package core provides the foundational domain types used throughout loupe:
//
//   - Content and Part (text, function call, function response segments)
//   - Event (immutable transcript records with correlation ids)
//   - Session (the append-only conversation transcript) and SessionStore
//   - RunContext / ToolContext (scoped execution surfaces for agents & tools)
//
// The package deliberately contains no orchestration or provider concerns;
// those live in the agent, model and tool packages.
package core
