// Package llm wraps the model provider behind a small streaming
// interface so the chat service can be tested without network calls.
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of model context. Assistant turns may carry the
// tool calls they issued; tool turns answer one call by ID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-issued invocation with raw JSON arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool declares a callable function to the model. Parameters is a JSON
// schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	System   string
	Messages []Message
	Tools    []Tool
}

// Result is what one completion round produced: the full text and any
// tool calls the model wants executed before it can continue.
type Result struct {
	Text      string
	ToolCalls []ToolCall
}

// Client streams one completion round. onText receives incremental text
// deltas as they arrive; the returned Result carries the accumulated
// text plus tool calls. An onText error aborts the stream.
type Client interface {
	StreamCompletion(ctx context.Context, req Request, onText func(delta string) error) (*Result, error)
}
