// Package message defines the provider-agnostic conversation data model:
// messages, content blocks, tool definitions, and session statistics.
// Content is deliberately schemaless at the Go type level (an `any` field
// carrying either a string or a []ContentBlock) because both shapes are
// valid provider inputs, and a forced single shape would require either
// lossy normalization or a custom serializer duplicating what
// json.Marshal already gives us for `any`.
package message

import "encoding/json"

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation entry. Content is either a plain string
// (user text) or a []ContentBlock (assistant messages assembled by the
// agent loop, or the one-element tool_result user messages built by
// NewToolResultMessage).
type Message struct {
	Role    Role `json:"role"`
	Content any  `json:"content"`
}

// ContentBlock is one element of a block-array Message.Content. Which
// fields are populated is determined by Type.
type ContentBlock struct {
	Type string `json:"type"` // "text" | "tool_use" | "tool_result"

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// NewUserText builds a plain-text user message.
func NewUserText(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewToolResultMessage builds the one-element tool_result user message the
// agent loop appends after dispatching a tool call.
func NewToolResultMessage(toolUseID, content string, isError bool) Message {
	return Message{
		Role: RoleUser,
		Content: []ContentBlock{{
			Type:      "tool_result",
			ToolUseID: toolUseID,
			Content:   content,
			IsError:   isError,
		}},
	}
}

// Tool is a tool definition as sent to the model: a stable name, a
// human-readable description, and a JSON-Schema-shaped input_schema.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolResult is the outcome of dispatching one tool call. Content is the
// full human-readable output, already truncated by the executor if
// needed.
type ToolResult struct {
	Content string
	IsError bool
}

// Usage is the per-turn token/cost accounting reported by a provider's
// MessageEnd event.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CacheRead    int
	CacheWrite   int
	Model        string
	CostUSD      float64
}

// SessionStats is the cumulative, monotonically increasing (except Turns,
// which counts user messages) usage total for one agent's lifetime.
type SessionStats struct {
	TotalInputTokens  int
	TotalOutputTokens int
	TotalCostUSD      float64
	Turns             int
	Model             string
}

// Add folds one turn's usage into the running totals.
func (s *SessionStats) Add(u Usage) {
	s.TotalInputTokens += u.InputTokens
	s.TotalOutputTokens += u.OutputTokens
	s.TotalCostUSD += u.CostUSD
	if u.Model != "" {
		s.Model = u.Model
	}
}
