package message

// StreamEventType tags a normalized provider stream event. Every
// transport emits this same alphabet regardless of wire protocol.
type StreamEventType int

const (
	EventTextDelta StreamEventType = iota
	EventToolUseStart
	EventToolUseDelta
	EventToolUseEnd
	EventMessageEnd
	EventError
)

// StreamEvent is one item of a transport's normalized output sequence.
// Only the fields relevant to Type are populated.
type StreamEvent struct {
	Type StreamEventType

	Text string // EventTextDelta

	ToolUseID   string // EventToolUseStart
	ToolUseName string // EventToolUseStart

	JSONFragment string // EventToolUseDelta

	Usage Usage // EventMessageEnd

	ErrMessage string // EventError
}

// AgentEventType tags a caller-visible event emitted by the agent loop.
// This is a distinct alphabet from StreamEventType:
// Thinking/ToolStart/ToolEnd/Done have no transport-level equivalent, and
// ToolUseStart/Delta/End never escape the agent loop (they are consumed
// while accumulating a tool call).
type AgentEventType int

const (
	AgentThinking AgentEventType = iota
	AgentTextDelta
	AgentToolStart
	AgentToolEnd
	AgentError
	AgentDone
)

// AgentEvent is one item in the sequence send_message returns to its
// caller.
type AgentEvent struct {
	Type AgentEventType

	Text string // AgentTextDelta

	ToolName     string // AgentToolStart, AgentToolEnd
	InputPreview string // AgentToolStart
	ResultPreview string // AgentToolEnd

	ErrMessage string // AgentError

	Stats SessionStats // AgentDone
}
