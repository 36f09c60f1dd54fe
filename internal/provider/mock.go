package provider

import (
	"context"
	"sync/atomic"

	"github.com/sacenox/kanata/internal/message"
)

// MockTransport is a test double implementing Transport. Each call to
// Stream replays the next scripted response in turn, or repeats the last
// one if Responses is exhausted.
type MockTransport struct {
	NameStr   string
	Responses []MockResponse
	call      atomic.Int64
}

// MockResponse is one canned stream: an optional tool call (emitted first
// when ToolUseName is set), an optional text answer, then a MessageEnd
// carrying Usage.
type MockResponse struct {
	Text         string
	ToolUseName  string
	ToolUseInput string // raw JSON
	Usage        message.Usage
}

func NewMock(name string, responses ...MockResponse) *MockTransport {
	return &MockTransport{NameStr: name, Responses: responses}
}

func (t *MockTransport) Name() string { return t.NameStr }

func (t *MockTransport) Stream(ctx context.Context, model, system string, messages []message.Message, tools []message.Tool) (<-chan message.StreamEvent, error) {
	idx := int(t.call.Add(1)) - 1
	if idx >= len(t.Responses) {
		idx = len(t.Responses) - 1
	}
	resp := t.Responses[idx]

	ch := make(chan message.StreamEvent, 8)
	go func() {
		defer close(ch)
		if resp.ToolUseName != "" {
			ch <- message.StreamEvent{Type: message.EventToolUseStart, ToolUseID: "mock_" + resp.ToolUseName, ToolUseName: resp.ToolUseName}
			if resp.ToolUseInput != "" {
				ch <- message.StreamEvent{Type: message.EventToolUseDelta, JSONFragment: resp.ToolUseInput}
			}
			ch <- message.StreamEvent{Type: message.EventToolUseEnd}
		}
		if resp.Text != "" {
			ch <- message.StreamEvent{Type: message.EventTextDelta, Text: resp.Text}
		}
		ch <- message.StreamEvent{Type: message.EventMessageEnd, Usage: resp.Usage}
	}()
	return ch, nil
}
