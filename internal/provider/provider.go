// Package provider implements the three streaming LLM wire protocols
// (Anthropic Messages, OpenAI Chat Completions, Google Gemini
// generateContent), normalizing each into the shared message.StreamEvent
// alphabet, plus the Router that selects a transport by model-name prefix
// and the Pricing table used to cost a turn's usage.
package provider

import (
	"context"

	"github.com/sacenox/kanata/internal/message"
)

// Transport opens one streaming chat call against a provider and returns
// the normalized event sequence over a channel. The channel is closed
// when the stream ends (successfully with a final EventMessageEnd, or
// after an EventError). If ctx is canceled, the transport stops producing
// events at the next suspension point and closes the channel.
type Transport interface {
	// Name identifies the transport for logging ("anthropic", "openai",
	// "gemini").
	Name() string

	// Stream issues the streaming request and returns the normalized
	// event channel. system may be empty, in which case the system
	// field is omitted from the request body entirely.
	Stream(ctx context.Context, model, system string, messages []message.Message, tools []message.Tool) (<-chan message.StreamEvent, error)
}
