package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/keypool"
	"github.com/sacenox/kanata/internal/message"
	"github.com/sacenox/kanata/internal/retry"
)

const anthropicVersion = "2023-06-01"
const anthropicMaxTokens = 16384

// AnthropicTransport streams chat completions from the Anthropic Messages
// API.
type AnthropicTransport struct {
	pool   *keypool.Pool
	client *http.Client
}

func (t *AnthropicTransport) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string               `json:"model"`
	MaxTokens int                  `json:"max_tokens"`
	Stream    bool                 `json:"stream"`
	Messages  []message.Message    `json:"messages"`
	System    string               `json:"system,omitempty"`
	Tools     []anthropicToolSpec  `json:"tools,omitempty"`
}

type anthropicToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

func (t *AnthropicTransport) Stream(ctx context.Context, model, system string, messages []message.Message, tools []message.Tool) (<-chan message.StreamEvent, error) {
	key, ok := t.pool.Next()
	if !ok {
		return nil, &kerrors.ConfigError{Message: "anthropic key pool exhausted"}
	}

	body := anthropicRequest{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		Stream:    true,
		Messages:  messages,
	}
	if system != "" {
		body.System = system
	}
	// Tool descriptors must be omitted entirely if empty: some endpoints
	// reject a literal `"tools": []`.
	if len(tools) > 0 {
		body.Tools = make([]anthropicToolSpec, len(tools))
		for i, tl := range tools {
			body.Tools[i] = anthropicToolSpec{Name: tl.Name, Description: tl.Description, InputSchema: tl.InputSchema}
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &kerrors.Json{Underlying: err}
	}

	resp, err := retry.Do(ctx, func(attemptCtx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, "https://api.anthropic.com/v1/messages", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", anthropicVersion)
		req.Header.Set("content-type", "application/json")
		return t.client.Do(req)
	})
	if err != nil {
		if merr, ok := err.(*kerrors.ModelError); ok && (merr.Status == http.StatusUnauthorized || merr.Status == http.StatusForbidden) {
			t.pool.MarkDead(key)
		}
		return nil, err
	}

	ch := make(chan message.StreamEvent)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		parseAnthropicSSE(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// anthropicBlockTracker maps a content-block index to whether it is a
// tool_use block, so content_block_delta events can be routed correctly.
type anthropicBlockTracker struct {
	isToolUse map[int]bool
}

func parseAnthropicSSE(ctx context.Context, body io.Reader, ch chan<- message.StreamEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	tracker := &anthropicBlockTracker{isToolUse: map[int]bool{}}
	var usage message.Usage
	var eventName string
	var dataLines []string

	flush := func() {
		if eventName == "" {
			return
		}
		data := strings.Join(dataLines, "\n")
		handleAnthropicEvent(eventName, data, tracker, &usage, ch)
		eventName = ""
		dataLines = nil
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := scanner.Text()
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("anthropic sse scanner ended")
	}
}

func handleAnthropicEvent(event, data string, tracker *anthropicBlockTracker, usage *message.Usage, ch chan<- message.StreamEvent) {
	var raw map[string]any
	if data != "" {
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			return
		}
	}

	switch event {
	case "message_start":
		if m, ok := raw["message"].(map[string]any); ok {
			if u, ok := m["usage"].(map[string]any); ok {
				usage.InputTokens = intField(u, "input_tokens")
				usage.CacheRead = intField(u, "cache_read_input_tokens")
				usage.CacheWrite = intField(u, "cache_creation_input_tokens")
			}
			if mm, ok := m["model"].(string); ok {
				usage.Model = mm
			}
		}

	case "content_block_start":
		idx := intField(raw, "index")
		if cb, ok := raw["content_block"].(map[string]any); ok {
			if t, _ := cb["type"].(string); t == "tool_use" {
				tracker.isToolUse[idx] = true
				id, _ := cb["id"].(string)
				name, _ := cb["name"].(string)
				ch <- message.StreamEvent{Type: message.EventToolUseStart, ToolUseID: id, ToolUseName: name}
			}
		}

	case "content_block_delta":
		if delta, ok := raw["delta"].(map[string]any); ok {
			switch delta["type"] {
			case "text_delta":
				if text, ok := delta["text"].(string); ok {
					ch <- message.StreamEvent{Type: message.EventTextDelta, Text: text}
				}
			case "input_json_delta":
				if frag, ok := delta["partial_json"].(string); ok {
					ch <- message.StreamEvent{Type: message.EventToolUseDelta, JSONFragment: frag}
				}
			}
		}

	case "content_block_stop":
		idx := intField(raw, "index")
		if tracker.isToolUse[idx] {
			ch <- message.StreamEvent{Type: message.EventToolUseEnd}
		}

	case "message_delta":
		if u, ok := raw["usage"].(map[string]any); ok {
			usage.OutputTokens = intField(u, "output_tokens")
		}

	case "message_stop":
		usage.CostUSD = CostUSD(usage.Model, usage.InputTokens, usage.OutputTokens)
		ch <- message.StreamEvent{Type: message.EventMessageEnd, Usage: *usage}

	case "error":
		if e, ok := raw["error"].(map[string]any); ok {
			msg, _ := e["message"].(string)
			ch <- message.StreamEvent{Type: message.EventError, ErrMessage: msg}
		}
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
