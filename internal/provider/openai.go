package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rs/zerolog/log"
	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/keypool"
	"github.com/sacenox/kanata/internal/message"
	"github.com/sacenox/kanata/internal/retry"
)

// OpenAITransport streams chat completions from the OpenAI Chat
// Completions API, parameterized by base URL so it also serves
// DeepSeek, xAI, and Qwen's OpenAI-compatible endpoints. Request bodies are
// built with the go-openai SDK's types; the response is parsed by hand
// chunk-by-chunk since the SDK's own stream reader discards the raw usage
// and tool-call-index bookkeeping this transport needs to normalize into
// message.StreamEvent.
type OpenAITransport struct {
	pool    *keypool.Pool
	client  *http.Client
	baseURL string
}

func (t *OpenAITransport) Name() string { return "openai" }

// toOpenAIMessages converts the provider-agnostic message log into the SDK's
// request shape, splitting each assistant content-block message into one
// message carrying text and tool_calls, and each tool_result block into its
// own role:"tool" message.
func toOpenAIMessages(messages []message.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	for _, m := range messages {
		switch content := m.Content.(type) {
		case string:
			out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: content})
		case []message.ContentBlock:
			out = append(out, fromContentBlocks(string(m.Role), content)...)
		}
	}
	return out
}

func fromContentBlocks(role string, blocks []message.ContentBlock) []openai.ChatCompletionMessage {
	var text strings.Builder
	var toolCalls []openai.ToolCall
	var toolResults []openai.ChatCompletionMessage
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   b.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      b.Name,
					Arguments: string(b.Input),
				},
			})
		case "tool_result":
			toolResults = append(toolResults, openai.ChatCompletionMessage{
				Role:       "tool",
				Content:    b.Content,
				ToolCallID: b.ToolUseID,
			})
		}
	}
	if text.Len() == 0 && len(toolCalls) == 0 {
		return toolResults
	}
	head := openai.ChatCompletionMessage{Role: role, Content: text.String(), ToolCalls: toolCalls}
	return append([]openai.ChatCompletionMessage{head}, toolResults...)
}

// toOpenAITools converts provider-agnostic tool definitions to the SDK's
// function-tool shape. Parameters is passed through as json.RawMessage to
// preserve deterministic key ordering.
func toOpenAITools(tools []message.Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(tools))
	for i, tl := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tl.Name,
				Description: tl.Description,
				Parameters:  tl.InputSchema,
			},
		}
	}
	return out
}

func (t *OpenAITransport) Stream(ctx context.Context, model, system string, messages []message.Message, tools []message.Tool) (<-chan message.StreamEvent, error) {
	key, ok := t.pool.Next()
	if !ok {
		return nil, &kerrors.ConfigError{Message: "openai-compatible key pool exhausted"}
	}

	allMessages := messages
	if system != "" {
		allMessages = append([]message.Message{{Role: "system", Content: system}}, messages...)
	}

	body := openai.ChatCompletionRequest{
		Model:         model,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		Messages:      toOpenAIMessages(allMessages),
		Tools:         toOpenAITools(tools),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &kerrors.Json{Underlying: err}
	}

	resp, err := retry.Do(ctx, func(attemptCtx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+key)
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
		parseOpenAISSE(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// toolCallState tracks an in-progress streamed tool_calls[i] entry so a
// ToolUseStart is emitted exactly once per index.
type toolCallState struct {
	started bool
	id      string
}

func parseOpenAISSE(ctx context.Context, body io.Reader, ch chan<- message.StreamEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	states := map[int]*toolCallState{}
	var usage message.Usage
	// toolCallOpen is true between a ToolUseStart and its ToolUseEnd, so
	// every started call is closed before the next one starts.
	toolCallOpen := false

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk map[string]any
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if model, ok := chunk["model"].(string); ok && model != "" {
			usage.Model = model
		}

		if u, ok := chunk["usage"].(map[string]any); ok {
			if v := intField(u, "prompt_tokens"); v > 0 {
				usage.InputTokens = v
			}
			if v := intField(u, "completion_tokens"); v > 0 {
				usage.OutputTokens = v
			}
		}

		choices, _ := chunk["choices"].([]any)
		if len(choices) == 0 {
			continue
		}
		choice, _ := choices[0].(map[string]any)
		if choice == nil {
			continue
		}

		if delta, ok := choice["delta"].(map[string]any); ok {
			if text, ok := delta["content"].(string); ok && text != "" {
				ch <- message.StreamEvent{Type: message.EventTextDelta, Text: text}
			}
			if rawCalls, ok := delta["tool_calls"].([]any); ok {
				for _, rc := range rawCalls {
					tc, _ := rc.(map[string]any)
					if tc == nil {
						continue
					}
					idx := intField(tc, "index")
					st, exists := states[idx]
					if !exists {
						st = &toolCallState{}
						states[idx] = st
					}
					fn, _ := tc["function"].(map[string]any)
					if fn == nil {
						continue
					}
					if name, _ := fn["name"].(string); name != "" && !st.started {
						id, _ := tc["id"].(string)
						if id == "" {
							id = "tool_0"
						}
						if toolCallOpen {
							ch <- message.StreamEvent{Type: message.EventToolUseEnd}
						}
						st.started = true
						st.id = id
						toolCallOpen = true
						ch <- message.StreamEvent{Type: message.EventToolUseStart, ToolUseID: id, ToolUseName: name}
					}
					if args, _ := fn["arguments"].(string); args != "" {
						ch <- message.StreamEvent{Type: message.EventToolUseDelta, JSONFragment: args}
					}
				}
			}
		}

		if reason, _ := choice["finish_reason"].(string); reason == "tool_calls" && toolCallOpen {
			toolCallOpen = false
			ch <- message.StreamEvent{Type: message.EventToolUseEnd}
		}
	}

	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("openai sse scanner ended")
	}

	if toolCallOpen {
		ch <- message.StreamEvent{Type: message.EventToolUseEnd}
	}

	usage.CostUSD = CostUSD(usage.Model, usage.InputTokens, usage.OutputTokens)
	ch <- message.StreamEvent{Type: message.EventMessageEnd, Usage: usage}
}
