package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/keypool"
	"github.com/sacenox/kanata/internal/message"
	"github.com/sacenox/kanata/internal/retry"
)

// GeminiTransport streams chat completions from the Google Gemini
// streamGenerateContent API.
type GeminiTransport struct {
	pool   *keypool.Pool
	client *http.Client
}

func (t *GeminiTransport) Name() string { return "gemini" }

type geminiPart struct {
	Text         string          `json:"text,omitempty"`
	FunctionCall json.RawMessage `json:"functionCall,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"systemInstruction,omitempty"`
	Tools             []geminiTool             `json:"tools,omitempty"`
}

// contentAsText renders a message's content as a single text part. Plain
// strings pass through; block-array content (assistant tool_use turns,
// tool_result user turns) is serialized as JSON, preserving the tool-call
// context in the history the model sees.
func contentAsText(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	b, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	return string(b)
}

func toGeminiRole(r message.Role) string {
	if r == message.RoleAssistant {
		return "model"
	}
	return "user"
}

func (t *GeminiTransport) Stream(ctx context.Context, model, system string, messages []message.Message, tools []message.Tool) (<-chan message.StreamEvent, error) {
	key, ok := t.pool.Next()
	if !ok {
		return nil, &kerrors.ConfigError{Message: "gemini key pool exhausted"}
	}

	body := geminiRequest{}
	for _, m := range messages {
		body.Contents = append(body.Contents, geminiContent{
			Role:  toGeminiRole(m.Role),
			Parts: []geminiPart{{Text: contentAsText(m.Content)}},
		})
	}
	if system != "" {
		body.SystemInstruction = &geminiSystemInstruction{Parts: []geminiPart{{Text: system}}}
	}
	if len(tools) > 0 {
		decls := make([]geminiFunctionDeclaration, len(tools))
		for i, tl := range tools {
			decls[i] = geminiFunctionDeclaration{Name: tl.Name, Description: tl.Description, Parameters: tl.InputSchema}
		}
		body.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &kerrors.Json{Underlying: err}
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s", model, key)

	resp, err := retry.Do(ctx, func(attemptCtx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
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
		parseGeminiSSE(ctx, model, resp.Body, ch)
	}()
	return ch, nil
}

// parseGeminiSSE normalizes Gemini chunks. A single functionCall part must
// become three separate events (Start, Delta, End) even though the whole
// call arrives in one chunk; the channel itself is the poll boundary, so
// sending the three in sequence gives every receiver the same
// one-event-per-poll view without extra pending state.
func parseGeminiSSE(ctx context.Context, model string, body io.Reader, ch chan<- message.StreamEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	usage := message.Usage{Model: model}
	sawStop := false
	sawAnyUsage := false

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var chunk map[string]any
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if um, ok := chunk["usageMetadata"].(map[string]any); ok {
			sawAnyUsage = true
			usage.InputTokens = intField(um, "promptTokenCount")
			usage.OutputTokens = intField(um, "candidatesTokenCount")
		}

		candidates, _ := chunk["candidates"].([]any)
		if len(candidates) == 0 {
			continue
		}
		candidate, _ := candidates[0].(map[string]any)
		if candidate == nil {
			continue
		}

		if content, ok := candidate["content"].(map[string]any); ok {
			parts, _ := content["parts"].([]any)
			for _, rp := range parts {
				part, _ := rp.(map[string]any)
				if part == nil {
					continue
				}
				if text, ok := part["text"].(string); ok && text != "" {
					ch <- message.StreamEvent{Type: message.EventTextDelta, Text: text}
				}
				if fc, ok := part["functionCall"].(map[string]any); ok {
					name, _ := fc["name"].(string)
					args, _ := fc["args"].(map[string]any)
					argsJSON, _ := json.Marshal(args)
					ch <- message.StreamEvent{Type: message.EventToolUseStart, ToolUseID: "gemini_" + name, ToolUseName: name}
					ch <- message.StreamEvent{Type: message.EventToolUseDelta, JSONFragment: string(argsJSON)}
					ch <- message.StreamEvent{Type: message.EventToolUseEnd}
				}
			}
		}

		if reason, _ := candidate["finishReason"].(string); reason == "STOP" {
			sawStop = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("gemini sse scanner ended")
	}

	if sawStop || sawAnyUsage {
		usage.CostUSD = CostUSD(usage.Model, usage.InputTokens, usage.OutputTokens)
		ch <- message.StreamEvent{Type: message.EventMessageEnd, Usage: usage}
	}
}
