// Package agent implements the bounded-depth conversational turn loop: it
// owns history and cumulative usage, drives one turn by consuming a
// transport's normalized event stream, assembles assistant content
// blocks, dispatches tool calls through the tool registry, and recurses
// until the model stops requesting tools.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sacenox/kanata/internal/message"
	"github.com/sacenox/kanata/internal/provider"
	"github.com/sacenox/kanata/internal/tool"
)

// maxToolTurns bounds the turn loop's recursion depth.
const maxToolTurns = 20

const (
	inputPreviewBytes  = 100
	resultPreviewBytes = 200
)

// Resolver picks a Transport for a model name. *provider.Router satisfies
// this directly.
type Resolver interface {
	Resolve(model string) (provider.Transport, error)
}

// Agent owns one conversation's history, cumulative session stats, the
// immutable system prompt, and the tool dispatcher. Two concurrent calls
// to SendMessage on the same Agent are not supported; callers serialize.
type Agent struct {
	resolver     Resolver
	dispatcher   *tool.Dispatcher
	model        string
	systemPrompt string

	mu      sync.Mutex
	history []message.Message
	stats   message.SessionStats
}

// New builds an Agent bound to a single model and system prompt.
func New(resolver Resolver, dispatcher *tool.Dispatcher, model, systemPrompt string) *Agent {
	return &Agent{
		resolver:     resolver,
		dispatcher:   dispatcher,
		model:        model,
		systemPrompt: systemPrompt,
		stats:        message.SessionStats{Model: model},
	}
}

// Stats returns a snapshot of cumulative usage.
func (a *Agent) Stats() message.SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// SendMessage performs one user turn and streams caller-visible events
// back on the returned channel, terminated by exactly one AgentDone.
func (a *Agent) SendMessage(ctx context.Context, text string) <-chan message.AgentEvent {
	ch := make(chan message.AgentEvent, 64)
	go func() {
		defer close(ch)

		a.mu.Lock()
		a.history = append(a.history, message.NewUserText(text))
		a.stats.Turns++
		a.mu.Unlock()

		a.runTurn(ctx, ch)

		ch <- message.AgentEvent{Type: message.AgentDone, Stats: a.Stats()}
	}()
	return ch
}

// pendingToolCall accumulates one in-flight tool_use block's fragments.
type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

type parsedToolCall struct {
	id    string
	name  string
	input json.RawMessage
}

// runTurn drives the turn loop. The recursion is expressed as a loop
// with an explicit depth counter rather than an actual recursive call;
// the two are equivalent, and the loop form keeps the accumulators local.
func (a *Agent) runTurn(ctx context.Context, ch chan<- message.AgentEvent) {
	for depth := 0; ; depth++ {
		if depth >= maxToolTurns {
			ch <- message.AgentEvent{
				Type:       message.AgentError,
				ErrMessage: fmt.Sprintf("Reached maximum tool recursion depth (%d)", maxToolTurns),
			}
			return
		}

		ch <- message.AgentEvent{Type: message.AgentThinking}

		transport, err := a.resolver.Resolve(a.model)
		if err != nil {
			ch <- message.AgentEvent{Type: message.AgentError, ErrMessage: err.Error()}
			return
		}

		a.mu.Lock()
		historySnapshot := append([]message.Message(nil), a.history...)
		a.mu.Unlock()

		stream, err := transport.Stream(ctx, a.model, a.systemPrompt, historySnapshot, a.dispatcher.Definitions())
		if err != nil {
			ch <- message.AgentEvent{Type: message.AgentError, ErrMessage: err.Error()}
			return
		}

		var textAccum strings.Builder
		var calls []*pendingToolCall
		var current *pendingToolCall
		var usage message.Usage

		for ev := range stream {
			switch ev.Type {
			case message.EventTextDelta:
				ch <- message.AgentEvent{Type: message.AgentTextDelta, Text: ev.Text}
				textAccum.WriteString(ev.Text)
			case message.EventToolUseStart:
				current = &pendingToolCall{id: ev.ToolUseID, name: ev.ToolUseName}
			case message.EventToolUseDelta:
				if current != nil {
					current.args.WriteString(ev.JSONFragment)
				}
			case message.EventToolUseEnd:
				if current != nil {
					calls = append(calls, current)
					current = nil
				}
			case message.EventMessageEnd:
				usage = ev.Usage
			case message.EventError:
				ch <- message.AgentEvent{Type: message.AgentError, ErrMessage: ev.ErrMessage}
			}
		}

		a.mu.Lock()
		a.stats.Add(usage)
		a.mu.Unlock()

		if textAccum.Len() == 0 && len(calls) == 0 {
			return
		}

		blocks := make([]message.ContentBlock, 0, 1+len(calls))
		if textAccum.Len() > 0 {
			blocks = append(blocks, message.ContentBlock{Type: "text", Text: textAccum.String()})
		}
		parsed := make([]parsedToolCall, len(calls))
		for i, c := range calls {
			raw := json.RawMessage(c.args.String())
			if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
				raw = json.RawMessage(`{}`)
			}
			blocks = append(blocks, message.ContentBlock{Type: "tool_use", ID: c.id, Name: c.name, Input: raw})
			parsed[i] = parsedToolCall{id: c.id, name: c.name, input: raw}
		}

		a.mu.Lock()
		a.history = append(a.history, message.Message{Role: message.RoleAssistant, Content: blocks})
		a.mu.Unlock()

		if len(parsed) == 0 {
			return
		}

		for _, c := range parsed {
			ch <- message.AgentEvent{
				Type:         message.AgentToolStart,
				ToolName:     c.name,
				InputPreview: preview(string(c.input), inputPreviewBytes),
			}
			result := a.dispatcher.Dispatch(ctx, c.name, c.input)
			ch <- message.AgentEvent{
				Type:          message.AgentToolEnd,
				ToolName:      c.name,
				ResultPreview: preview(result.Content, resultPreviewBytes),
			}

			a.mu.Lock()
			a.history = append(a.history, message.NewToolResultMessage(c.id, result.Content, result.IsError))
			a.mu.Unlock()
		}
		// Tool calls ran; loop recurses with depth+1.
	}
}

// preview truncates s to at most n bytes on a UTF-8 rune boundary,
// appending an ellipsis if it was shortened.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := n
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + "..."
}
