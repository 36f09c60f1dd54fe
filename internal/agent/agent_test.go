package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sacenox/kanata/internal/message"
	"github.com/sacenox/kanata/internal/provider"
	"github.com/sacenox/kanata/internal/tool"
)

// fakeResolver always returns the same transport regardless of model,
// letting tests drive the agent loop with a scripted provider.MockTransport.
type fakeResolver struct {
	transport provider.Transport
}

func (r *fakeResolver) Resolve(model string) (provider.Transport, error) {
	return r.transport, nil
}

// echoTool is a minimal Executor test double: it returns its "text" input
// field verbatim, used to exercise the tool round-trip scenarios.
type echoTool struct{}

func (echoTool) Definition() message.Tool {
	return message.Tool{Name: "echo", Description: "echoes text", InputSchema: json.RawMessage(`{"type":"object"}`)}
}

func (echoTool) Execute(ctx context.Context, input json.RawMessage) (message.ToolResult, error) {
	var args struct {
		Text string `json:"text"`
	}
	json.Unmarshal(input, &args)
	return message.ToolResult{Content: args.Text}, nil
}

func drain(ch <-chan message.AgentEvent) []message.AgentEvent {
	var events []message.AgentEvent
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestPlainTextScenario(t *testing.T) {
	transport := provider.NewMock("mock", provider.MockResponse{
		Text:  "I can help with that.",
		Usage: message.Usage{InputTokens: 5, OutputTokens: 8},
	})
	a := New(&fakeResolver{transport}, tool.NewDispatcher(), "mock-model", "")

	events := drain(a.SendMessage(context.Background(), "Hello"))

	if events[0].Type != message.AgentThinking {
		t.Fatalf("expected first event Thinking, got %+v", events[0])
	}
	foundText := false
	for _, e := range events {
		if e.Type == message.AgentTextDelta && e.Text == "I can help with that." {
			foundText = true
		}
	}
	if !foundText {
		t.Fatalf("expected TextDelta(\"I can help with that.\"), got %+v", events)
	}
	last := events[len(events)-1]
	if last.Type != message.AgentDone {
		t.Fatalf("expected final event Done, got %+v", last)
	}
	if last.Stats.Turns != 1 || last.Stats.TotalInputTokens != 5 || last.Stats.TotalOutputTokens != 8 {
		t.Fatalf("unexpected stats: %+v", last.Stats)
	}
}

func TestToolRoundTripScenario(t *testing.T) {
	transport := provider.NewMock("mock",
		provider.MockResponse{ToolUseName: "echo", ToolUseInput: `{"text":"ping"}`},
		provider.MockResponse{Text: "Done with tool."},
	)
	dispatcher := tool.NewDispatcher()
	dispatcher.Register(echoTool{})
	a := New(&fakeResolver{transport}, dispatcher, "mock-model", "")

	events := drain(a.SendMessage(context.Background(), "use echo"))

	var sawToolStart, sawToolEnd, sawFinalText bool
	for _, e := range events {
		if e.Type == message.AgentToolStart && e.ToolName == "echo" {
			sawToolStart = true
		}
		if e.Type == message.AgentToolEnd && e.ToolName == "echo" && e.ResultPreview == "ping" {
			sawToolEnd = true
		}
		if e.Type == message.AgentTextDelta && e.Text == "Done with tool." {
			sawFinalText = true
		}
	}
	if !sawToolStart || !sawToolEnd || !sawFinalText {
		t.Fatalf("missing expected events: start=%v end=%v text=%v, events=%+v", sawToolStart, sawToolEnd, sawFinalText, events)
	}
}

func TestUnknownToolScenario(t *testing.T) {
	transport := provider.NewMock("mock",
		provider.MockResponse{ToolUseName: "nonexistent_tool", ToolUseInput: `{}`},
		provider.MockResponse{Text: "ok"},
	)
	a := New(&fakeResolver{transport}, tool.NewDispatcher(), "mock-model", "")

	events := drain(a.SendMessage(context.Background(), "use nonexistent"))

	found := false
	for _, e := range events {
		if e.Type == message.AgentToolEnd && strings.Contains(e.ResultPreview, "Unknown tool") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ToolEnd with 'Unknown tool' in result_preview, got %+v", events)
	}
	last := events[len(events)-1]
	if last.Type != message.AgentDone {
		t.Fatalf("expected the follow-up turn to still run to completion, got %+v", last)
	}
}

func TestDepthLimitScenario(t *testing.T) {
	transport := provider.NewMock("mock", provider.MockResponse{ToolUseName: "echo", ToolUseInput: `{"text":"hi"}`})
	dispatcher := tool.NewDispatcher()
	dispatcher.Register(echoTool{})
	a := New(&fakeResolver{transport}, dispatcher, "mock-model", "")

	events := drain(a.SendMessage(context.Background(), "loop forever"))

	toolStarts := 0
	for _, e := range events {
		if e.Type == message.AgentToolStart {
			toolStarts++
		}
	}
	if toolStarts != maxToolTurns {
		t.Fatalf("expected exactly %d ToolStart events, got %d", maxToolTurns, toolStarts)
	}

	foundDepthError := false
	for _, e := range events {
		if e.Type == message.AgentError && strings.Contains(e.ErrMessage, "maximum tool recursion") {
			foundDepthError = true
		}
	}
	if !foundDepthError {
		t.Fatalf("expected a final Error mentioning maximum tool recursion, got %+v", events)
	}
}

func TestUsageAccumulationAcrossTurns(t *testing.T) {
	transport := provider.NewMock("mock", provider.MockResponse{
		Text:  "ok",
		Usage: message.Usage{InputTokens: 10, OutputTokens: 20, CostUSD: 0.5},
	})
	a := New(&fakeResolver{transport}, tool.NewDispatcher(), "mock-model", "")

	for i := 0; i < 3; i++ {
		drain(a.SendMessage(context.Background(), "hi"))
	}

	stats := a.Stats()
	if stats.Turns != 3 {
		t.Fatalf("expected 3 turns, got %d", stats.Turns)
	}
	if stats.TotalInputTokens != 30 || stats.TotalOutputTokens != 60 {
		t.Fatalf("unexpected accumulated usage: %+v", stats)
	}
	if stats.TotalCostUSD < 1.49 || stats.TotalCostUSD > 1.51 {
		t.Fatalf("unexpected accumulated cost: %v", stats.TotalCostUSD)
	}
}
