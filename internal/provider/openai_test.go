package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/sacenox/kanata/internal/message"
)

const openAISSEFixture = `data: {"model":"gpt-4o","choices":[{"delta":{"content":"Hi"}}]}

data: {"choices":[{"delta":{"tool_calls":[{"id":"call_1","function":{"name":"echo"}}]}}]}

data: {"choices":[{"delta":{"tool_calls":[{"id":"call_1","function":{"arguments":"{\"text\":\"hi\"}"}}]}}]}

data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":7,"completion_tokens":9}}

data: [DONE]

`

func TestOpenAIParseTextThenToolUseStream(t *testing.T) {
	ch := make(chan message.StreamEvent, 16)
	go func() {
		parseOpenAISSE(context.Background(), strings.NewReader(openAISSEFixture), ch)
		close(ch)
	}()

	var events []message.StreamEvent
	for e := range ch {
		events = append(events, e)
	}

	if len(events) != 5 {
		t.Fatalf("expected 5 events (TextDelta, Start, Delta, End, MessageEnd), got %d: %+v", len(events), events)
	}
	if events[0].Type != message.EventTextDelta || events[0].Text != "Hi" {
		t.Fatalf("expected TextDelta(Hi), got %+v", events[0])
	}
	if events[1].Type != message.EventToolUseStart || events[1].ToolUseName != "echo" || events[1].ToolUseID != "call_1" {
		t.Fatalf("expected ToolUseStart(call_1, echo), got %+v", events[1])
	}
	if events[2].Type != message.EventToolUseDelta || events[2].JSONFragment != `{"text":"hi"}` {
		t.Fatalf("expected ToolUseDelta, got %+v", events[2])
	}
	if events[3].Type != message.EventToolUseEnd {
		t.Fatalf("expected ToolUseEnd, got %+v", events[3])
	}
	last := events[4]
	if last.Type != message.EventMessageEnd {
		t.Fatalf("expected MessageEnd, got %+v", last)
	}
	if last.Usage.InputTokens != 7 || last.Usage.OutputTokens != 9 {
		t.Fatalf("expected usage{7,9}, got %+v", last.Usage)
	}
}

const openAISSEMissingToolCallIDFixture = `data: {"choices":[{"delta":{"tool_calls":[{"function":{"name":"echo"}}]}}]}

data: [DONE]

`

func TestOpenAIToolCallWithoutIDDefaultsToTool0(t *testing.T) {
	ch := make(chan message.StreamEvent, 16)
	go func() {
		parseOpenAISSE(context.Background(), strings.NewReader(openAISSEMissingToolCallIDFixture), ch)
		close(ch)
	}()

	var events []message.StreamEvent
	for e := range ch {
		events = append(events, e)
	}
	if len(events) == 0 || events[0].ToolUseID != "tool_0" {
		t.Fatalf("expected first event ToolUseID tool_0, got %+v", events)
	}
}
