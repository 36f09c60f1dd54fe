package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/sacenox/kanata/internal/message"
)

const anthropicSSEFixture = "event: message_start\n" +
	"data: {\"message\":{\"usage\":{\"input_tokens\":5},\"model\":\"claude-sonnet-4\"}}\n\n" +
	"event: content_block_start\n" +
	"data: {\"index\":0,\"content_block\":{\"type\":\"text\"}}\n\n" +
	"event: content_block_delta\n" +
	"data: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n" +
	"event: content_block_stop\n" +
	"data: {\"index\":0}\n\n" +
	"event: message_delta\n" +
	"data: {\"usage\":{\"output_tokens\":8}}\n\n" +
	"event: message_stop\n" +
	"data: {}\n\n"

func TestAnthropicParsePlainTextStream(t *testing.T) {
	ch := make(chan message.StreamEvent, 16)
	go func() {
		parseAnthropicSSE(context.Background(), strings.NewReader(anthropicSSEFixture), ch)
		close(ch)
	}()

	var events []message.StreamEvent
	for e := range ch {
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events (TextDelta, MessageEnd), got %d: %+v", len(events), events)
	}
	if events[0].Type != message.EventTextDelta || events[0].Text != "Hi" {
		t.Fatalf("expected first event TextDelta(Hi), got %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Type != message.EventMessageEnd {
		t.Fatalf("expected stream to end with MessageEnd, got %+v", last)
	}
	if last.Usage.InputTokens != 5 || last.Usage.OutputTokens != 8 {
		t.Fatalf("expected usage{5,8}, got %+v", last.Usage)
	}
}

const anthropicSSEToolUseFixture = "event: message_start\n" +
	"data: {\"message\":{\"usage\":{\"input_tokens\":3},\"model\":\"claude-sonnet-4\"}}\n\n" +
	"event: content_block_start\n" +
	"data: {\"index\":0,\"content_block\":{\"type\":\"tool_use\",\"id\":\"t1\",\"name\":\"echo\"}}\n\n" +
	"event: content_block_delta\n" +
	"data: {\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"text\\\":\\\"hi\\\"}\"}}\n\n" +
	"event: content_block_stop\n" +
	"data: {\"index\":0}\n\n" +
	"event: message_delta\n" +
	"data: {\"usage\":{\"output_tokens\":2}}\n\n" +
	"event: message_stop\n" +
	"data: {}\n\n"

func TestAnthropicParseToolUseStreamWellFormed(t *testing.T) {
	ch := make(chan message.StreamEvent, 16)
	go func() {
		parseAnthropicSSE(context.Background(), strings.NewReader(anthropicSSEToolUseFixture), ch)
		close(ch)
	}()

	var events []message.StreamEvent
	for e := range ch {
		events = append(events, e)
	}

	if len(events) != 4 {
		t.Fatalf("expected 4 events (Start, Delta, End, MessageEnd), got %d: %+v", len(events), events)
	}
	if events[0].Type != message.EventToolUseStart || events[0].ToolUseName != "echo" {
		t.Fatalf("expected ToolUseStart(echo), got %+v", events[0])
	}
	if events[1].Type != message.EventToolUseDelta {
		t.Fatalf("expected ToolUseDelta, got %+v", events[1])
	}
	if events[2].Type != message.EventToolUseEnd {
		t.Fatalf("expected ToolUseEnd, got %+v", events[2])
	}
	if events[3].Type != message.EventMessageEnd {
		t.Fatalf("expected MessageEnd, got %+v", events[3])
	}
}
