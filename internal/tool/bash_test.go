package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBashEcho(t *testing.T) {
	tool := NewBashTool()
	input, _ := json.Marshal(map[string]any{"command": "echo hello"})

	result, err := tool.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello") {
		t.Fatalf("expected output to contain 'hello', got %q", result.Content)
	}
}

func TestBashBlocksDangerousCommand(t *testing.T) {
	tool := NewBashTool()
	input, _ := json.Marshal(map[string]any{"command": "rm -rf /"})

	result, err := tool.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected blocked command to return an errored result")
	}
	want := "Blocked dangerous command: rm -rf / (root filesystem)"
	if result.Content != want {
		t.Fatalf("got %q, want %q", result.Content, want)
	}
}

func TestBashTruncatesLongOutput(t *testing.T) {
	tool := NewBashTool()
	input, _ := json.Marshal(map[string]any{"command": "yes x | head -c 40000"})

	result, err := tool.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasSuffix(result.Content, "\n... (output truncated)") {
		t.Fatalf("expected truncation suffix, got suffix of: %q", result.Content[len(result.Content)-40:])
	}
	if len(result.Content) > maxBashOutputBytes+len("\n... (output truncated)") {
		t.Fatalf("truncated output too long: %d bytes", len(result.Content))
	}
}

func TestBashMissingCommand(t *testing.T) {
	tool := NewBashTool()
	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error for missing command parameter")
	}
}

func TestTruncateUTF8SnapsToRuneBoundary(t *testing.T) {
	// "é" is 2 bytes; cutting mid-rune must back off to the boundary.
	s := strings.Repeat("é", 10)
	got := truncateUTF8(s, 5)
	if len(got) != 4 {
		t.Fatalf("expected 4 bytes (2 full runes), got %d: %q", len(got), got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated output is not valid UTF-8: %q", got)
	}
}

func TestTruncateUTF8ShortStringUnchanged(t *testing.T) {
	if got := truncateUTF8("abc", 10); got != "abc" {
		t.Fatalf("expected input unchanged, got %q", got)
	}
}
