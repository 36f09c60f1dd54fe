package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGrepFindsPattern(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "f.go"), []byte("package main\nfunc Hello() {}\n"), 0600)

	tool := NewGrepTool()
	input, _ := json.Marshal(map[string]any{"pattern": "func Hello", "path": dir})

	result, err := tool.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "func Hello") {
		t.Fatalf("expected match, got %q", result.Content)
	}
}

func TestGrepNoMatches(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "f.go"), []byte("package main\n"), 0600)

	tool := NewGrepTool()
	input, _ := json.Marshal(map[string]any{"pattern": "ZZZZZ_NONEXISTENT_12345", "path": dir})

	result, err := tool.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "No matches") {
		t.Fatalf("expected no-match message, got %q", result.Content)
	}
}

func TestGrepWithGlobFilter(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "f.go"), []byte("target line\n"), 0600)
	os.WriteFile(filepath.Join(dir, "f.md"), []byte("target line\n"), 0600)

	tool := NewGrepTool()
	input, _ := json.Marshal(map[string]any{"pattern": "target line", "path": dir, "glob": "*.go"})

	result, err := tool.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "f.go") {
		t.Fatalf("expected f.go in results, got %q", result.Content)
	}
	if strings.Contains(result.Content, "f.md") {
		t.Fatalf("glob filter should have excluded f.md, got %q", result.Content)
	}
}
