package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sacenox/kanata/internal/kerrors"
)

func TestReadReturnsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0600); err != nil {
		t.Fatalf("setup write: %v", err)
	}

	tool := NewReadTool()
	input, _ := json.Marshal(map[string]any{"path": path})

	result, err := tool.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content)
	}
	if result.Content != "hello world" {
		t.Fatalf("got %q, want %q", result.Content, "hello world")
	}
}

func TestReadMissingFileReturnsFileNotFound(t *testing.T) {
	tool := NewReadTool()
	input, _ := json.Marshal(map[string]any{"path": filepath.Join(t.TempDir(), "nope.txt")})

	_, err := tool.Execute(context.Background(), input)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if _, ok := err.(*kerrors.FileNotFound); !ok {
		t.Fatalf("expected *kerrors.FileNotFound, got %T (%v)", err, err)
	}
}

func TestReadMissingPathParameter(t *testing.T) {
	tool := NewReadTool()
	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error for missing path parameter")
	}
}
