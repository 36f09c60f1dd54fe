package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/message"
)

// WriteTool writes content to a file, creating parent directories as
// needed.
type WriteTool struct{}

func NewWriteTool() *WriteTool { return &WriteTool{} }

func (t *WriteTool) Definition() message.Tool {
	return message.Tool{
		Name:        "Write",
		Description: "Writes content to a file on the local filesystem.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "The absolute path to the file to write."},
				"content": {"type": "string", "description": "The content to write to the file."}
			},
			"required": ["path", "content"]
		}`),
	}
}

type writeInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage) (message.ToolResult, error) {
	var args writeInput
	if err := json.Unmarshal(input, &args); err != nil {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Write", Reason: "Invalid arguments: " + err.Error()}
	}
	if args.Path == "" {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Write", Reason: "Missing required parameter: path"}
	}
	if args.Content == "" {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Write", Reason: "Missing required parameter: content"}
	}

	if parent := filepath.Dir(args.Path); parent != "." {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return message.ToolResult{}, &kerrors.Io{Underlying: err}
		}
	}
	if err := os.WriteFile(args.Path, []byte(args.Content), 0600); err != nil {
		return message.ToolResult{}, &kerrors.Io{Underlying: err}
	}

	return message.ToolResult{
		Content: fmt.Sprintf("Successfully wrote %d bytes to %s", len(args.Content), args.Path),
		IsError: false,
	}, nil
}
