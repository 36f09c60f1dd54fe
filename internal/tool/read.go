package tool

import (
	"context"
	"encoding/json"
	"os"

	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/message"
)

// ReadTool reads a file from disk and returns its contents verbatim.
type ReadTool struct{}

func NewReadTool() *ReadTool { return &ReadTool{} }

func (t *ReadTool) Definition() message.Tool {
	return message.Tool{
		Name:        "Read",
		Description: "Reads a file from the local filesystem.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "The absolute path to the file to read."}
			},
			"required": ["path"]
		}`),
	}
}

type readInput struct {
	Path string `json:"path"`
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage) (message.ToolResult, error) {
	var args readInput
	if err := json.Unmarshal(input, &args); err != nil {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Read", Reason: "Invalid arguments: " + err.Error()}
	}
	if args.Path == "" {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Read", Reason: "Missing required parameter: path"}
	}

	content, err := os.ReadFile(args.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return message.ToolResult{}, &kerrors.FileNotFound{Path: args.Path}
		}
		return message.ToolResult{}, &kerrors.Io{Underlying: err}
	}

	return message.ToolResult{Content: string(content), IsError: false}, nil
}
