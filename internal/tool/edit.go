package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/message"
)

// EditTool performs an exact string replacement inside a file: count
// occurrences of old_string, then replace one (or all, with replace_all)
// and write the result back.
type EditTool struct{}

func NewEditTool() *EditTool { return &EditTool{} }

func (t *EditTool) Definition() message.Tool {
	return message.Tool{
		Name: "Edit",
		Description: `Replace an exact string in a file with another string. ` +
			`old_string must match the file content exactly, including whitespace. ` +
			`If old_string appears more than once, either include enough surrounding ` +
			`context to make it unique, or pass replace_all:true to replace every occurrence.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "The absolute path to the file to edit."},
				"old_string": {"type": "string", "description": "The exact text to replace."},
				"new_string": {"type": "string", "description": "The text to replace it with."},
				"replace_all": {"type": "boolean", "description": "Replace every occurrence instead of requiring a unique match (default false)."}
			},
			"required": ["path", "old_string", "new_string"]
		}`),
	}
}

type editInput struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage) (message.ToolResult, error) {
	var args editInput
	if err := json.Unmarshal(input, &args); err != nil {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Edit", Reason: "Invalid arguments: " + err.Error()}
	}
	if args.Path == "" {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Edit", Reason: "Missing required parameter: path"}
	}
	if args.OldString == "" {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Edit", Reason: "Missing required parameter: old_string"}
	}

	content, err := os.ReadFile(args.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return message.ToolResult{}, &kerrors.FileNotFound{Path: args.Path}
		}
		return message.ToolResult{}, &kerrors.Io{Underlying: err}
	}
	text := string(content)

	count := strings.Count(text, args.OldString)
	if count == 0 {
		return message.ToolResult{Content: "old_string not found in " + args.Path, IsError: true}, nil
	}
	if count > 1 && !args.ReplaceAll {
		return message.ToolResult{
			Content: fmt.Sprintf("old_string is not unique in %s (%d occurrences): provide more surrounding context or pass replace_all:true", args.Path, count),
			IsError: true,
		}, nil
	}

	var replaced string
	var n int
	if args.ReplaceAll {
		replaced = strings.ReplaceAll(text, args.OldString, args.NewString)
		n = count
	} else {
		replaced = strings.Replace(text, args.OldString, args.NewString, 1)
		n = 1
	}

	if err := os.WriteFile(args.Path, []byte(replaced), 0600); err != nil {
		return message.ToolResult{}, &kerrors.Io{Underlying: err}
	}

	return message.ToolResult{
		Content: fmt.Sprintf("Replaced %d occurrence(s) in %s", n, args.Path),
		IsError: false,
	}, nil
}
