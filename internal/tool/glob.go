package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/message"
)

// GlobTool finds files whose path relative to the search root matches a
// glob pattern, with `**` matching across directory components. A single
// `*` does not match across a `/`: "*.go" matches only files directly
// under the search root. Symlinks are not followed.
type GlobTool struct{}

func NewGlobTool() *GlobTool { return &GlobTool{} }

func (t *GlobTool) Definition() message.Tool {
	return message.Tool{
		Name:        "Glob",
		Description: "Fast file pattern matching using glob patterns.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {"type": "string", "description": "The glob pattern to match (e.g. \"**/*.go\")."},
				"path": {"type": "string", "description": "Directory to search in. Defaults to current directory."}
			},
			"required": ["pattern"]
		}`),
	}
}

type globInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage) (message.ToolResult, error) {
	var args globInput
	if err := json.Unmarshal(input, &args); err != nil {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Glob", Reason: "Invalid arguments: " + err.Error()}
	}
	if args.Pattern == "" {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Glob", Reason: "Missing required parameter: pattern"}
	}
	searchPath := args.Path
	if searchPath == "" {
		searchPath = "."
	}

	if !doublestar.ValidatePattern(args.Pattern) {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Glob", Reason: "Invalid glob pattern: " + args.Pattern}
	}

	var matches []string
	walkErr := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(searchPath, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if doublestar.MatchUnvalidated(args.Pattern, rel) {
			matches = append(matches, path)
		}
		return nil
	})
	if walkErr != nil {
		return message.ToolResult{}, &kerrors.Io{Underlying: walkErr}
	}

	sort.Strings(matches)

	if len(matches) == 0 {
		return message.ToolResult{Content: "No files matched pattern: " + args.Pattern, IsError: false}, nil
	}
	return message.ToolResult{Content: strings.Join(matches, "\n"), IsError: false}, nil
}
