package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/message"
)

// maxGrepMatches caps the number of result lines Grep returns before it
// truncates.
const maxGrepMatches = 200

// GrepTool searches file contents with a regex, optionally filtered by a
// filename glob, skipping files it cannot read as UTF-8.
type GrepTool struct{}

func NewGrepTool() *GrepTool { return &GrepTool{} }

func (t *GrepTool) Definition() message.Tool {
	return message.Tool{
		Name:        "Grep",
		Description: "Searches file contents using regular expressions.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {"type": "string", "description": "Regex pattern to search for."},
				"path": {"type": "string", "description": "File or directory to search in. Defaults to current directory."},
				"glob": {"type": "string", "description": "Optional glob filter for files (e.g. \"*.go\")."}
			},
			"required": ["pattern"]
		}`),
	}
}

type grepInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
	Glob    string `json:"glob"`
}

func (t *GrepTool) Execute(ctx context.Context, input json.RawMessage) (message.ToolResult, error) {
	var args grepInput
	if err := json.Unmarshal(input, &args); err != nil {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Grep", Reason: "Invalid arguments: " + err.Error()}
	}
	if args.Pattern == "" {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Grep", Reason: "Missing required parameter: pattern"}
	}
	searchPath := args.Path
	if searchPath == "" {
		searchPath = "."
	}

	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Grep", Reason: "Invalid regex: " + err.Error()}
	}

	var results []string
	truncated := false

	walkErr := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || truncated {
			return nil
		}
		if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if args.Glob != "" && !doublestar.MatchUnvalidated(args.Glob, filepath.Base(path)) {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		lineNum := 0
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			if !utf8.ValidString(line) {
				return nil // not UTF-8, skip the whole file
			}
			if re.MatchString(line) {
				results = append(results, fmt.Sprintf("%s:%d: %s", path, lineNum, line))
				if len(results) >= maxGrepMatches {
					truncated = true
					return nil
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return message.ToolResult{}, &kerrors.Io{Underlying: walkErr}
	}

	if truncated {
		results = append(results, fmt.Sprintf("... (truncated at %d matches)", maxGrepMatches))
	}

	if len(results) == 0 {
		return message.ToolResult{Content: "No matches found for pattern: " + args.Pattern, IsError: false}, nil
	}
	return message.ToolResult{Content: strings.Join(results, "\n"), IsError: false}, nil
}
