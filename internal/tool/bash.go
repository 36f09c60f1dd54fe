package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/message"
)

// maxBashOutputBytes is the combined stdout+stderr truncation limit.
const maxBashOutputBytes = 30_000

// defaultBashTimeoutSecs is used when the model omits timeout.
const defaultBashTimeoutSecs = 120

// maxBashTimeoutSecs is the hard clamp regardless of requested timeout.
const maxBashTimeoutSecs = 600

// BashTool spawns a subprocess shell (`sh -c`, or `cmd /C` on Windows)
// for the given command, after consulting the dangerous-command
// blacklist.
type BashTool struct{}

func NewBashTool() *BashTool { return &BashTool{} }

func (t *BashTool) Definition() message.Tool {
	return message.Tool{
		Name:        "Bash",
		Description: "Executes a shell command and returns the output.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "The shell command to execute."},
				"timeout": {"type": "integer", "description": "Timeout in seconds (default: 120, max: 600)."}
			},
			"required": ["command"]
		}`),
	}
}

type bashInput struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout"`
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage) (message.ToolResult, error) {
	var args bashInput
	if err := json.Unmarshal(input, &args); err != nil {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Bash", Reason: "Invalid arguments: " + err.Error()}
	}
	if args.Command == "" {
		return message.ToolResult{}, &kerrors.ToolError{ToolName: "Bash", Reason: "Missing required parameter: command"}
	}

	timeoutSecs := args.Timeout
	if timeoutSecs <= 0 {
		timeoutSecs = defaultBashTimeoutSecs
	}
	if timeoutSecs > maxBashTimeoutSecs {
		timeoutSecs = maxBashTimeoutSecs
	}

	if reason, blocked := checkSafety(args.Command); blocked {
		log.Warn().Str("command", args.Command).Msg("blocked dangerous bash command")
		return message.ToolResult{Content: reason, IsError: true}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	shellName, shellFlag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shellName, shellFlag = "cmd", "/C"
	}

	cmd := exec.CommandContext(runCtx, shellName, shellFlag, args.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return message.ToolResult{
			Content: fmt.Sprintf("Command timed out after %ds", timeoutSecs),
			IsError: true,
		}, nil
	}

	var combined bytes.Buffer
	if stdout.Len() > 0 {
		combined.Write(stdout.Bytes())
	}
	if stderr.Len() > 0 {
		if combined.Len() > 0 {
			combined.WriteByte('\n')
		}
		combined.WriteString("STDERR:\n")
		combined.Write(stderr.Bytes())
	}

	out := combined.String()
	if len(out) > maxBashOutputBytes {
		out = truncateUTF8(out, maxBashOutputBytes) + "\n... (output truncated)"
	}

	isError := runErr != nil
	if out == "" {
		if isError {
			out = fmt.Sprintf("Command exited with status: %v", runErr)
		} else {
			out = "Command completed successfully (no output)."
		}
	}

	return message.ToolResult{Content: out, IsError: isError}, nil
}

// truncateUTF8 trims s to at most n bytes, backing off to the nearest
// preceding rune boundary so the result is always valid UTF-8.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
