// Command kanata loads config and credentials, wires the key-pooled
// router, registers the tool dispatcher, and drives a line-oriented REPL
// over the agent's event stream. It owns no core logic itself: every
// decision lives in internal/agent, internal/provider, and internal/tool.
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sacenox/kanata/internal/agent"
	"github.com/sacenox/kanata/internal/config"
	"github.com/sacenox/kanata/internal/message"
	"github.com/sacenox/kanata/internal/provider"
	"github.com/sacenox/kanata/internal/session"
	"github.com/sacenox/kanata/internal/tool"
)

func main() {
	setupLogging()

	configPath := filepath.Join(".", "config.toml")
	if dataDir, err := config.DataDir(); err == nil {
		dataDirPath := filepath.Join(dataDir, "config.toml")
		if _, err := os.Stat(dataDirPath); err == nil {
			configPath = dataDirPath
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Printf("Error loading credentials: %v\n", err)
		os.Exit(1)
	}

	router := provider.NewRouter(creds.Merge(cfg))
	dispatcher := buildDispatcher(cfg)

	store, err := openSessionStore(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open session store; continuing without persistence")
	}
	defer store.Close()

	sessionID := newSessionID()
	systemPrompt := loadSystemPrompt(cfg)

	a := agent.New(router, dispatcher, cfg.DefaultModel, systemPrompt)

	fmt.Printf("kanata (%s) session %s. Type a message, or /exit to quit.\n", cfg.DefaultModel, sessionID)
	repl(context.Background(), a, store, sessionID)
}

// buildDispatcher registers the six tool executors, gating Bash behind
// the configured trust level.
func buildDispatcher(cfg *config.Config) *tool.Dispatcher {
	d := tool.NewDispatcher()
	d.Register(tool.NewReadTool())
	d.Register(tool.NewWriteTool())
	d.Register(tool.NewEditTool())
	d.Register(tool.NewGlobTool())
	d.Register(tool.NewGrepTool())
	if cfg.BashAllowed() {
		d.Register(tool.NewBashTool())
	} else {
		log.Info().Int("trust_level", cfg.TrustLevel).Msg("bash tool disabled by trust level")
	}
	return d
}

// openSessionStore opens the sqlite transcript log at cfg.MemoryPath, or
// returns a nil *session.Store (safe to call methods on) if the field is
// unset.
func openSessionStore(cfg *config.Config) (*session.Store, error) {
	if cfg.MemoryPath == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.MemoryPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, err
		}
	}
	return session.Open(cfg.MemoryPath)
}

// loadSystemPrompt reads a single prompt file from cfg.PromptDir if
// configured, returning "" (the system field is then omitted from provider
// requests entirely) when unset or unreadable.
func loadSystemPrompt(cfg *config.Config) string {
	if cfg.PromptDir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(cfg.PromptDir, "system.md"))
	if err != nil {
		log.Warn().Err(err).Str("prompt_dir", cfg.PromptDir).Msg("failed to load system prompt")
		return ""
	}
	return string(data)
}

// repl reads one line at a time from stdin, feeds it to the agent, and
// prints the resulting event stream to stdout. When store is non-nil it
// logs the user's line and, on Done, the session usage; the assistant's
// replies and tool results are not logged.
func repl(ctx context.Context, a *agent.Agent, store *session.Store, sessionID string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	turn := 0
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "/exit" || line == "/quit" {
			return
		}
		if line == "" {
			continue
		}

		store.AppendTurn(sessionID, turn, message.NewUserText(line))

		for ev := range a.SendMessage(ctx, line) {
			printEvent(ev, store, sessionID, turn)
		}
		turn++
	}
}

func printEvent(ev message.AgentEvent, store *session.Store, sessionID string, turn int) {
	switch ev.Type {
	case message.AgentThinking:
		// no terminal output; a richer UI would show a spinner here.
	case message.AgentTextDelta:
		fmt.Print(ev.Text)
	case message.AgentToolStart:
		fmt.Printf("\n[%s] %s\n", ev.ToolName, ev.InputPreview)
	case message.AgentToolEnd:
		fmt.Printf("  -> %s\n", ev.ResultPreview)
	case message.AgentError:
		fmt.Printf("\nerror: %s\n", ev.ErrMessage)
	case message.AgentDone:
		fmt.Println()
		store.AppendUsage(sessionID, message.Usage{
			InputTokens:  ev.Stats.TotalInputTokens,
			OutputTokens: ev.Stats.TotalOutputTokens,
			CostUSD:      ev.Stats.TotalCostUSD,
			Model:        ev.Stats.Model,
		})
	}
}

// newSessionID generates a random 16-byte hex session identifier,
// falling back to a timestamp if the CSPRNG is unavailable.
func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Warn().Err(err).Msg("failed to read random bytes for session id")
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// setupLogging configures zerolog's global level from KANATA_LOG
// (default info) and writes to a log file under the data dir rather than
// stdout so it doesn't interleave with the REPL transcript.
func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if v := os.Getenv("KANATA_LOG"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return
	}
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return
	}
	file, err := os.OpenFile(filepath.Join(logDir, "kanata.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	log.Logger = log.Output(file)
}
