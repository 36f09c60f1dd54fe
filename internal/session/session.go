// Package session is an append-only sqlite log of each turn's messages
// and accumulated usage. It is additive and write-only from the agent
// loop's perspective: nothing here feeds a decision back into
// internal/agent.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/sacenox/kanata/internal/message"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	turn_index INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	input_tokens   INTEGER NOT NULL,
	output_tokens  INTEGER NOT NULL,
	cost_usd       REAL NOT NULL,
	model          TEXT NOT NULL,
	created        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, turn_index);
CREATE INDEX IF NOT EXISTS idx_usage_session ON usage_log(session_id);
`

// Store is a sqlite-backed append-only log of conversation turns and
// usage. A nil *Store is safe to call methods on (they become no-ops), so
// callers can pass a nil Store when memory_path is unconfigured.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the transcript database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database. Safe on a nil receiver.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// AppendTurn records one message produced during sessionID's turnIndex.
// Safe on a nil receiver (no-op). Failures are logged, not returned: the
// agent never depends on this log to make decisions, so a write failure
// must not interrupt the turn.
func (s *Store) AppendTurn(sessionID string, turnIndex int, msg message.Message) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := json.Marshal(msg.Content)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal turn content for session log")
		return
	}

	if _, err := s.db.Exec(
		"INSERT INTO turns (session_id, turn_index, role, content, created) VALUES (?, ?, ?, ?, ?)",
		sessionID, turnIndex, string(msg.Role), string(content), time.Now().Unix(),
	); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to append turn to session log")
	}
}

// AppendUsage records one turn's usage for sessionID. Safe on a nil
// receiver (no-op).
func (s *Store) AppendUsage(sessionID string, usage message.Usage) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		"INSERT INTO usage_log (session_id, input_tokens, output_tokens, cost_usd, model, created) VALUES (?, ?, ?, ?, ?, ?)",
		sessionID, usage.InputTokens, usage.OutputTokens, usage.CostUSD, usage.Model, time.Now().Unix(),
	); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to append usage to session log")
	}
}

// TotalsFor sums every usage row logged for sessionID, for external
// inspection. The agent loop itself never calls this. Safe on a nil
// receiver (returns zero totals).
func (s *Store) TotalsFor(sessionID string) (inputTokens, outputTokens int, costUSD float64, err error) {
	if s == nil {
		return 0, 0, 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		"SELECT COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0), COALESCE(SUM(cost_usd),0) FROM usage_log WHERE session_id = ?",
		sessionID,
	)
	err = row.Scan(&inputTokens, &outputTokens, &costUSD)
	return
}
