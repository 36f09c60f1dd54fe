package session

import (
	"path/filepath"
	"testing"

	"github.com/sacenox/kanata/internal/message"
)

func TestAppendAndTotalsRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	store.AppendTurn("s1", 0, message.NewUserText("hello"))
	store.AppendUsage("s1", message.Usage{InputTokens: 10, OutputTokens: 20, CostUSD: 0.5, Model: "claude-sonnet-4"})
	store.AppendUsage("s1", message.Usage{InputTokens: 5, OutputTokens: 8, CostUSD: 0.1, Model: "claude-sonnet-4"})

	inputTokens, outputTokens, costUSD, err := store.TotalsFor("s1")
	if err != nil {
		t.Fatalf("TotalsFor: %v", err)
	}
	if inputTokens != 15 || outputTokens != 28 {
		t.Fatalf("expected totals {15,28}, got {%d,%d}", inputTokens, outputTokens)
	}
	if costUSD < 0.59 || costUSD > 0.61 {
		t.Fatalf("expected cost ~0.6, got %v", costUSD)
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *Store
	store.AppendTurn("s1", 0, message.NewUserText("hello"))
	store.AppendUsage("s1", message.Usage{})
	if err := store.Close(); err != nil {
		t.Fatalf("expected nil-receiver Close to be a no-op, got %v", err)
	}
	inputTokens, outputTokens, costUSD, err := store.TotalsFor("s1")
	if err != nil || inputTokens != 0 || outputTokens != 0 || costUSD != 0 {
		t.Fatalf("expected zero totals from a nil store, got (%d,%d,%v,%v)", inputTokens, outputTokens, costUSD, err)
	}
}

func TestTotalsForUnknownSessionIsZero(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	inputTokens, outputTokens, costUSD, err := store.TotalsFor("does-not-exist")
	if err != nil || inputTokens != 0 || outputTokens != 0 || costUSD != 0 {
		t.Fatalf("expected zero totals, got (%d,%d,%v,%v)", inputTokens, outputTokens, costUSD, err)
	}
}
