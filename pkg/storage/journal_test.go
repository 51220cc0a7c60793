package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestJournal(t *testing.T, maxEntries int) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"), maxEntries)
	if err != nil {
		t.Fatalf("Failed to create journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestNewJournal(t *testing.T) {
	t.Run("Creates Nested Directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
		j, err := NewJournal(dbPath, 100)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer j.Close()

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("Expected database file to be created")
		}
	})

	t.Run("Reopen Keeps Entries", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "journal.db")
		j, err := NewJournal(dbPath, 100)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if err := j.Record(Entry{Command: "set_freq", Value: "7074000", Outcome: OutcomeAck, Success: true}); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
		j.Close()

		j, err = NewJournal(dbPath, 100)
		if err != nil {
			t.Fatalf("Failed to reopen: %v", err)
		}
		defer j.Close()

		count, err := j.Count()
		if err != nil || count != 1 {
			t.Errorf("Expected 1 entry after reopen, got %d (%v)", count, err)
		}
	})
}

func TestRecordAndRecent(t *testing.T) {
	j := newTestJournal(t, 0)

	when := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Timestamp: when, Command: "set_freq", Value: "7074000", Outcome: OutcomeAck, Success: true},
		{Timestamp: when.Add(time.Second), Command: "set_rit", Value: "20000", Outcome: OutcomeAck, Success: false},
		{Timestamp: when.Add(2 * time.Second), Command: "set_mode", Value: "CW", Outcome: OutcomeError, Error: "Radio not connected"},
	}
	for _, e := range entries {
		if err := j.Record(e); err != nil {
			t.Fatalf("Failed to record %s: %v", e.Command, err)
		}
	}

	recent, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Failed to read recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(recent))
	}

	// newest first
	if recent[0].Command != "set_mode" || recent[2].Command != "set_freq" {
		t.Errorf("Unexpected order: %s, %s, %s", recent[0].Command, recent[1].Command, recent[2].Command)
	}
	if recent[0].Error != "Radio not connected" || recent[0].Outcome != OutcomeError {
		t.Errorf("Unexpected error entry: %+v", recent[0])
	}
	if !recent[2].Success || recent[2].Value != "7074000" {
		t.Errorf("Unexpected ack entry: %+v", recent[2])
	}
	if !recent[2].Timestamp.Equal(when) {
		t.Errorf("Expected timestamp %v, got %v", when, recent[2].Timestamp)
	}

	limited, err := j.Recent(1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Expected 1 entry with limit, got %d (%v)", len(limited), err)
	}

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if stats.TotalCommands != 3 || stats.TotalFailures != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.LastCleanup != nil {
		t.Error("Expected no cleanup without a limit")
	}
}

func TestPruning(t *testing.T) {
	j := newTestJournal(t, 5)

	for i := 0; i < 12; i++ {
		err := j.Record(Entry{Command: "set_freq", Value: fmt.Sprint(7000000 + i), Outcome: OutcomeAck, Success: true})
		if err != nil {
			t.Fatalf("Failed to record entry %d: %v", i, err)
		}
	}

	count, err := j.Count()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 entries after pruning, got %d", count)
	}

	recent, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Failed to read recent: %v", err)
	}
	if recent[0].Value != "7000011" || recent[len(recent)-1].Value != "7000007" {
		t.Errorf("Expected newest five entries kept, got %s..%s", recent[0].Value, recent[len(recent)-1].Value)
	}

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if stats.TotalCommands != 12 {
		t.Errorf("Expected lifetime total 12, got %d", stats.TotalCommands)
	}
	if stats.LastCleanup == nil {
		t.Error("Expected cleanup timestamp to be set")
	}
}
