package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dougsko/rigbridge/pkg/logging"
)

// Outcomes recorded for a dispatched command
const (
	OutcomeAck   = "ack"
	OutcomeError = "error"
	OutcomeState = "state"
)

// Entry is one dispatched command and what came back
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Value     string    `json:"value"`
	Outcome   string    `json:"outcome"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Stats summarizes the journal
type Stats struct {
	TotalCommands int64      `json:"total_commands"`
	TotalFailures int64      `json:"total_failures"`
	LastCleanup   *time.Time `json:"last_cleanup,omitempty"`
}

// Journal is an SQLite audit trail of commands sent to the rig
type Journal struct {
	db         *sql.DB
	dbPath     string
	maxEntries int
}

// NewJournal opens (or creates) the journal at dbPath. Only the newest
// maxEntries rows are kept; 0 keeps everything.
func NewJournal(dbPath string, maxEntries int) (*Journal, error) {
	j := &Journal{
		dbPath:     dbPath,
		maxEntries: maxEntries,
	}

	if err := j.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return j, nil
}

func (j *Journal) initialize() error {
	if j.dbPath == "" {
		j.dbPath = "./rigbridge.db"
	}

	if err := os.MkdirAll(filepath.Dir(j.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", j.dbPath+"?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	j.db = db

	if err := j.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	logging.Infof("storage", "Command journal initialized: %s (max %d entries)", j.dbPath, j.maxEntries)
	return nil
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		command TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL CHECK (outcome IN ('ack', 'error', 'state')),
		success BOOLEAN NOT NULL DEFAULT FALSE,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_commands_command ON commands(command);

	CREATE TABLE IF NOT EXISTS journal_stats (
		id INTEGER PRIMARY KEY,
		total_commands INTEGER NOT NULL DEFAULT 0,
		total_failures INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME
	);

	INSERT OR IGNORE INTO journal_stats (id, total_commands, total_failures)
	VALUES (1, 0, 0);
	`

	_, err := j.db.Exec(schema)
	return err
}

// Record appends an entry and prunes the oldest ones beyond the limit
func (j *Journal) Record(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO commands (timestamp, command, value, outcome, success, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Timestamp, entry.Command, entry.Value, entry.Outcome, entry.Success, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}

	failed := 0
	if !entry.Success {
		failed = 1
	}
	_, err = tx.Exec(`
		UPDATE journal_stats SET
			total_commands = total_commands + 1,
			total_failures = total_failures + ?
		WHERE id = 1
	`, failed)
	if err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	if err := j.prune(tx); err != nil {
		logging.Warn("storage", "failed to prune journal", map[string]interface{}{"error": err.Error()})
	}

	return tx.Commit()
}

func (j *Journal) prune(tx *sql.Tx) error {
	if j.maxEntries <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM commands").Scan(&count); err != nil {
		return err
	}
	if count <= j.maxEntries {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM commands
		WHERE id IN (
			SELECT id FROM commands
			ORDER BY id ASC
			LIMIT ?
		)
	`, count-j.maxEntries)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE journal_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Recent returns up to limit entries, newest first
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.Query(`
		SELECT id, timestamp, command, value, outcome, success, error
		FROM commands
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Command, &e.Value, &e.Outcome, &e.Success, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of retained entries
func (j *Journal) Count() (int, error) {
	var count int
	err := j.db.QueryRow("SELECT COUNT(*) FROM commands").Scan(&count)
	return count, err
}

// Stats returns lifetime totals, including pruned entries
func (j *Journal) Stats() (Stats, error) {
	var stats Stats
	var lastCleanup sql.NullTime
	err := j.db.QueryRow(`
		SELECT total_commands, total_failures, last_cleanup
		FROM journal_stats WHERE id = 1
	`).Scan(&stats.TotalCommands, &stats.TotalFailures, &lastCleanup)
	if err != nil {
		return stats, fmt.Errorf("failed to read stats: %w", err)
	}
	if lastCleanup.Valid {
		stats.LastCleanup = &lastCleanup.Time
	}
	return stats, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
