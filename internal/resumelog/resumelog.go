// Package resumelog is a SQLite-backed session ledger: it records every
// file a long-running verb has acted on, tagged with a run ID, so an
// interrupted check-hash or find-dupe-files run can resume without redoing
// work already committed. Inserts batch and flush at a size threshold,
// and lookups run against an indexed table rather than a line-oriented
// text file.
package resumelog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Outcome records what happened to a path during a verb's run.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Entry is one row of the ledger.
type Entry struct {
	RunID     string
	RootPath  string
	Verb      string
	Path      string
	Outcome   Outcome
	Timestamp time.Time
}

// Log wraps a SQLite database holding the session ledger, batching
// inserts and flushing them at a size threshold.
type Log struct {
	db        *sql.DB
	mu        sync.Mutex
	pending   []Entry
	batchSize int
}

// Open creates (if needed) and opens the ledger database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("resumelog: open %s: %w", path, err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		root_path TEXT NOT NULL,
		verb TEXT NOT NULL,
		path TEXT NOT NULL,
		outcome TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		UNIQUE(run_id, path)
	);
	CREATE INDEX IF NOT EXISTS idx_run ON entries(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("resumelog: init schema: %w", err)
	}
	return &Log{db: db, batchSize: 200}, nil
}

// Close flushes any pending entries and closes the underlying database.
func (l *Log) Close() error {
	l.Flush(context.Background())
	return l.db.Close()
}

// NewRunID mints a fresh session identifier, used to label a resumable
// run and to find it again via --resume <run-id>.
func NewRunID() string {
	return uuid.NewString()
}

// Record queues one entry for the current run, flushing automatically
// once the batch fills (mirrors BatchInserter.Add's "flush if batch is
// full" rule).
func (l *Log) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, e)
	if len(l.pending) >= l.batchSize {
		l.flushLocked(context.Background())
	}
}

// Flush writes any queued entries to the database.
func (l *Log) Flush(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked(ctx)
}

func (l *Log) flushLocked(ctx context.Context) {
	if len(l.pending) == 0 {
		return
	}
	tx, err := l.db.Begin()
	if err != nil {
		return
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO entries
		(run_id, root_path, verb, path, outcome, timestamp) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for i, e := range l.pending {
		if i%100 == 0 && ctx.Err() != nil {
			tx.Rollback()
			return
		}
		stmt.Exec(e.RunID, e.RootPath, e.Verb, e.Path, string(e.Outcome), e.Timestamp.Format(time.RFC3339))
	}
	if ctx.Err() != nil {
		tx.Rollback()
		return
	}
	if err := tx.Commit(); err == nil {
		l.pending = l.pending[:0]
	} else {
		tx.Rollback()
	}
}

// Done reports whether path has already been recorded as done for
// runID, so a resumed run can skip it.
func (l *Log) Done(runID, path string) bool {
	var outcome string
	err := l.db.QueryRow(`SELECT outcome FROM entries WHERE run_id = ? AND path = ?`, runID, path).Scan(&outcome)
	return err == nil && Outcome(outcome) == OutcomeDone
}

// Paths returns every path recorded for runID, for reporting and for
// purge-md5-style reconciliation against the current filesystem state.
func (l *Log) Paths(runID string) ([]Entry, error) {
	rows, err := l.db.Query(`SELECT root_path, verb, path, outcome, timestamp FROM entries WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.RootPath, &e.Verb, &e.Path, (*string)(&e.Outcome), &ts); err != nil {
			return nil, err
		}
		e.RunID = runID
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentRunIDs lists distinct run IDs ordered by most recent activity,
// for a "resume which run?" prompt.
func (l *Log) RecentRunIDs(limit int) ([]string, error) {
	rows, err := l.db.Query(`SELECT run_id FROM entries GROUP BY run_id ORDER BY MAX(timestamp) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
