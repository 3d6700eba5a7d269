// Package rollup implements the optional precomputed aggregate
// store: per-day-per-source session rollups in SQLite, queryable by
// agent source and calendar-day range. It backs the analytics fast
// path; its absence or unreadiness silently selects the in-memory
// fallback, never an error.
package rollup

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentlens/agentlens/internal/session"
	"github.com/agentlens/agentlens/internal/timeutil"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS daily_rollups (
    day              TEXT NOT NULL,
    source           TEXT NOT NULL,
    sessions         INTEGER NOT NULL DEFAULT 0,
    messages         INTEGER NOT NULL DEFAULT 0,
    commands         INTEGER NOT NULL DEFAULT 0,
    duration_seconds REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (day, source)
);

CREATE TABLE IF NOT EXISTS rollup_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Store manages a write connection and a read-only pool over the
// rollup database.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex // serializes writes
}

// makeDSN builds a SQLite connection string with shared pragmas.
func makeDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	if readOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("_synchronous", "NORMAL")
	}
	return path + "?" + params.Encode()
}

// Open creates or opens the rollup database at path, configuring
// WAL mode and separate writer/reader connections.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating rollup dir: %w", err)
	}

	writer, err := sql.Open("sqlite3", makeDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if _, err := writer.Exec(schemaSQL); err != nil {
		writer.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	reader, err := sql.Open("sqlite3", makeDSN(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	return &Store{writer: writer, reader: reader}, nil
}

// Close releases both connections.
func (st *Store) Close() error {
	var firstErr error
	if err := st.reader.Close(); err != nil {
		firstErr = err
	}
	if err := st.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// IsReady reports whether the store holds a completed rollup build.
// A store that exists but was never rebuilt is not ready.
func (st *Store) IsReady() bool {
	var value string
	err := st.reader.QueryRow(
		"SELECT value FROM rollup_meta WHERE key = 'rebuilt_at'",
	).Scan(&value)
	return err == nil && value != ""
}

// CountFilter names the session-counting toggles a rollup build
// bakes in. The analytics fast path is only eligible when its
// active toggles match the build's.
type CountFilter struct {
	HideZeroMessage bool
	HideLowMessage  bool // hide sessions with <= 2 messages
}

// DefaultCountFilter matches the default-enabled toggles.
func DefaultCountFilter() CountFilter {
	return CountFilter{HideZeroMessage: true, HideLowMessage: true}
}

func (cf CountFilter) keeps(messageCount int) bool {
	if cf.HideZeroMessage && messageCount == 0 {
		return false
	}
	if cf.HideLowMessage && messageCount <= 2 {
		return false
	}
	return true
}

// Rebuild recomputes the daily rollup table from scratch over the
// given sessions. Each session lands on the local calendar day of
// its best-available timestamp; its full (unclipped) active duration
// is attributed to that day. The count filter is baked in so the
// fast path counts sessions exactly like the fallback path.
func (st *Store) Rebuild(
	ctx context.Context,
	sessions []*session.Session,
	cf CountFilter,
	loc *time.Location,
	now time.Time,
) error {
	type key struct {
		day    string
		source session.Source
	}
	type agg struct {
		sessions int
		messages int
		commands int
		duration float64
	}

	buckets := make(map[key]*agg)
	for _, s := range sessions {
		if !cf.keeps(s.MessageCount()) {
			continue
		}
		ts := bestTimestamp(s)
		k := key{day: timeutil.LocalDay(ts, loc), source: s.Source}
		a := buckets[k]
		if a == nil {
			a = &agg{}
			buckets[k] = a
		}
		a.sessions++
		a.messages += s.MessageCount()
		a.commands += s.CommandCount()
		lo, hi := s.ActiveBounds(now)
		if hi.After(lo) {
			a.duration += hi.Sub(lo).Seconds()
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	tx, err := st.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rollup rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx, "DELETE FROM daily_rollups",
	); err != nil {
		return fmt.Errorf("clearing rollups: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_rollups
			(day, source, sessions, messages, commands,
			 duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing rollup insert: %w", err)
	}
	defer stmt.Close()

	for k, a := range buckets {
		if _, err := stmt.ExecContext(
			ctx, k.day, string(k.source),
			a.sessions, a.messages, a.commands, a.duration,
		); err != nil {
			return fmt.Errorf(
				"inserting rollup %s/%s: %w", k.day, k.source, err,
			)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rollup_meta (key, value) VALUES ('rebuilt_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		timeutil.Format(now),
	); err != nil {
		return fmt.Errorf("recording rebuild time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rollup rebuild: %w", err)
	}
	return nil
}

// bestTimestamp is the day-bucketing timestamp precedence shared
// with the heatmap: start, else end, else the modified fallback.
func bestTimestamp(s *session.Session) time.Time {
	if !s.StartTime.IsZero() {
		return s.StartTime
	}
	if !s.EndTime.IsZero() {
		return s.EndTime
	}
	return s.ModifiedAt()
}
