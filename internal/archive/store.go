package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scriptview/internal/config"
	"scriptview/internal/feed"
)

// Store persists settled transcript entries in SQLite so they survive feed
// rewrites and daemon restarts.
type Store struct {
	db   *sql.DB
	path string
}

// Record is one archived transcript entry.
type Record struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	StartTime  float64   `json:"start_time"`
	EndTime    *float64  `json:"end_time,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	ArchivedAt time.Time `json:"archived_at"`
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the history database in the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.ArchivePath())
}

// OpenPath opens the history database at an explicit location.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) beginSession(ctx context.Context, id, feedPath string, at time.Time) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO sessions (id, feed_path, started_at) VALUES (?, ?, ?)`,
			id, feedPath, at.UTC().Format(time.RFC3339Nano))
		return err
	})
}

// Append stores entries for a session, skipping any already archived, and
// reports how many rows were new.
func (s *Store) Append(ctx context.Context, sessionID string, entries []feed.Entry, at time.Time) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	inserted := 0
	err := retryOnBusy(ctx, func() error {
		inserted = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO entries
            (session_id, text, start_time, end_time, feed_timestamp, archived_at)
            VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		archivedAt := at.UTC().Format(time.RFC3339Nano)
		for _, entry := range entries {
			var end sql.NullFloat64
			if value, ok := entry.End(); ok {
				end = sql.NullFloat64{Float64: value, Valid: true}
			}
			res, err := stmt.ExecContext(ctx, sessionID, entry.Text, entry.StartTime, end, entry.Timestamp, archivedAt)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("archive entries: %w", err)
	}
	return inserted, nil
}

const recordColumns = `id, session_id, text, start_time, end_time, feed_timestamp, archived_at`

// Recent returns the newest archived entries in chronological order.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx,
		`SELECT * FROM (SELECT `+recordColumns+` FROM entries ORDER BY id DESC LIMIT ?) ORDER BY id`,
		limit)
}

// Search returns archived entries whose text contains query (ASCII
// case-insensitive), newest last.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.query(ctx,
		`SELECT * FROM (SELECT `+recordColumns+` FROM entries WHERE text LIKE ? ESCAPE '\' ORDER BY id DESC LIMIT ?) ORDER BY id`,
		pattern, limit)
}

// Count returns the number of archived entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			end        sql.NullFloat64
			archivedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Text, &rec.StartTime, &end, &rec.Timestamp, &archivedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if end.Valid {
			value := end.Float64
			rec.EndTime = &value
		}
		if ts, err := time.Parse(time.RFC3339Nano, archivedAt); err == nil {
			rec.ArchivedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return records, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
