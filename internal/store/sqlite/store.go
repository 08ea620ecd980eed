// Package sqlite provides a SQLite-backed message store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Tyrowin/messenger/internal/store"
	"github.com/Tyrowin/messenger/internal/store/sqlite/migrations"
	"github.com/Tyrowin/messenger/internal/username"
)

// Store persists chat messages in a single SQLite table.
type Store struct {
	sqlDB *sql.DB
}

func toNanos(value time.Time) int64 {
	return value.UTC().UnixNano()
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

// Open opens the SQLite database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Insert stores one message and returns its id. The row is committed before
// Insert returns.
func (s *Store) Insert(ctx context.Context, record store.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, store.ErrClosed
	}
	record, err := store.Prepare(record)
	if err != nil {
		return 0, err
	}

	var toUser, toKey sql.NullString
	if record.IsPrivate {
		toUser = sql.NullString{String: record.ToUser, Valid: true}
		toKey = sql.NullString{String: username.Key(record.ToUser), Valid: true}
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (
		   from_user, to_user, body, timestamp, is_private, from_key, to_key
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.FromUser,
		toUser,
		record.Body,
		toNanos(record.Timestamp),
		record.IsPrivate,
		username.Key(record.FromUser),
		toKey,
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert message id: %w", err)
	}
	return id, nil
}

// Recent returns at most q.Limit records of the conversation, newest first.
func (s *Store) Recent(ctx context.Context, q store.Query) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, store.ErrClosed
	}
	if q.Degenerate() {
		return []store.Record{}, nil
	}

	const columns = `SELECT id, from_user, to_user, body, timestamp, is_private FROM messages`
	var (
		rows *sql.Rows
		err  error
	)
	if q.Private {
		a, b := q.PairKeys()
		rows, err = s.sqlDB.QueryContext(
			ctx,
			columns+`
			  WHERE is_private = 1
			    AND ((from_key = ? AND to_key = ?) OR (from_key = ? AND to_key = ?))
			  ORDER BY timestamp DESC, id DESC
			  LIMIT ?`,
			a, b, b, a, q.EffectiveLimit(),
		)
	} else {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			columns+`
			  WHERE is_private = 0
			  ORDER BY timestamp DESC, id DESC
			  LIMIT ?`,
			q.EffectiveLimit(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	records := make([]store.Record, 0, q.EffectiveLimit())
	for rows.Next() {
		var (
			record    store.Record
			toUser    sql.NullString
			timestamp int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.FromUser,
			&toUser,
			&record.Body,
			&timestamp,
			&record.IsPrivate,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		record.ToUser = toUser.String
		record.Timestamp = fromNanos(timestamp)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return records, nil
}
