package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"animeverse/internal/model"
	"animeverse/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AppendActivity stores rec as the newest entry of scope. When limit is
// positive, the oldest entries beyond limit are removed in the same transaction.
func (s *SQLite) AppendActivity(ctx context.Context, scope string, rec model.ActivityRecord, limit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO activities (scope, id, message, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		scope, rec.ID, rec.Message, string(rec.Category), rec.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	if limit > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM activities
			 WHERE scope = ?
			   AND seq NOT IN (SELECT seq FROM activities WHERE scope = ? ORDER BY seq DESC LIMIT ?)`,
			scope, scope, limit,
		); err != nil {
			return fmt.Errorf("trim activities: %w", err)
		}
	}
	return tx.Commit()
}

// ListActivities returns the activities of scope, newest first.
func (s *SQLite) ListActivities(ctx context.Context, scope string) ([]model.ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message, category, created_at FROM activities WHERE scope = ? ORDER BY seq DESC`, scope,
	)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ActivityRecord
	for rows.Next() {
		var rec model.ActivityRecord
		var category string
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Message, &category, &created); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		rec.Category = model.ParseActivityCategory(category)
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ClearActivities removes every activity of scope.
func (s *SQLite) ClearActivities(ctx context.Context, scope string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("clear activities: %w", err)
	}
	return nil
}

// GetValue returns the blob stored under key. The boolean is false if the key is absent.
func (s *SQLite) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get value %q: %w", key, err)
	}
	return value, true, nil
}

// PutValue stores value under key, replacing any previous value.
func (s *SQLite) PutValue(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("put value %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes key. Deleting an absent key is not an error.
func (s *SQLite) DeleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete value %q: %w", key, err)
	}
	return nil
}
