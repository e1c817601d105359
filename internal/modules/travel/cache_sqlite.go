package travel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteCacheStore persists legs in a local SQLite file.
type SQLiteCacheStore struct {
	DB *sql.DB
}

// NewSQLiteCacheStore creates the travel_legs table when missing.
func NewSQLiteCacheStore(ctx context.Context, db *sql.DB) (*SQLiteCacheStore, error) {
	if db == nil {
		return nil, errors.New("travel cache: db is nil")
	}
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS travel_legs (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		mode TEXT NOT NULL,
		minutes INTEGER NOT NULL,
		stored_at INTEGER NOT NULL,
		PRIMARY KEY (origin, destination, mode)
	);
	`)
	if err != nil {
		return nil, fmt.Errorf("init travel cache: create table: %w", err)
	}
	return &SQLiteCacheStore{DB: db}, nil
}

func (s *SQLiteCacheStore) Get(ctx context.Context, key LegKey) (Entry, bool, error) {
	var minutes int
	var storedAt int64
	err := s.DB.QueryRowContext(ctx, `
	SELECT minutes, stored_at
	FROM travel_legs
	WHERE origin = ? AND destination = ? AND mode = ?
	`, key.Origin, key.Destination, string(key.Mode)).Scan(&minutes, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get travel leg: %w", err)
	}
	return Entry{Minutes: minutes, StoredAt: time.Unix(storedAt, 0)}, true, nil
}

func (s *SQLiteCacheStore) Put(ctx context.Context, key LegKey, e Entry) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT OR REPLACE INTO travel_legs (origin, destination, mode, minutes, stored_at)
	VALUES (?, ?, ?, ?, ?)
	`, key.Origin, key.Destination, string(key.Mode), e.Minutes, e.StoredAt.Unix())
	if err != nil {
		return fmt.Errorf("put travel leg: %w", err)
	}
	return nil
}

// Purge deletes entries older than ttl. Reads already ignore them; this only
// reclaims space.
func (s *SQLiteCacheStore) Purge(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).Unix()
	res, err := s.DB.ExecContext(ctx, `DELETE FROM travel_legs WHERE stored_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge travel legs: %w", err)
	}
	return res.RowsAffected()
}
