// Package resultcache persists solved optimisation responses with expiration timestamps.
// Entries are keyed by the request fingerprint and hold the encoded response blob.
package resultcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is used when Store is called with a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Repository provides cache operations for solved responses.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new result cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Store saves data with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data.
func (r *Repository) Store(ctx context.Context, key, mode, solveID string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := r.now()

	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO solve_cache (fingerprint, mode, solve_id, data, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, mode, solveID, data, now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store solve %s: %w", solveID, err)
	}
	return nil
}

// GetIfFresh returns data only if expires_at > now.
// Returns nil, nil if the key doesn't exist or data is expired.
func (r *Repository) GetIfFresh(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT data FROM solve_cache WHERE fingerprint = ? AND expires_at > ?",
		key, r.now().Unix(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached solve: %w", err)
	}
	return data, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM solve_cache WHERE fingerprint = ?", key); err != nil {
		return fmt.Errorf("failed to delete cached solve: %w", err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at <= now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM solve_cache WHERE expires_at <= ?", r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired solves: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Stats summarises the cache contents.
type Stats struct {
	Entries int64            `json:"entries"`
	Fresh   int64            `json:"fresh"`
	Bytes   int64            `json:"bytes"`
	ByMode  map[string]int64 `json:"by_mode"`
}

// Stats counts cached entries, fresh entries and stored bytes, plus entries per mode.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByMode: make(map[string]int64)}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(LENGTH(data)), 0)
		 FROM solve_cache`,
		r.now().Unix(),
	).Scan(&stats.Entries, &stats.Fresh, &stats.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to count cached solves: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, "SELECT mode, COUNT(*) FROM solve_cache GROUP BY mode")
	if err != nil {
		return nil, fmt.Errorf("failed to group cached solves: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mode string
		var count int64
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("failed to scan mode count: %w", err)
		}
		stats.ByMode[mode] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mode counts: %w", err)
	}

	return stats, nil
}
