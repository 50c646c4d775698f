package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

// Acquire takes a session-level advisory lock keyed by the job name. The lock
// lives on a dedicated pooled connection until release is called or the
// connection dies, so ttl is not used.
func (db *DB) Acquire(ctx context.Context, job string, _ time.Duration) (func(context.Context) error, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for lock %s: %w", job, err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, lockKey(job)).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock %s: %w", job, err)
	}
	if !locked {
		conn.Release()
		return nil, domain.ErrJobRunning
	}

	release := func(ctx context.Context) error {
		defer conn.Release()
		var unlocked bool
		if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, lockKey(job)).Scan(&unlocked); err != nil {
			// Closing the session drops any advisory lock it still holds.
			_ = conn.Conn().Close(context.Background())
			return fmt.Errorf("advisory unlock %s: %w", job, err)
		}
		return nil
	}
	return release, nil
}

func lockKey(job string) string {
	return "placekeeper:job:" + job
}
