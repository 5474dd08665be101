package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict indicates a key that was already recorded, so the
// request carrying it has been processed before.
var ErrIdempotencyConflict = errors.New("shared: request already processed")

// IdempotencyStore records request keys so payment submissions can be
// retried without posting twice. Keys are pruned by a background job
// after a retention window.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs IdempotencyStore.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckAndInsert claims a key within a scope. The second claim of the
// same key fails with ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, scope string) error {
	if key == "" {
		return fmt.Errorf("shared: idempotency key is empty")
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, scope, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO NOTHING`, key, scope)
	if err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete releases a claimed key so the caller can retry after a failed
// operation.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1`, key)
	return err
}

// Cleanup prunes keys older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
