package postgres

import (
	"context"
	"errors"
	"fmt"
)

// ErrConflict is returned by create callbacks when a uniqueness constraint
// rejected the insert because a concurrent writer got there first.
var ErrConflict = errors.New("unique constraint conflict")

const DefaultGetOrCreateAttempts = 3

// GetOrCreate resolves a row that may be created concurrently by other
// writers. It never relies on check-then-insert alone: create must be guarded
// by a uniqueness constraint and report ErrConflict when it loses, after
// which the row is looked up again.
func GetOrCreate[T any](
	ctx context.Context,
	attempts int,
	find func(ctx context.Context) (*T, error),
	create func(ctx context.Context) (*T, error),
) (row *T, created bool, err error) {
	if attempts <= 0 {
		attempts = DefaultGetOrCreateAttempts
	}
	for i := 0; i < attempts; i++ {
		row, err = find(ctx)
		if err != nil {
			return nil, false, err
		}
		if row != nil {
			return row, false, nil
		}

		row, err = create(ctx)
		if err == nil {
			return row, true, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, false, err
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
	}
	return nil, false, fmt.Errorf("get or create: gave up after %d attempts: %w", attempts, ErrConflict)
}
