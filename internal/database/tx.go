package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// Backoff yields the pause before retry attempt n (1-based).
type Backoff interface {
	NextDelay(attempt int) time.Duration
}

type constantBackoff time.Duration

func (c constantBackoff) NextDelay(int) time.Duration {
	return time.Duration(c)
}

// WithinTx runs fn inside a BEGIN IMMEDIATE transaction, which takes the
// database write lock up front, so reads made by fn cannot go stale before
// its writes. Version conflicts and busy errors re-run fn from scratch.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, store domain.Store) error) error {
	for attempt := 1; ; attempt++ {
		err := db.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt > db.maxRetries {
			return err
		}

		delay := db.backoff.NextDelay(attempt)
		db.logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying transaction")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("transaction aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (db *DB) runTx(ctx context.Context, fn func(ctx context.Context, store domain.Store) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, &queries{q: tx, now: db.queries.now}); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

// classify turns sqlite lock contention into ErrConcurrentModification.
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrConcurrentModification)
}
