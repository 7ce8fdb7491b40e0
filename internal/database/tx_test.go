package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carrental/internal/domain"
	"carrental/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTx_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	car := seedCar(t, db, 1, 100)
	customer := seedCustomer(t, db, "joe@example.com", models.RoleUser)

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(ctx context.Context, store domain.Store) error {
		c, err := store.GetCar(ctx, car.ID)
		if err != nil {
			return err
		}
		if err := store.SetCarStatus(ctx, c, models.CarRented); err != nil {
			return err
		}
		if err := store.SaveBooking(ctx, newBooking(customer.ID, car.ID, time.Now(), 1)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := db.GetCar(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CarAvailable, stored.Status)

	bookings, err := db.ListBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestWithinTx_RetriesConcurrentModification(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "retry.db"), &logger, WithRetry(2, constantBackoff(time.Millisecond)))
	require.NoError(t, err)
	defer db.Close()

	var calls int
	err = db.WithinTx(context.Background(), func(ctx context.Context, store domain.Store) error {
		calls++
		if calls < 3 {
			return domain.ErrConcurrentModification
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = db.WithinTx(context.Background(), func(ctx context.Context, store domain.Store) error {
		calls++
		return domain.ErrConcurrentModification
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, 3, calls)
}

func TestWithinTx_BusinessErrorsAreNotRetried(t *testing.T) {
	db := setupTestDB(t)

	var calls int
	err := db.WithinTx(context.Background(), func(ctx context.Context, store domain.Store) error {
		calls++
		return domain.ErrCarNotAvailable
	})
	assert.ErrorIs(t, err, domain.ErrCarNotAvailable)
	assert.Equal(t, 1, calls)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.WithinTx(ctx, func(ctx context.Context, store domain.Store) error {
		return nil
	})
	assert.Error(t, err)
}

// Many transactions race to flip the same car from AVAILABLE to RENTED.
// Exactly one may observe AVAILABLE.
func TestWithinTx_SerializesCheckThenAct(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	car := seedCar(t, db, 1, 100)

	const workers = 10
	var wg sync.WaitGroup
	var winners atomic.Int32
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := db.WithinTx(ctx, func(ctx context.Context, store domain.Store) error {
				c, err := store.GetCar(ctx, car.ID)
				if err != nil {
					return err
				}
				if c.Status != models.CarAvailable {
					return domain.ErrCarNotAvailable
				}
				return store.SetCarStatus(ctx, c, models.CarRented)
			})
			if err == nil {
				winners.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrCarNotAvailable)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
