package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, carID int64) (func(), error) {
	args := m.Called(ctx, carID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func TestFailoverCarLocker(t *testing.T) {
	primary := new(mockLocker)
	fallback := new(mockLocker)
	logger := zerolog.New(io.Discard)
	locker := NewFailoverCarLocker(primary, fallback, &logger)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()
	noop := func() {}

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Lock", ctx, int64(1)).Return(noop, nil).Once()

		unlock, err := locker.Lock(ctx, 1)
		require.NoError(t, err)
		assert.NotNil(t, unlock)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailure", func(t *testing.T) {
		primary.On("Lock", ctx, int64(2)).Return(nil, errors.New("redis down")).Once()
		fallback.On("Lock", ctx, int64(2)).Return(noop, nil).Once()

		_, err := locker.Lock(ctx, 2)
		require.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Lock", ctx, int64(3)).Return(noop, nil).Once()

		_, err := locker.Lock(ctx, 3)
		require.NoError(t, err)
		primary.AssertNotCalled(t, "Lock", ctx, int64(3))
		fallback.AssertExpectations(t)
	})

	t.Run("RecoversAfterInterval", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("Lock", ctx, int64(4)).Return(noop, nil).Once()

		_, err := locker.Lock(ctx, 4)
		require.NoError(t, err)
		primary.AssertExpectations(t)

		primary.On("Lock", ctx, int64(5)).Return(noop, nil).Once()
		_, err = locker.Lock(ctx, 5)
		require.NoError(t, err)
		primary.AssertExpectations(t)
	})

	t.Run("CancelledContextDoesNotFailOver", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		primary.On("Lock", cctx, int64(6)).Return(nil, context.Canceled).Once()

		_, err := locker.Lock(cctx, 6)
		assert.ErrorIs(t, err, context.Canceled)
		fallback.AssertNotCalled(t, "Lock", cctx, int64(6))
	})
}
