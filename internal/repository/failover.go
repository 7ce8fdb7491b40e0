package repository

import (
	"context"
	"sync"
	"time"

	"carrental/internal/domain"

	"github.com/rs/zerolog"
)

const failoverRecoveryInterval = time.Minute

// FailoverCarLocker uses the primary locker and falls back to the secondary while the
// primary is failing. The primary is retried after failoverRecoveryInterval.
type FailoverCarLocker struct {
	primary  domain.CarLocker
	fallback domain.CarLocker
	logger   *zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
}

func NewFailoverCarLocker(primary, fallback domain.CarLocker, logger *zerolog.Logger) *FailoverCarLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverCarLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (l *FailoverCarLocker) usePrimary() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.isDown {
		return true
	}
	if l.now().Sub(l.lastCheck) > failoverRecoveryInterval {
		l.lastCheck = l.now()
		return true
	}
	return false
}

func (l *FailoverCarLocker) markDown(down bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.isDown = down
	if down {
		l.lastCheck = l.now()
	}
}

func (l *FailoverCarLocker) Lock(ctx context.Context, carID int64) (func(), error) {
	if l.usePrimary() {
		unlock, err := l.primary.Lock(ctx, carID)
		if err == nil {
			l.markDown(false)
			return unlock, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		l.logger.Error().Err(err).Int64("car_id", carID).Msg("Primary car locker failed, falling back to memory")
		l.markDown(true)
	}

	return l.fallback.Lock(ctx, carID)
}
