package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carrental/internal/domain"
	"carrental/internal/metrics"
	"carrental/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OutboxStore is the persistence the worker drains.
type OutboxStore interface {
	GetPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// OutboxWorker delivers committed booking events at least once.
type OutboxWorker struct {
	store         OutboxStore
	publisher     domain.EventPublisher
	redis         *redis.Client
	retryPolicy   RetryPolicy
	wake          chan struct{}
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	now           func() time.Time
	logger        *zerolog.Logger
}

type OutboxOption func(*OutboxWorker)

// WithRedisMirror copies every delivered event onto a redis list for external consumers.
func WithRedisMirror(client *redis.Client, queueKey string) OutboxOption {
	return func(w *OutboxWorker) {
		w.redis = client
		if queueKey != "" {
			w.redisQueueKey = queueKey
			w.deadLetterKey = queueKey + ":deadletter"
		}
	}
}

func WithPolling(interval time.Duration, batchSize int) OutboxOption {
	return func(w *OutboxWorker) {
		if interval > 0 {
			w.pollInterval = interval
		}
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// NewOutboxWorker builds a worker with sane defaults.
func NewOutboxWorker(store OutboxStore, publisher domain.EventPublisher, retry RetryPolicy, logger *zerolog.Logger, opts ...OutboxOption) *OutboxWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	w := &OutboxWorker{
		store:         store,
		publisher:     publisher,
		retryPolicy:   retry,
		wake:          make(chan struct{}, 1),
		redisQueueKey: "bookings:events",
		deadLetterKey: "bookings:events:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     models.OutboxBatchSize,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify asks the worker to drain the outbox without waiting for the next poll.
func (w *OutboxWorker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start launches main loop; stops when ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Outbox worker started")
	defer w.logger.Info().Msg("Outbox worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		for {
			n, err := w.processBatch(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("Failed to fetch pending outbox events")
				break
			}
			if n < w.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) (int, error) {
	events, err := w.store.GetPendingOutbox(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range events {
		if ctx.Err() != nil {
			return i, nil
		}
		w.processEvent(ctx, &events[i])
	}
	return len(events), nil
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *models.OutboxEvent) {
	if !json.Valid([]byte(event.Payload)) {
		w.failEvent(ctx, event, errors.New("payload is not valid json"))
		return
	}

	if err := w.deliver(ctx, event); err != nil {
		w.retryOrFail(ctx, event, err)
		return
	}

	if err := w.store.UpdateOutboxStatus(ctx, event.ID, models.OutboxCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to mark outbox event completed")
		return
	}
	metrics.IncOutbox("delivered")
	w.logger.Debug().
		Int64("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("booking_id", event.BookingID).
		Msg("Outbox event delivered")
}

func (w *OutboxWorker) deliver(ctx context.Context, event *models.OutboxEvent) error {
	if w.publisher != nil {
		if err := w.publisher.PublishJSON(event.EventType, json.RawMessage(event.Payload)); err != nil {
			return fmt.Errorf("publish %s: %w", event.EventType, err)
		}
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, event); err != nil {
			return fmt.Errorf("mirror to redis: %w", err)
		}
	}
	return nil
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, event *models.OutboxEvent, cause error) {
	attempt := event.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failEvent(ctx, event, cause)
		return
	}

	nextTime := w.now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateOutboxStatus(ctx, event.ID, models.OutboxRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to schedule outbox retry")
		return
	}
	metrics.IncOutbox("retry")
	w.logger.Warn().Err(cause).
		Int64("event_id", event.ID).
		Int("attempt", attempt).
		Time("next_retry_at", nextTime).
		Msg("Outbox delivery failed, will retry")
}

func (w *OutboxWorker) failEvent(ctx context.Context, event *models.OutboxEvent, cause error) {
	if err := w.store.UpdateOutboxStatus(ctx, event.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to mark outbox event failed")
	}
	metrics.IncOutbox("failed")
	w.logger.Error().Err(cause).
		Int64("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("booking_id", event.BookingID).
		Msg("Outbox event moved to dead letter")

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, event); err != nil {
			w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to push outbox dead letter")
		}
	}
}

func (w *OutboxWorker) pushRedis(ctx context.Context, key string, event *models.OutboxEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
