package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"carrental/internal/domain"
	"carrental/internal/events"
	"carrental/internal/logging"
	"carrental/internal/metrics"
	"carrental/internal/models"
	"carrental/internal/pricing"
	"carrental/internal/timerange"

	"github.com/rs/zerolog"
)

type BookingService struct {
	tx     domain.Transactor
	store  domain.Store
	locker domain.CarLocker

	extension      ExtensionPolicy
	scanOnCreate   bool
	maxBookingDays int
	loc            *time.Location
	now            func() time.Time
	afterCommit    func()
	logger         *zerolog.Logger
}

var _ domain.BookingService = (*BookingService)(nil)

type Option func(*BookingService)

func WithExtensionPolicy(p ExtensionPolicy) Option {
	return func(s *BookingService) { s.extension = p }
}

// WithCreateOverlapScan toggles the calendar scan at creation on top of the car status check.
func WithCreateOverlapScan(enabled bool) Option {
	return func(s *BookingService) { s.scanOnCreate = enabled }
}

func WithMaxBookingDays(days int) Option {
	return func(s *BookingService) {
		if days > 0 {
			s.maxBookingDays = days
		}
	}
}

// WithLocation sets the zone whose calendar days are billed.
func WithLocation(loc *time.Location) Option {
	return func(s *BookingService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *BookingService) { s.now = now }
}

// WithAfterCommit registers a hook run after every committed mutation, e.g. to wake the outbox worker.
func WithAfterCommit(fn func()) Option {
	return func(s *BookingService) { s.afterCommit = fn }
}

func NewBookingService(tx domain.Transactor, store domain.Store, locker domain.CarLocker, logger *zerolog.Logger, opts ...Option) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &BookingService{
		tx:             tx,
		store:          store,
		locker:         locker,
		extension:      ExtensionPolicy{AdminBypassesConflicts: true},
		scanOnCreate:   true,
		maxBookingDays: models.DefaultMaxBookingDays,
		loc:            time.UTC,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BookingService) CreateBooking(ctx context.Context, req domain.CreateBookingRequest, customerEmail string) (booking *models.Booking, err error) {
	defer s.observe(ctx, "create", time.Now(), &err)

	now := s.now()
	start, end := req.Start.In(s.loc), req.End.In(s.loc)
	if err := timerange.Validate(start, end, now.In(s.loc)); err != nil {
		return nil, err
	}
	requested := timerange.Range{Start: start, End: end}
	if days := requested.Days(); days > s.maxBookingDays {
		return nil, fmt.Errorf("%w: %d days exceeds the limit of %d", domain.ErrInvalidRange, days, s.maxBookingDays)
	}

	unlock, err := s.lockCar(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Store) error {
		car, err := st.GetCar(ctx, req.CarID)
		if err != nil {
			return err
		}
		customer, err := st.FindCustomerByEmail(ctx, customerEmail)
		if err != nil {
			return err
		}
		total, err := pricing.ComputeTotal(requested, car.DailyRate)
		if err != nil {
			return fmt.Errorf("price car %d: %w", car.ID, err)
		}

		if car.Status != models.CarAvailable {
			return fmt.Errorf("%w: car %d is %s", domain.ErrCarNotAvailable, car.ID, car.Status)
		}
		if s.scanOnCreate {
			if err := findConflict(ctx, st, car.ID, "", requested); err != nil {
				return err
			}
		}

		if err := st.SetCarStatus(ctx, car, models.CarRented); err != nil {
			return err
		}

		b := &models.Booking{
			CustomerID: customer.ID,
			CarID:      car.ID,
			StartDate:  start,
			EndDate:    end,
			Status:     models.StatusActive,
			TotalPrice: total,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := st.SaveBooking(ctx, b); err != nil {
			return err
		}
		if err := appendEvent(ctx, st, events.EventBookingCreated, b, car.Status, customer.Actor(), now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed()
	logging.FromContext(ctx, s.logger).Info().
		Str("booking_id", booking.ID).
		Int64("car_id", booking.CarID).
		Int64("customer_id", booking.CustomerID).
		Str("total_price", booking.TotalPrice.StringFixed(pricing.Scale)).
		Msg("Booking created")
	return booking, nil
}

func (s *BookingService) ExtendBooking(ctx context.Context, id, customerEmail string, newEnd time.Time) (booking *models.Booking, err error) {
	defer s.observe(ctx, "extend", time.Now(), &err)

	carID, err := s.carOf(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockCar(ctx, carID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	newEnd = newEnd.In(s.loc)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Store) error {
		b, err := st.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		actor, err := resolveActor(ctx, st, customerEmail)
		if err != nil {
			return err
		}
		if err := CanModify(actor, b); err != nil {
			return err
		}
		if b.Status != models.StatusActive {
			return fmt.Errorf("%w: cannot extend booking %s in status %s", domain.ErrInvalidState, b.ID, b.Status)
		}
		if !newEnd.After(b.EndDate) {
			return fmt.Errorf("%w: booking %s ends %s, requested %s", domain.ErrInvalidExtension,
				b.ID, b.EndDate.Format(time.RFC3339), newEnd.Format(time.RFC3339))
		}

		extended := timerange.Range{Start: b.StartDate.In(s.loc), End: newEnd}
		if days := extended.Days(); days > s.maxBookingDays {
			return fmt.Errorf("%w: booking %s would last %d days, limit is %d", domain.ErrInvalidExtension, b.ID, days, s.maxBookingDays)
		}

		if s.extension.RequiresConflictCheck(actor) {
			window := timerange.Range{Start: b.EndDate, End: newEnd}
			if err := findConflict(ctx, st, b.CarID, b.ID, window); err != nil {
				return err
			}
		}

		car, err := st.GetCar(ctx, b.CarID)
		if err != nil {
			return err
		}
		total, err := pricing.ComputeTotal(extended, car.DailyRate)
		if err != nil {
			return fmt.Errorf("price car %d: %w", car.ID, err)
		}
		if car.Status != models.CarRented {
			if err := st.SetCarStatus(ctx, car, models.CarRented); err != nil {
				return err
			}
		}

		b.EndDate = newEnd
		b.TotalPrice = total
		b.UpdatedAt = now
		if err := st.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if err := appendEvent(ctx, st, events.EventBookingExtended, b, car.Status, actor, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed()
	logging.FromContext(ctx, s.logger).Info().
		Str("booking_id", booking.ID).
		Int64("car_id", booking.CarID).
		Time("new_end", booking.EndDate).
		Str("total_price", booking.TotalPrice.StringFixed(pricing.Scale)).
		Msg("Booking extended")
	return booking, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id, customerEmail string) (booking *models.Booking, err error) {
	defer s.observe(ctx, "cancel", time.Now(), &err)

	carID, err := s.carOf(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockCar(ctx, carID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Store) error {
		b, err := st.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		actor, err := resolveActor(ctx, st, customerEmail)
		if err != nil {
			return err
		}
		if err := CanModify(actor, b); err != nil {
			return err
		}
		if b.Status != models.StatusActive {
			return fmt.Errorf("%w: cannot cancel booking %s in status %s", domain.ErrInvalidState, b.ID, b.Status)
		}

		car, err := st.GetCar(ctx, b.CarID)
		if err != nil {
			return err
		}
		if err := st.SetCarStatus(ctx, car, models.CarAvailable); err != nil {
			return err
		}

		b.Status = cancelledStatus(actor)
		b.UpdatedAt = now
		if err := st.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if err := appendEvent(ctx, st, events.EventBookingCancelled, b, car.Status, actor, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed()
	logging.FromContext(ctx, s.logger).Info().
		Str("booking_id", booking.ID).
		Int64("car_id", booking.CarID).
		Str("status", string(booking.Status)).
		Msg("Booking cancelled")
	return booking, nil
}

func (s *BookingService) CloseBooking(ctx context.Context, id, customerEmail string) (err error) {
	defer s.observe(ctx, "close", time.Now(), &err)

	actor, err := resolveActor(ctx, s.store, customerEmail)
	if err != nil {
		return err
	}
	if err := CanClose(actor); err != nil {
		return err
	}

	carID, err := s.carOf(ctx, id)
	if err != nil {
		return err
	}
	unlock, err := s.lockCar(ctx, carID)
	if err != nil {
		return err
	}
	defer unlock()

	now := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Store) error {
		b, err := st.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != models.StatusActive {
			return fmt.Errorf("%w: cannot close booking %s in status %s", domain.ErrInvalidState, b.ID, b.Status)
		}

		car, err := st.GetCar(ctx, b.CarID)
		if err != nil {
			return err
		}
		if err := st.SetCarStatus(ctx, car, models.CarUnderInspection); err != nil {
			return err
		}

		b.Status = models.StatusClosedByAdmin
		b.UpdatedAt = now
		if err := st.UpdateBooking(ctx, b); err != nil {
			return err
		}
		return appendEvent(ctx, st, events.EventBookingClosed, b, car.Status, actor, now)
	})
	if err != nil {
		return err
	}

	s.committed()
	logging.FromContext(ctx, s.logger).Info().Str("booking_id", id).Int64("car_id", carID).Msg("Booking closed")
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.store.ListBookings(ctx)
}

func (s *BookingService) ListBookingsByCar(ctx context.Context, carID int64) ([]*models.Booking, error) {
	return s.store.ListBookingsByCar(ctx, carID)
}

// ListBookingsByDateOrStatus accepts one date bound, a status, or a status with one date bound.
// Results are ordered by status, then start date.
func (s *BookingService) ListBookingsByDateOrStatus(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	if filter.Start != nil && filter.End != nil {
		return nil, fmt.Errorf("%w: filter by start or end date, not both", domain.ErrInvalidQuery)
	}
	if filter.Start == nil && filter.End == nil && filter.Status == nil {
		return nil, fmt.Errorf("%w: a date or a status is required", domain.ErrInvalidQuery)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidQuery, *filter.Status)
	}

	bookings, err := s.store.FindBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(bookings, func(a, b *models.Booking) int {
		return cmp.Or(
			strings.Compare(string(a.Status), string(b.Status)),
			a.StartDate.Compare(b.StartDate),
		)
	})
	return bookings, nil
}

// findConflict returns a ConflictError for the first active booking of the car,
// other than excludeID, that overlaps window.
func findConflict(ctx context.Context, st domain.BookingStore, carID int64, excludeID string, window timerange.Range) error {
	active, err := st.ListActiveBookingsByCar(ctx, carID)
	if err != nil {
		return err
	}
	for _, b := range active {
		if b.ID == excludeID {
			continue
		}
		if timerange.Overlaps(b.Range(), window) {
			return &domain.ConflictError{
				CarID:     carID,
				BookingID: b.ID,
				Requested: window,
				Existing:  b.Range(),
			}
		}
	}
	return nil
}

func resolveActor(ctx context.Context, dir domain.CustomerDirectory, email string) (models.Actor, error) {
	customer, err := dir.FindCustomerByEmail(ctx, email)
	if err != nil {
		return models.Actor{}, err
	}
	return customer.Actor(), nil
}

// carOf reads the car id outside the transaction so the car lock can be taken first.
// The car of a booking never changes.
func (s *BookingService) carOf(ctx context.Context, bookingID string) (int64, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	return b.CarID, nil
}

func (s *BookingService) lockCar(ctx context.Context, carID int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, carID)
	if err != nil {
		return nil, fmt.Errorf("lock car %d: %w", carID, err)
	}
	return unlock, nil
}

func (s *BookingService) committed() {
	if s.afterCommit != nil {
		s.afterCommit()
	}
}

func (s *BookingService) observe(ctx context.Context, operation string, started time.Time, errp *error) {
	outcome := outcomeOf(*errp)
	metrics.ObserveBooking(operation, outcome, time.Since(started))
	if *errp != nil {
		logging.FromContext(ctx, s.logger).Warn().Err(*errp).Str("operation", operation).Str("outcome", outcome).Msg("Booking operation rejected")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrBookingNotFound), errors.Is(err, domain.ErrCarNotFound), errors.Is(err, domain.ErrCustomerNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrCarNotAvailable):
		return "not_available"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrInvalidExtension), errors.Is(err, domain.ErrInvalidQuery):
		return "invalid"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "contention"
	default:
		return "error"
	}
}

func appendEvent(ctx context.Context, st domain.OutboxWriter, eventType string, b *models.Booking, carStatus models.CarStatus, actor models.Actor, at time.Time) error {
	payload, err := json.Marshal(events.BookingEventPayload{
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		CarID:      b.CarID,
		Status:     string(b.Status),
		CarStatus:  string(carStatus),
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		TotalPrice: b.TotalPrice,
		ActorEmail: actor.Email,
		ActorRole:  string(actor.Role),
		OccurredAt: at,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return st.AppendOutbox(ctx, &models.OutboxEvent{
		EventType: eventType,
		BookingID: b.ID,
		Payload:   string(payload),
	})
}
