package models

const (
	// DefaultMaxBookingDays caps the length of a rental in billed days.
	DefaultMaxBookingDays = 365

	// DefaultLockTTL is how long a per-car lock is held before it expires, in seconds.
	DefaultLockTTL = 30

	// OutboxBatchSize is how many outbox rows the worker fetches per poll.
	OutboxBatchSize = 20

	// DateLayout is the wire format for date-only query parameters.
	DateLayout = "2006-01-02"
)
