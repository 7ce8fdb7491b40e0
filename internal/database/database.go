package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements domain.Store on top of a querier.
type queries struct {
	q   querier
	now func() time.Time
}

type DB struct {
	*sql.DB
	queries

	path       string
	logger     *zerolog.Logger
	backoff    Backoff
	maxRetries int
}

type Option func(*DB)

// WithRetry sets how many times WithinTx re-runs a transaction after transient contention.
func WithRetry(maxRetries int, backoff Backoff) Option {
	return func(db *DB) {
		db.maxRetries = maxRetries
		if backoff != nil {
			db.backoff = backoff
		}
	}
}

// WithClock overrides the timestamp source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.queries.now = now
	}
}

func NewDB(path string, logger *zerolog.Logger, opts ...Option) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	memory := path == ":memory:"
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", path)
	if memory {
		dsn = "file::memory:?_txlock=immediate&_foreign_keys=on"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// every new connection would get its own empty in-memory database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db := &DB{
		DB:         sqlDB,
		path:       path,
		logger:     logger,
		backoff:    constantBackoff(50 * time.Millisecond),
		maxRetries: 3,
	}
	db.queries = queries{q: sqlDB, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return db, nil
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cars (
            id INTEGER PRIMARY KEY,
            brand TEXT NOT NULL,
            model TEXT NOT NULL,
            daily_rate TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'AVAILABLE',
            version INTEGER NOT NULL DEFAULT 1,
            updated_at TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS customers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            email TEXT NOT NULL UNIQUE COLLATE NOCASE,
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'USER',
            created_at TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            customer_id INTEGER NOT NULL REFERENCES customers(id),
            car_id INTEGER NOT NULL REFERENCES cars(id),
            rental_start_date TEXT NOT NULL,
            rental_end_date TEXT NOT NULL,
            status TEXT NOT NULL,
            total_price TEXT NOT NULL,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            version INTEGER NOT NULL DEFAULT 1,
            CHECK (rental_end_date > rental_start_date)
        )`,
		`CREATE TABLE IF NOT EXISTS outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_type TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at TEXT NOT NULL,
            processed_at TEXT,
            next_retry_at TEXT
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_car_status ON bookings(car_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_start ON bookings(rental_start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("error executing %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", raw, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
