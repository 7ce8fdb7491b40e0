package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"carrental/internal/database"
	"carrental/internal/export"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	var (
		dbPath  = flag.String("db", "./data/carrental.db", "path to sqlite db")
		outPath = flag.String("out", "", "output xlsx path (default bookings_<date>.xlsx)")
	)
	flag.Parse()

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bookings, err := db.ListBookings(ctx)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}

	now := time.Now().UTC()
	if *outPath == "" {
		*outPath = fmt.Sprintf("bookings_%s.xlsx", now.Format("2006-01-02"))
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", *outPath, err)
	}
	if err := export.WriteBookingsWorkbook(f, bookings, now); err != nil {
		_ = f.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("done: bookings=%d file=%s\n", len(bookings), *outPath)
	return nil
}
