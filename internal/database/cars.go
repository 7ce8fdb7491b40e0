package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carrental/internal/domain"
	"carrental/internal/models"
)

func (s *queries) GetCar(ctx context.Context, id int64) (*models.Car, error) {
	query := `SELECT id, brand, model, daily_rate, status, version FROM cars WHERE id = ?`
	car, err := scanCar(s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrCarNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get car %d: %w", id, err)
	}
	return car, nil
}

// SetCarStatus is a compare-and-set on the car version read earlier in the same operation.
func (s *queries) SetCarStatus(ctx context.Context, car *models.Car, status models.CarStatus) error {
	query := `UPDATE cars SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := s.q.ExecContext(ctx, query, string(status), formatTime(s.now()), car.ID, car.Version)
	if err != nil {
		return fmt.Errorf("failed to set car %d status: %w", car.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set car %d status: %w", car.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: car %d version %d", domain.ErrConcurrentModification, car.ID, car.Version)
	}
	car.Status = status
	car.Version++
	return nil
}

// UpsertCar seeds or refreshes a catalog entry. Status is only set on insert,
// an existing car keeps the status owned by the booking engine.
func (s *queries) UpsertCar(ctx context.Context, car *models.Car) error {
	if car.Status == "" {
		car.Status = models.CarAvailable
	}
	query := `INSERT INTO cars (id, brand, model, daily_rate, status, version, updated_at)
              VALUES (?, ?, ?, ?, ?, 1, ?)
              ON CONFLICT(id) DO UPDATE SET
                brand = excluded.brand,
                model = excluded.model,
                daily_rate = excluded.daily_rate,
                updated_at = excluded.updated_at`
	_, err := s.q.ExecContext(ctx, query,
		car.ID,
		car.Brand,
		car.Model,
		car.DailyRate.StringFixed(2),
		string(car.Status),
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert car %d: %w", car.ID, err)
	}

	stored, err := s.GetCar(ctx, car.ID)
	if err != nil {
		return err
	}
	*car = *stored
	return nil
}

func (s *queries) ListCars(ctx context.Context) ([]*models.Car, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, brand, model, daily_rate, status, version FROM cars ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	var cars []*models.Car
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, car)
	}
	return cars, rows.Err()
}

func scanCar(row rowScanner) (*models.Car, error) {
	var car models.Car
	var status string
	if err := row.Scan(&car.ID, &car.Brand, &car.Model, &car.DailyRate, &status, &car.Version); err != nil {
		return nil, err
	}
	car.Status = models.CarStatus(status)
	return &car, nil
}
