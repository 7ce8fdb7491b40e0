package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"carrental/internal/domain"
	"carrental/internal/models"
)

func (s *queries) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	email = strings.TrimSpace(email)
	query := `SELECT id, email, first_name, last_name, role FROM customers WHERE email = ?`

	var c models.Customer
	var role string
	err := s.q.QueryRowContext(ctx, query, email).Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer %s: %w", email, err)
	}
	c.Role = models.Role(role)
	return &c, nil
}

func (s *queries) UpsertCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.Role == "" {
		customer.Role = models.RoleUser
	}
	query := `INSERT INTO customers (email, first_name, last_name, role, created_at)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(email) DO UPDATE SET
                first_name = excluded.first_name,
                last_name = excluded.last_name,
                role = excluded.role`
	_, err := s.q.ExecContext(ctx, query,
		strings.TrimSpace(customer.Email),
		customer.FirstName,
		customer.LastName,
		string(customer.Role),
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", customer.Email, err)
	}

	stored, err := s.FindCustomerByEmail(ctx, customer.Email)
	if err != nil {
		return err
	}
	*customer = *stored
	return nil
}
