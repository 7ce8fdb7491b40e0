package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"carrental/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// fleetFile is the seed catalog: cars and the customers allowed to book them.
type fleetFile struct {
	Cars []struct {
		ID        int64  `yaml:"id"`
		Brand     string `yaml:"brand"`
		Model     string `yaml:"model"`
		DailyRate string `yaml:"daily_rate"`
		Status    string `yaml:"status"`
	} `yaml:"cars"`
	Customers []struct {
		Email     string `yaml:"email"`
		FirstName string `yaml:"first_name"`
		LastName  string `yaml:"last_name"`
		Role      string `yaml:"role"`
	} `yaml:"customers"`
}

type catalogWriter interface {
	UpsertCar(ctx context.Context, car *models.Car) error
	UpsertCustomer(ctx context.Context, customer *models.Customer) error
}

func loadFleet(path string) (*fleetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fleet fleetFile
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("parse fleet %s: %w", path, err)
	}
	return &fleet, nil
}

func (f *fleetFile) seed(ctx context.Context, db catalogWriter) error {
	for _, c := range f.Cars {
		rate, err := decimal.NewFromString(c.DailyRate)
		if err != nil {
			return fmt.Errorf("car %d: invalid daily_rate %q: %w", c.ID, c.DailyRate, err)
		}
		if rate.IsNegative() {
			return fmt.Errorf("car %d: daily_rate must not be negative", c.ID)
		}
		car := &models.Car{ID: c.ID, Brand: c.Brand, Model: c.Model, DailyRate: rate}
		if c.Status != "" {
			if car.Status, err = models.ParseCarStatus(c.Status); err != nil {
				return fmt.Errorf("car %d: %w", c.ID, err)
			}
		}
		if err := db.UpsertCar(ctx, car); err != nil {
			return err
		}
	}

	for _, c := range f.Customers {
		role := models.Role(strings.ToUpper(strings.TrimSpace(c.Role)))
		if role == "" {
			role = models.RoleUser
		}
		if role != models.RoleUser && role != models.RoleAdmin {
			return fmt.Errorf("customer %s: unknown role %q", c.Email, c.Role)
		}
		customer := &models.Customer{Email: c.Email, FirstName: c.FirstName, LastName: c.LastName, Role: role}
		if err := db.UpsertCustomer(ctx, customer); err != nil {
			return err
		}
	}
	return nil
}
