package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type CarStatus string

const (
	CarAvailable       CarStatus = "AVAILABLE"
	CarRented          CarStatus = "RENTED"
	CarUnderRepair     CarStatus = "UNDER_REPAIR"
	CarRemoved         CarStatus = "REMOVED"
	CarUnderInspection CarStatus = "UNDER_INSPECTION"
	CarDeleted         CarStatus = "DELETED"
)

func ParseCarStatus(raw string) (CarStatus, error) {
	s := CarStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case CarAvailable, CarRented, CarUnderRepair, CarRemoved, CarUnderInspection, CarDeleted:
		return s, nil
	}
	return "", fmt.Errorf("unknown car status %q", raw)
}

type Car struct {
	ID        int64           `yaml:"id" json:"id"`
	Brand     string          `yaml:"brand" json:"brand"`
	Model     string          `yaml:"model" json:"model"`
	DailyRate decimal.Decimal `yaml:"-" json:"daily_rate"`
	Status    CarStatus       `yaml:"status" json:"status"`
	Version   int64           `yaml:"-" json:"version"`
}
