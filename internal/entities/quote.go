package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type Quote struct {
	CourtID       string          `json:"courtId"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	DurationHours float64         `json:"durationHours"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}
