package service

import (
	"context"
	"errors"
	"time"

	"courtbooking/internal/entities"
	apperr "courtbooking/internal/errors"
	"courtbooking/internal/repository"

	"github.com/shopspring/decimal"
)

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

type QuoteService struct {
	Catalog  repository.CatalogStore
	Currency string
}

func NewQuoteService(catalog repository.CatalogStore, currency string) *QuoteService {
	return &QuoteService{Catalog: catalog, Currency: currency}
}

// Quote prices [start, end) on a court at its hourly rate. It never writes.
func (s *QuoteService) Quote(ctx context.Context, courtID string, start, end time.Time) (*entities.Quote, error) {
	if !end.After(start) {
		return nil, apperr.Validation("endTime must be after startTime")
	}
	court, err := s.Catalog.GetCourt(ctx, courtID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("court %s not found", courtID)
		}
		return nil, err
	}
	d := end.Sub(start)
	return &entities.Quote{
		CourtID:       court.ID,
		StartTime:     start,
		EndTime:       end,
		DurationHours: d.Hours(),
		Amount:        PriceFor(court.PricePerHour, d),
		Currency:      s.Currency,
	}, nil
}

// PriceFor is pricePerHour * d, exact.
func PriceFor(pricePerHour decimal.Decimal, d time.Duration) decimal.Decimal {
	return pricePerHour.Mul(decimal.NewFromInt(int64(d))).Div(nanosPerHour)
}

// ChargedAmount rounds amount to whole paise, half away from zero. Stored
// reservation prices and provider amounts both use it.
func ChargedAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// MinorUnits converts an amount to the provider's smallest unit (paise).
func MinorUnits(amount decimal.Decimal) int64 {
	return ChargedAmount(amount).Shift(2).IntPart()
}

// FromMinorUnits is the inverse of MinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
