package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"courtbooking/internal/db"
)

// CatalogStore is the read side of venues and courts.
type CatalogStore interface {
	GetCourt(ctx context.Context, id string) (*db.Court, error)
	// ListCourtsForSport returns the venue's courts for sportType, cheapest first.
	ListCourtsForSport(ctx context.Context, venueID, sportType string) ([]db.Court, error)
}

const courtColumns = `id, venue_id, name, sport_type, price_per_hour, open_time, close_time`

type CatalogRepository struct {
	DB *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func (r *CatalogRepository) GetCourt(ctx context.Context, id string) (*db.Court, error) {
	var c db.Court
	err := r.DB.QueryRowContext(ctx, `SELECT `+courtColumns+` FROM courts WHERE id = $1`, id).Scan(
		&c.ID, &c.VenueID, &c.Name, &c.SportType, &c.PricePerHour, &c.OpenTime, &c.CloseTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying court: %w", err)
	}
	return &c, nil
}

func (r *CatalogRepository) ListCourtsForSport(ctx context.Context, venueID, sportType string) ([]db.Court, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+courtColumns+`
		FROM courts
		WHERE venue_id = $1 AND sport_type = $2
		ORDER BY price_per_hour ASC, id ASC`, venueID, sportType)
	if err != nil {
		return nil, fmt.Errorf("error querying courts: %w", err)
	}
	defer rows.Close()

	var courts []db.Court
	for rows.Next() {
		var c db.Court
		if err := rows.Scan(&c.ID, &c.VenueID, &c.Name, &c.SportType, &c.PricePerHour, &c.OpenTime, &c.CloseTime); err != nil {
			return nil, fmt.Errorf("error scanning court: %w", err)
		}
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating courts: %w", err)
	}
	return courts, nil
}

// MemoryCatalog serves a fixed set of courts.
type MemoryCatalog struct {
	mu     sync.RWMutex
	courts map[string]db.Court
}

func NewMemoryCatalog(courts ...db.Court) *MemoryCatalog {
	m := &MemoryCatalog{courts: make(map[string]db.Court, len(courts))}
	for _, c := range courts {
		m.courts[c.ID] = c
	}
	return m
}

func (m *MemoryCatalog) GetCourt(_ context.Context, id string) (*db.Court, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryCatalog) ListCourtsForSport(_ context.Context, venueID, sportType string) ([]db.Court, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []db.Court
	for _, c := range m.courts {
		if c.VenueID == venueID && c.SportType == sportType {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].PricePerHour.Cmp(out[j].PricePerHour); cmp != 0 {
			return cmp < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
