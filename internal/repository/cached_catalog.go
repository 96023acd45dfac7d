package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courtbooking/internal/db"

	"github.com/redis/go-redis/v9"
)

// KeyCourt caches a court row: court:{id} -> JSON.
const KeyCourt = "court:%s"

// RedisCache is the part of *redis.Client the catalog cache uses.
type RedisCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, ReadTimeout: 2 * time.Second, WriteTimeout: 2 * time.Second})
}

// CachedCatalog reads courts through Redis. Redis failures fall back to the
// underlying store; they never fail a lookup. Court lists are not cached so
// the cheapest-court choice always sees current prices.
type CachedCatalog struct {
	Store CatalogStore
	Redis RedisCache
	TTL   time.Duration
}

func NewCachedCatalog(store CatalogStore, rdb RedisCache, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{Store: store, Redis: rdb, TTL: ttl}
}

func (c *CachedCatalog) GetCourt(ctx context.Context, id string) (*db.Court, error) {
	key := fmt.Sprintf(KeyCourt, id)
	if s, err := c.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		var court db.Court
		if err := json.Unmarshal([]byte(s), &court); err == nil {
			return &court, nil
		}
		slog.Warn("discarding unreadable cached court", "court_id", id)
	} else if err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("court cache read failed", "court_id", id, "error", err)
	}

	court, err := c.Store.GetCourt(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(court); err == nil {
		if err := c.Redis.Set(ctx, key, b, c.TTL).Err(); err != nil {
			slog.Warn("court cache write failed", "court_id", id, "error", err)
		}
	}
	return court, nil
}

func (c *CachedCatalog) ListCourtsForSport(ctx context.Context, venueID, sportType string) ([]db.Court, error) {
	return c.Store.ListCourtsForSport(ctx, venueID, sportType)
}
