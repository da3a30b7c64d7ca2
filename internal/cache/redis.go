// Package cache holds the Redis-backed seat-map cache. Seat layouts are
// snapshots that go stale the moment another traveller books, so the cache
// is read-through with a short TTL and every cache error degrades to a miss.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/config"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// SeatMapCache caches seat layouts per trip in Redis.
type SeatMapCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// NewSeatMapCache connects a seat-map cache. ttl bounds how stale a layout
// may be served.
func NewSeatMapCache(cfg config.RedisConfig, ttl time.Duration, log *logrus.Logger) *SeatMapCache {
	return &SeatMapCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		ttl:    ttl,
		log:    log,
	}
}

// GetSeatMap returns the cached layout for a trip, or a miss.
func (c *SeatMapCache) GetSeatMap(ctx context.Context, tripID string) ([]models.Seat, bool) {
	data, err := c.client.Get(ctx, seatMapKey(tripID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("Seat-map cache read failed, treating as miss")
		}
		return nil, false
	}
	var seats []models.Seat
	if err := json.Unmarshal(data, &seats); err != nil {
		c.log.WithError(err).Debug("Seat-map cache entry corrupt, treating as miss")
		return nil, false
	}
	return seats, true
}

// SetSeatMap stores the layout for a trip. Write failures are swallowed.
func (c *SeatMapCache) SetSeatMap(ctx context.Context, tripID string, seats []models.Seat) {
	payload, err := json.Marshal(seats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, seatMapKey(tripID), payload, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("Seat-map cache write failed")
	}
}

// Invalidate drops the cached layout for a trip.
func (c *SeatMapCache) Invalidate(ctx context.Context, tripID string) {
	if err := c.client.Del(ctx, seatMapKey(tripID)).Err(); err != nil {
		c.log.WithError(err).Debug("Seat-map cache invalidation failed")
	}
}

// Close releases the Redis connection.
func (c *SeatMapCache) Close() error {
	return c.client.Close()
}

func seatMapKey(tripID string) string {
	return "cache:seatmap:" + tripID
}
