// Package cache keeps the latest forecast per region in Redis for the serving API.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leadgen_backend/internal/events"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/ports"
	"leadgen_backend/platform/logger"
)

const keyPrefix = "surge:forecast:latest:"

// NewRedisClient parses a redis:// or rediss:// URL.
func NewRedisClient(redisURL string, tlsInsecure bool) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if tlsInsecure {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// ForecastCache decorates a ForecastStore with a read-through Redis copy of GetLatest.
// Redis failures degrade to the underlying store.
type ForecastCache struct {
	ports.ForecastStore
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// New wraps store. A non-positive ttl keeps entries until overwritten.
func New(store ports.ForecastStore, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *ForecastCache {
	if log == nil {
		log = logger.Nop()
	}
	return &ForecastCache{ForecastStore: store, rdb: rdb, ttl: ttl, log: log}
}

func key(regionID string) string { return keyPrefix + regionID }

// GetLatest serves from Redis and falls back to the store on a miss.
func (c *ForecastCache) GetLatest(ctx context.Context, regionID string) (*domain.ForecastPrediction, error) {
	raw, err := c.rdb.Get(ctx, key(regionID)).Bytes()
	switch {
	case err == nil:
		var p domain.ForecastPrediction
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		c.log.Warn("discarding undecodable cached forecast", "regionId", regionID)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("forecast cache read failed", "regionId", regionID, "error", err)
	}

	p, err := c.ForecastStore.GetLatest(ctx, regionID)
	if err != nil || p == nil {
		return p, err
	}
	c.put(ctx, *p)
	return p, nil
}

// UpsertLatest writes through to the store, then re-reads the region's latest
// forecast into Redis.
func (c *ForecastCache) UpsertLatest(ctx context.Context, p domain.ForecastPrediction) error {
	if err := c.ForecastStore.UpsertLatest(ctx, p); err != nil {
		return err
	}
	return c.Refresh(ctx, p.RegionID)
}

// Refresh reloads the region's latest forecast from the store into Redis.
func (c *ForecastCache) Refresh(ctx context.Context, regionID string) error {
	p, err := c.ForecastStore.GetLatest(ctx, regionID)
	if err != nil {
		return err
	}
	if p == nil {
		return c.rdb.Del(ctx, key(regionID)).Err()
	}
	c.put(ctx, *p)
	return nil
}

// Invalidate drops the cached entry.
func (c *ForecastCache) Invalidate(ctx context.Context, regionID string) error {
	return c.rdb.Del(ctx, key(regionID)).Err()
}

func (c *ForecastCache) put(ctx context.Context, p domain.ForecastPrediction) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.log.Warn("forecast cache encode failed", "regionId", p.RegionID, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key(p.RegionID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("forecast cache write failed", "regionId", p.RegionID, "error", err)
	}
}

// Subscribe refreshes the cache whenever a forecast is generated elsewhere in the process.
func (c *ForecastCache) Subscribe(bus events.Bus) {
	bus.Subscribe(events.ForecastGenerated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.ForecastGenerated)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}
		return c.Refresh(ctx, e.RegionID)
	}))
}
