package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

// CurrentLocationCache implements port.CurrentLocationCache on Redis. One key
// per driver holds the latest fix as JSON; the TTL keeps the cache from
// outliving history retention.
type CurrentLocationCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCurrentLocationCache constructs the cache with the supplied key prefix.
func NewCurrentLocationCache(client *redis.Client, prefix string, ttl time.Duration) *CurrentLocationCache {
	if prefix == "" {
		prefix = "transit:current_location"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CurrentLocationCache{client: client, prefix: prefix, ttl: ttl}
}

type cachedFix struct {
	ID        string    `json:"id"`
	DriverID  string    `json:"driver_id"`
	BusID     string    `json:"bus_id"`
	RouteID   string    `json:"route_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading"`
	Speed     float64   `json:"speed"`
	Accuracy  float64   `json:"accuracy"`
	Status    string    `json:"status"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Set stores the fix as the driver's current location.
func (c *CurrentLocationCache) Set(ctx context.Context, fix domain.LocationFix) error {
	payload, err := json.Marshal(cachedFix{
		ID:        fix.ID,
		DriverID:  fix.DriverID,
		BusID:     fix.BusID,
		RouteID:   fix.RouteID,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Heading:   fix.Heading,
		Speed:     fix.Speed,
		Accuracy:  fix.Accuracy,
		Status:    string(fix.Status),
		SessionID: fix.SessionID,
		Timestamp: fix.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal cached fix: %w", err)
	}

	if err := c.client.Set(ctx, c.key(fix.DriverID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set current location: %w", err)
	}
	return nil
}

// Get returns the driver's cached current location. A miss is (nil, false, nil).
func (c *CurrentLocationCache) Get(ctx context.Context, driverID string) (*domain.LocationFix, bool, error) {
	payload, err := c.client.Get(ctx, c.key(driverID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get current location: %w", err)
	}

	var cached cachedFix
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached fix: %w", err)
	}

	return &domain.LocationFix{
		ID:        cached.ID,
		DriverID:  cached.DriverID,
		BusID:     cached.BusID,
		RouteID:   cached.RouteID,
		Latitude:  cached.Latitude,
		Longitude: cached.Longitude,
		Heading:   cached.Heading,
		Speed:     cached.Speed,
		Accuracy:  cached.Accuracy,
		Status:    domain.FixStatus(cached.Status),
		SessionID: cached.SessionID,
		Timestamp: cached.Timestamp,
	}, true, nil
}

// Delete drops the driver's cached location.
func (c *CurrentLocationCache) Delete(ctx context.Context, driverID string) error {
	if err := c.client.Del(ctx, c.key(driverID)).Err(); err != nil {
		return fmt.Errorf("delete current location: %w", err)
	}
	return nil
}

func (c *CurrentLocationCache) key(driverID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, driverID)
}
