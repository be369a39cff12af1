// Package oddscache is a Redis write-through cache of each event's latest
// captured odds record. It also holds the alert-eligible view's staleness
// marker, so the "does the view need a refresh" check in the history
// matcher is a cheap round trip instead of a live Postgres query on every
// evaluation.
package oddscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fortuna-labs/oracle/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	keyPrefix = "oracle:oddscache:"
	staleKey  = "oracle:alerts:stale"
)

// Cache is a Redis-backed write-through cache over OddsRecord.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// cachedRecord is the JSON-serializable mirror of models.OddsRecord.
type cachedRecord struct {
	EventID         int64            `json:"event_id"`
	OneOpen         *decimal.Decimal `json:"one_open,omitempty"`
	XOpen           *decimal.Decimal `json:"x_open,omitempty"`
	TwoOpen         *decimal.Decimal `json:"two_open,omitempty"`
	OneFinal        *decimal.Decimal `json:"one_final,omitempty"`
	XFinal          *decimal.Decimal `json:"x_final,omitempty"`
	TwoFinal        *decimal.Decimal `json:"two_final,omitempty"`
	OpenCapturedAt  *time.Time       `json:"open_captured_at,omitempty"`
	FinalCapturedAt *time.Time       `json:"final_captured_at,omitempty"`
}

// New creates a write-through odds cache with the given entry TTL.
func New(redisClient *redis.Client, ttl time.Duration) *Cache {
	return &Cache{redis: redisClient, ttl: ttl}
}

func buildKey(eventID int64) string {
	return fmt.Sprintf("%sevent:%d", keyPrefix, eventID)
}

func toCached(rec models.OddsRecord) cachedRecord {
	return cachedRecord{
		EventID:         rec.EventID,
		OneOpen:         rec.OneOpen,
		XOpen:           rec.XOpen,
		TwoOpen:         rec.TwoOpen,
		OneFinal:        rec.OneFinal,
		XFinal:          rec.XFinal,
		TwoFinal:        rec.TwoFinal,
		OpenCapturedAt:  rec.OpenCapturedAt,
		FinalCapturedAt: rec.FinalCapturedAt,
	}
}

func (c cachedRecord) toRecord() models.OddsRecord {
	return models.OddsRecord{
		EventID:         c.EventID,
		OneOpen:         c.OneOpen,
		XOpen:           c.XOpen,
		TwoOpen:         c.TwoOpen,
		OneFinal:        c.OneFinal,
		XFinal:          c.XFinal,
		TwoFinal:        c.TwoFinal,
		OpenCapturedAt:  c.OpenCapturedAt,
		FinalCapturedAt: c.FinalCapturedAt,
	}
}

// Put writes a single record through to Redis. Callers invoke this after a
// successful repository write (write-through, never the other way around).
func (c *Cache) Put(ctx context.Context, rec models.OddsRecord) error {
	data, err := json.Marshal(toCached(rec))
	if err != nil {
		return fmt.Errorf("marshal cached odds record: %w", err)
	}
	if err := c.redis.Set(ctx, buildKey(rec.EventID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the cached record for an event, if present.
func (c *Cache) Get(ctx context.Context, eventID int64) (*models.OddsRecord, bool, error) {
	val, err := c.redis.Get(ctx, buildKey(eventID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var cached cachedRecord
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Corrupt entry: treat as a miss rather than fail the caller.
		return nil, false, nil
	}
	rec := cached.toRecord()
	return &rec, true, nil
}

// RebuildCache bulk-loads the current odds records into Redis. Called at
// boot and by the
// refresh-alerts command so a cold Redis doesn't make every event in the
// pre-start window look "unchanged" on the first tick after a restart.
func (c *Cache) RebuildCache(ctx context.Context, records []models.OddsRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := c.redis.Pipeline()
	for _, rec := range records {
		data, err := json.Marshal(toCached(rec))
		if err != nil {
			return fmt.Errorf("marshal cached odds record: %w", err)
		}
		pipe.Set(ctx, buildKey(rec.EventID), data, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline exec: %w", err)
	}
	return nil
}

// MarkStale flips the alert-eligible view's staleness marker. Called after
// any write to Event, OddsRecord, or Result.
func (c *Cache) MarkStale(ctx context.Context) error {
	if err := c.redis.Set(ctx, staleKey, "1", 0).Err(); err != nil {
		return fmt.Errorf("redis set stale marker: %w", err)
	}
	return nil
}

// IsStale reports whether the alert-eligible materialized view needs a
// refresh before the matcher relies on it.
func (c *Cache) IsStale(ctx context.Context) (bool, error) {
	val, err := c.redis.Get(ctx, staleKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get stale marker: %w", err)
	}
	return val == "1", nil
}

// ClearStale resets the staleness marker after a successful view refresh.
func (c *Cache) ClearStale(ctx context.Context) error {
	if err := c.redis.Del(ctx, staleKey).Err(); err != nil {
		return fmt.Errorf("redis del stale marker: %w", err)
	}
	return nil
}
