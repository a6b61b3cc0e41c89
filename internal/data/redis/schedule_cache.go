// Package redis caches derived, recomputable artifacts: amortization
// schedules and exported history snapshots. A cache miss is never an error,
// callers fall back to recomputing from the source of truth.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/welfare-savings-ledger/internal/amort"
	"github.com/welfare-savings-ledger/internal/config"
)

const (
	scheduleKeyPrefix = "schedule:"
	exportKeyPrefix   = "export:"
)

// ScheduleCache stores computed amortization schedules keyed by loan ID
type ScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewScheduleCache connects to Redis and verifies the connection
func NewScheduleCache(ctx context.Context, logger *slog.Logger, cfg *config.RedisConfig) (*ScheduleCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Connected to Redis")

	return &ScheduleCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

// GetSchedule returns the cached period breakdown for a loan, or (nil, false)
// on a miss
func (c *ScheduleCache) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]amort.Period, bool) {
	raw, err := c.client.Get(ctx, scheduleKeyPrefix+loanID.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read cached schedule", "loan_id", loanID.String(), "error", err)
		}
		return nil, false
	}

	var periods []amort.Period
	if err := json.Unmarshal(raw, &periods); err != nil {
		c.logger.Warn("Failed to decode cached schedule", "loan_id", loanID.String(), "error", err)
		return nil, false
	}

	return periods, true
}

// SetSchedule caches the period breakdown for a loan
func (c *ScheduleCache) SetSchedule(ctx context.Context, loanID uuid.UUID, periods []amort.Period) error {
	raw, err := json.Marshal(periods)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}

	if err := c.client.Set(ctx, scheduleKeyPrefix+loanID.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache schedule: %w", err)
	}

	return nil
}

// InvalidateSchedule drops the cached breakdown after a repayment changes the
// remaining balance
func (c *ScheduleCache) InvalidateSchedule(ctx context.Context, loanID uuid.UUID) error {
	if err := c.client.Del(ctx, scheduleKeyPrefix+loanID.String()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate schedule: %w", err)
	}
	return nil
}

// GetExport returns a cached history export snapshot, or (nil, false) on a miss
func (c *ScheduleCache) GetExport(ctx context.Context, exportID uuid.UUID) ([]byte, bool) {
	raw, err := c.client.Get(ctx, exportKeyPrefix+exportID.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read cached export", "export_id", exportID.String(), "error", err)
		}
		return nil, false
	}
	return raw, true
}

// SetExport stores a history export snapshot for later download
func (c *ScheduleCache) SetExport(ctx context.Context, exportID uuid.UUID, snapshot []byte) error {
	if err := c.client.Set(ctx, exportKeyPrefix+exportID.String(), snapshot, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache export: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (c *ScheduleCache) Close() error {
	return c.client.Close()
}
