package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gridtoken/internal/models"
)

const (
	latestTTL   = 24 * time.Hour
	realtimeTTL = 10 * time.Minute
)

// Store caches the latest reading and the pre-aggregated real-time view per
// meter. The ingest consumer owns the write path; the settlement engine,
// estimator and sampling loop only read.
type Store struct {
	client *redis.Client
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func latestKey(meterID string) string {
	return fmt.Sprintf("meter:latest:%s", meterID)
}

func realtimeKey(meterID string) string {
	return fmt.Sprintf("meter:realtime:%s", meterID)
}

// SaveLatest caches the full reading.
func (s *Store) SaveLatest(ctx context.Context, reading models.MeterReading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, latestKey(reading.MeterID), data, latestTTL).Err()
}

// Latest returns the cached reading or nil when the meter has never reported.
func (s *Store) Latest(ctx context.Context, meterID string) (*models.MeterReading, error) {
	result, err := s.client.Get(ctx, latestKey(meterID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var reading models.MeterReading
	if err := json.Unmarshal([]byte(result), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// SaveRealtime caches the real-time power view.
func (s *Store) SaveRealtime(ctx context.Context, rt models.RealtimePower) error {
	data, err := json.Marshal(rt)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, realtimeKey(rt.MeterID), data, realtimeTTL).Err()
}

// Realtime returns the real-time view or nil when absent or expired.
func (s *Store) Realtime(ctx context.Context, meterID string) (*models.RealtimePower, error) {
	result, err := s.client.Get(ctx, realtimeKey(meterID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rt models.RealtimePower
	if err := json.Unmarshal([]byte(result), &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}
