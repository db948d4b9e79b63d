package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const meterListRefresh = 30 * time.Second

// SamplingLoop feeds the power sampler from the real-time view on a fast
// tick, independent of the settlement sweep. It never touches settlement
// records.
type SamplingLoop struct {
	directory Directory
	telemetry TelemetryReader
	sampler   *PowerSampler
	tick      time.Duration
	logger    *zap.Logger

	meters    []string
	refreshed time.Time
}

// NewSamplingLoop builds the loop; tick <= 0 falls back to one second.
func NewSamplingLoop(directory Directory, telemetry TelemetryReader, sampler *PowerSampler, tick time.Duration, logger *zap.Logger) *SamplingLoop {
	if tick <= 0 {
		tick = time.Second
	}
	return &SamplingLoop{
		directory: directory,
		telemetry: telemetry,
		sampler:   sampler,
		tick:      tick,
		logger:    logger,
	}
}

// Run samples until the context is cancelled.
func (l *SamplingLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sampleOnce(ctx)
		}
	}
}

func (l *SamplingLoop) sampleOnce(ctx context.Context) {
	meters, err := l.activeMeters(ctx)
	if err != nil {
		l.logger.Warn("sampling: listing meters failed", zap.Error(err))
		return
	}
	for _, meterID := range meters {
		rt, err := l.telemetry.Realtime(ctx, meterID)
		if err != nil {
			l.logger.Debug("sampling: realtime read failed",
				zap.String("meter_id", meterID),
				zap.Error(err),
			)
			continue
		}
		if rt == nil {
			continue
		}
		l.sampler.Record(meterID, rt.NetFlowKw)
	}
}

// activeMeters caches the directory listing so the one-second tick does not
// hit the database every round.
func (l *SamplingLoop) activeMeters(ctx context.Context) ([]string, error) {
	if l.meters != nil && time.Since(l.refreshed) < meterListRefresh {
		return l.meters, nil
	}
	meters, err := l.directory.ListActiveMeters(ctx)
	if err != nil {
		if l.meters != nil {
			return l.meters, nil
		}
		return nil, err
	}
	l.meters = meters
	l.refreshed = time.Now()
	return meters, nil
}
