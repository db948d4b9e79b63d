package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"gridtoken/internal/models"
)

// Power inside this band counts as idle, preventing status flapping near
// zero flow.
const idleBandKw = 0.05

// Estimator computes live settlement projections. It never mutates
// settlement state and returns a nil estimate for data-quality gaps.
type Estimator struct {
	telemetry TelemetryReader
	ledger    Ledger
	sampler   *PowerSampler
	interval  time.Duration
	logger    *zap.Logger

	now func() time.Time
}

// NewEstimator builds the estimator; interval <= 0 falls back to 5 minutes.
func NewEstimator(telemetry TelemetryReader, ledger Ledger, sampler *PowerSampler, interval time.Duration, logger *zap.Logger) *Estimator {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Estimator{
		telemetry: telemetry,
		ledger:    ledger,
		sampler:   sampler,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Estimate projects the meter's position in its current settlement window.
// A nil estimate with nil error means "estimate unavailable".
func (e *Estimator) Estimate(ctx context.Context, meterID string) (*models.SettlementEstimate, error) {
	rt, err := e.telemetry.Realtime(ctx, meterID)
	if err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, nil
	}
	if !isFinite(rt.ExportKwh) || !isFinite(rt.ImportKwh) || !isFinite(rt.NetFlowKw) {
		e.logger.Warn("estimate: non-finite realtime values", zap.String("meter_id", meterID))
		return nil, nil
	}

	actualNetWh := (rt.ExportKwh - rt.ImportKwh) * 1000

	now := e.now().UTC()
	start, end := windowBounds(now, e.interval)
	elapsed := now.Sub(start)
	remaining := end.Sub(now)

	averageKw := e.sampler.Average(meterID)

	currentEtk, err := e.ledger.CalculateEtkAmount(ctx, absWh(int64(math.Floor(actualNetWh))))
	if err != nil {
		return nil, err
	}

	var additionalWh float64
	if averageKw != 0 && remaining > 0 {
		additionalWh = averageKw * remaining.Hours() * 1000
	}
	finalNetWh := actualNetWh + additionalWh

	finalEtk, err := e.ledger.CalculateEtkAmount(ctx, absWh(int64(math.Floor(finalNetWh))))
	if err != nil {
		return nil, err
	}

	status := models.FlowIdle
	switch {
	case rt.NetFlowKw > idleBandKw:
		status = models.FlowExporting
	case rt.NetFlowKw < -idleBandKw:
		status = models.FlowImporting
	}

	return &models.SettlementEstimate{
		MeterID:                   meterID,
		Status:                    status,
		CurrentPowerKw:            round2(rt.NetFlowKw),
		AveragePowerKw:            round2(averageKw),
		ActualNetEnergyWh:         round1(actualNetWh),
		EstimatedFinalNetEnergyWh: round1(finalNetWh),
		CurrentRunningEtk:         round3(currentEtk),
		EstimatedEtkAtSettlement:  round3(finalEtk),
		ElapsedSeconds:            int(elapsed.Seconds()),
		RemainingSeconds:          int(remaining.Seconds()),
		ProgressPercent:           round1(elapsed.Seconds() / e.interval.Seconds() * 100),
		TimeRemaining:             formatMMSS(remaining),
		PeriodStart:               start.Format("15:04"),
		PeriodEnd:                 end.Format("15:04"),
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatMMSS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
