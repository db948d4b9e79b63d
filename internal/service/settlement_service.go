package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"gridtoken/internal/models"
)

// SettlementService decides when a meter's accumulated net energy is settled
// against the ledger and records the settlement lifecycle. At most one
// settlement per meter is in flight at any time; different meters settle
// independently.
type SettlementService struct {
	telemetry TelemetryReader
	ledger    Ledger
	repo      SettlementStore
	directory Directory
	commands  CommandSender
	sampler   *PowerSampler
	interval  time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	inWork map[string]*sync.Mutex

	now func() time.Time
}

// NewSettlementService builds the engine. interval is the settlement window
// length; <= 0 falls back to 5 minutes.
func NewSettlementService(
	telemetry TelemetryReader,
	ledger Ledger,
	repo SettlementStore,
	directory Directory,
	commands CommandSender,
	sampler *PowerSampler,
	interval time.Duration,
	logger *zap.Logger,
) *SettlementService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SettlementService{
		telemetry: telemetry,
		ledger:    ledger,
		repo:      repo,
		directory: directory,
		commands:  commands,
		sampler:   sampler,
		interval:  interval,
		logger:    logger,
		inWork:    make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

func (s *SettlementService) meterLock(meterID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.inWork[meterID]
	if !ok {
		lock = &sync.Mutex{}
		s.inWork[meterID] = lock
	}
	return lock
}

// RunSweepLoop runs scheduled sweeps until the context is cancelled.
func (s *SettlementService) RunSweepLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunScheduledSweep(ctx)
		}
	}
}

// RunScheduledSweep evaluates every active meter once. One meter's failure
// never aborts the batch.
func (s *SettlementService) RunScheduledSweep(ctx context.Context) {
	meters, err := s.directory.ListActiveMeters(ctx)
	if err != nil {
		s.logger.Error("sweep: listing meters failed", zap.Error(err))
		return
	}
	for _, meterID := range meters {
		hash, err := s.SettleMeter(ctx, meterID, models.TriggerPeriodic)
		switch {
		case errors.Is(err, ErrSettlementInProgress):
			s.logger.Debug("sweep: meter busy, skipped", zap.String("meter_id", meterID))
		case err != nil:
			s.logger.Error("sweep: settlement failed",
				zap.String("meter_id", meterID),
				zap.Error(err),
			)
		case hash != "":
			s.logger.Info("sweep: meter settled",
				zap.String("meter_id", meterID),
				zap.String("tx_hash", hash),
			)
		}
	}
}

// TriggerManualSettlement settles an owned meter on demand. Callers can
// distinguish ErrUnknownMeter, ErrNotOwner, ErrSettlementInProgress and
// ErrNotEligible; ledger failures propagate as-is.
func (s *SettlementService) TriggerManualSettlement(ctx context.Context, meterID string, accountID int64) (string, error) {
	meter, err := s.directory.FindMeter(ctx, meterID)
	if err != nil {
		return "", err
	}
	if meter == nil {
		return "", ErrUnknownMeter
	}
	if meter.AccountID != accountID {
		return "", ErrNotOwner
	}
	hash, err := s.SettleMeter(ctx, meterID, models.TriggerManual)
	if err != nil {
		return "", err
	}
	if hash == "" {
		return "", ErrNotEligible
	}
	return hash, nil
}

// SettleMeter runs one settlement attempt for the meter. It returns an empty
// hash with nil error when conditions are not met (no record is created in
// that case), and ErrSettlementInProgress when another attempt holds the
// meter's lock.
func (s *SettlementService) SettleMeter(ctx context.Context, meterID string, trigger models.SettlementTrigger) (string, error) {
	lock := s.meterLock(meterID)
	if !lock.TryLock() {
		return "", ErrSettlementInProgress
	}
	defer lock.Unlock()
	return s.settleLocked(ctx, meterID, trigger)
}

func (s *SettlementService) settleLocked(ctx context.Context, meterID string, trigger models.SettlementTrigger) (string, error) {
	reading, err := s.telemetry.Latest(ctx, meterID)
	if err != nil {
		return "", fmt.Errorf("settlement: read telemetry: %w", err)
	}
	if reading == nil {
		s.logger.Debug("settlement: no telemetry", zap.String("meter_id", meterID))
		return "", nil
	}

	exportWh := s.sanitizeWh(meterID, "export", reading.Export.SettlementEnergyWh)
	importWh := s.sanitizeWh(meterID, "import", reading.Import.SettlementEnergyWh)
	netWh := exportWh - importWh
	if math.IsNaN(netWh) || math.IsInf(netWh, 0) {
		s.logger.Warn("settlement: non-finite net energy", zap.String("meter_id", meterID))
		return "", nil
	}

	threshold, err := s.ledger.MinSettlementWh(ctx)
	if err != nil {
		return "", fmt.Errorf("settlement: read threshold: %w", err)
	}
	if math.Abs(netWh) < threshold {
		s.logger.Debug("settlement: below threshold",
			zap.String("meter_id", meterID),
			zap.Float64("net_wh", netWh),
			zap.Float64("threshold_wh", threshold),
		)
		return "", nil
	}

	meter, err := s.directory.FindMeter(ctx, meterID)
	if err != nil {
		return "", err
	}
	if meter == nil {
		s.logger.Warn("settlement: unknown meter", zap.String("meter_id", meterID))
		return "", nil
	}
	account, err := s.directory.FindAccount(ctx, meter.AccountID)
	if err != nil {
		return "", err
	}
	if account == nil {
		s.logger.Warn("settlement: meter has no account", zap.String("meter_id", meterID))
		return "", nil
	}
	wallet, err := s.directory.PrimaryWallet(ctx, account.ID)
	if err != nil {
		return "", err
	}
	if wallet == nil {
		s.logger.Warn("settlement: account has no primary wallet",
			zap.String("meter_id", meterID),
			zap.Int64("account_id", account.ID),
		)
		return "", nil
	}

	if !s.ensureAuthorized(ctx, meter, account) {
		return "", nil
	}

	// Floor toward negative infinity, matching the ledger's expected amounts
	// for import (negative) settlements. The stored ETK converts the same
	// magnitude the ledger will settle.
	netWhInt := int64(math.Floor(netWh))
	etk, err := s.ledger.CalculateEtkAmount(ctx, absWh(netWhInt))
	if err != nil {
		return "", fmt.Errorf("settlement: etk conversion: %w", err)
	}

	now := s.now().UTC()
	periodStart, periodEnd := windowBounds(now, s.interval)
	breakdown, err := json.Marshal(map[string]interface{}{
		"export_wh":        exportWh,
		"import_wh":        importWh,
		"net_wh":           netWh,
		"reading_captured": reading.Timestamp.UTC(),
	})
	if err != nil {
		return "", err
	}

	record := &models.SettlementRecord{
		MeterID:         meterID,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		RawExportKwh:    exportWh / 1000,
		RawImportKwh:    importWh / 1000,
		NetKwhFromGrid:  netWh / 1000,
		EtkAmount:       &etk,
		Status:          models.SettlementPending,
		Trigger:         trigger,
		EnergyBreakdown: breakdown,
	}
	// Durable intent before the irreversible ledger call.
	if err := s.repo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("settlement: persist record: %w", err)
	}

	settlementKey := fmt.Sprintf("%d-%d", record.ID, s.now().UnixMilli())

	hash, err := s.ledger.SettleNetEnergy(ctx, wallet.Address, meterID, account.ChainAddress, netWhInt, settlementKey)
	if err != nil {
		failed := models.SettlementFailed
		failedAt := s.now().UTC()
		if uerr := s.repo.Update(ctx, record.ID, models.SettlementUpdate{Status: &failed, ConfirmedAt: &failedAt}); uerr != nil {
			s.logger.Error("settlement: marking record failed",
				zap.Int64("settlement_id", record.ID),
				zap.Error(uerr),
			)
		}
		s.logger.Error("settlement: ledger call failed",
			zap.String("meter_id", meterID),
			zap.Int64("settlement_id", record.ID),
			zap.Error(err),
		)
		return "", err
	}

	// Record stays PENDING until chain finality arrives via ConfirmSettlement.
	if err := s.repo.Update(ctx, record.ID, models.SettlementUpdate{TxHash: &hash}); err != nil {
		s.logger.Error("settlement: storing tx hash",
			zap.Int64("settlement_id", record.ID),
			zap.Error(err),
		)
	}

	if err := s.commands.SendCommand(ctx, meterID, models.ResetSettlementPayload(), meter.AccountID); err != nil {
		s.logger.Warn("settlement: reset command dispatch failed",
			zap.String("meter_id", meterID),
			zap.Error(err),
		)
	}
	s.sampler.Clear(meterID)

	s.logger.Info("settlement submitted",
		zap.String("meter_id", meterID),
		zap.Int64("settlement_id", record.ID),
		zap.Float64("net_wh", netWh),
		zap.String("tx_hash", hash),
		zap.String("trigger", string(trigger)),
	)
	return hash, nil
}

// ensureAuthorized verifies the meter on the ledger, attempting one
// auto-authorization. No settlement record exists yet at this point.
func (s *SettlementService) ensureAuthorized(ctx context.Context, meter *models.Meter, account *models.Account) bool {
	authorized, err := s.ledger.IsMeterAuthorized(ctx, meter.ChainAddress)
	if err != nil {
		s.logger.Warn("settlement: authorization check failed",
			zap.String("meter_id", meter.ID),
			zap.Error(err),
		)
		return false
	}
	if authorized {
		return true
	}
	if _, err := s.ledger.AuthorizeMeter(ctx, account.ChainAddress, meter.ID, meter.ChainAddress); err != nil {
		s.logger.Warn("settlement: auto-authorization failed",
			zap.String("meter_id", meter.ID),
			zap.Error(err),
		)
		return false
	}
	s.logger.Info("settlement: meter auto-authorized", zap.String("meter_id", meter.ID))
	return true
}

// ConfirmSettlement finalizes a record once transaction finality is known.
// Idempotent: repeat calls with the same terminal outcome only refresh the
// confirmation timestamp and the ETK correction. A record that already left
// PENDING never changes status again; a conflicting outcome is logged and
// ignored. Unknown ids are logged and ignored.
func (s *SettlementService) ConfirmSettlement(ctx context.Context, settlementID int64, txHash string, success bool, etkAmount *float64) error {
	rec, err := s.repo.FindByID(ctx, settlementID)
	if err != nil {
		return err
	}
	if rec == nil {
		s.logger.Warn("confirm: unknown settlement", zap.Int64("settlement_id", settlementID))
		return nil
	}

	status := models.SettlementFailed
	if success {
		status = models.SettlementSuccess
	}
	confirmedAt := s.now().UTC()

	if rec.Status != models.SettlementPending {
		if rec.Status != status {
			s.logger.Warn("confirm: conflicting outcome for settled record ignored",
				zap.Int64("settlement_id", settlementID),
				zap.String("status", string(rec.Status)),
				zap.String("requested", string(status)),
			)
			return nil
		}
		upd := models.SettlementUpdate{ConfirmedAt: &confirmedAt}
		if etkAmount != nil {
			upd.EtkAmount = etkAmount
		}
		return s.repo.Update(ctx, settlementID, upd)
	}

	upd := models.SettlementUpdate{Status: &status, ConfirmedAt: &confirmedAt}
	if txHash != "" && rec.TxHash == nil {
		upd.TxHash = &txHash
	}
	if etkAmount != nil {
		upd.EtkAmount = etkAmount
	}
	if err := s.repo.Update(ctx, settlementID, upd); err != nil {
		return err
	}
	s.logger.Info("settlement confirmed",
		zap.Int64("settlement_id", settlementID),
		zap.String("status", string(status)),
	)
	return nil
}

// SettlementHistory returns settlement records matching the filter.
func (s *SettlementService) SettlementHistory(ctx context.Context, filter models.SettlementFilter) ([]models.SettlementRecord, error) {
	return s.repo.List(ctx, filter)
}

func (s *SettlementService) sanitizeWh(meterID, field string, value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		s.logger.Warn("settlement: non-finite telemetry value treated as zero",
			zap.String("meter_id", meterID),
			zap.String("field", field),
		)
		return 0
	}
	return value
}

func absWh(wh int64) int64 {
	if wh < 0 {
		return -wh
	}
	return wh
}

// windowBounds returns the current settlement window around now: the most
// recent interval boundary and its end.
func windowBounds(now time.Time, interval time.Duration) (time.Time, time.Time) {
	start := now.UTC().Truncate(interval)
	return start, start.Add(interval)
}
