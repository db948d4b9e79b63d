package service

import (
	"context"
	"errors"

	"gridtoken/internal/models"
)

// Caller-distinguishable settlement outcomes.
var (
	// ErrUnknownMeter means the meter id is not registered.
	ErrUnknownMeter = errors.New("unknown meter")
	// ErrNotOwner means the requesting account does not own the meter.
	ErrNotOwner = errors.New("meter not owned by account")
	// ErrSettlementInProgress means another settlement for the meter is in flight.
	ErrSettlementInProgress = errors.New("settlement already in progress")
	// ErrNotEligible means settlement conditions are not met (no telemetry,
	// sub-threshold energy, missing wallet or failed authorization).
	ErrNotEligible = errors.New("settlement conditions not met")
)

// TelemetryReader is the read path of the telemetry store.
type TelemetryReader interface {
	Latest(ctx context.Context, meterID string) (*models.MeterReading, error)
	Realtime(ctx context.Context, meterID string) (*models.RealtimePower, error)
}

// Ledger is the settlement surface of the energy-token contract.
type Ledger interface {
	MinSettlementWh(ctx context.Context) (float64, error)
	ConversionRatio(ctx context.Context) (float64, error)
	CalculateEtkAmount(ctx context.Context, absWh int64) (float64, error)
	IsMeterAuthorized(ctx context.Context, meterAddress string) (bool, error)
	AuthorizeMeter(ctx context.Context, ownerAddress, meterID, meterAddress string) (string, error)
	SettleNetEnergy(ctx context.Context, walletAddress, meterID, accountAddress string, netWh int64, settlementKey string) (string, error)
}

// SettlementStore persists settlement records.
type SettlementStore interface {
	Create(ctx context.Context, rec *models.SettlementRecord) error
	Update(ctx context.Context, id int64, upd models.SettlementUpdate) error
	FindByID(ctx context.Context, id int64) (*models.SettlementRecord, error)
	FindByTxHash(ctx context.Context, hash string) (*models.SettlementRecord, error)
	List(ctx context.Context, filter models.SettlementFilter) ([]models.SettlementRecord, error)
}

// Directory resolves meters, owning accounts and settlement wallets.
type Directory interface {
	ListActiveMeters(ctx context.Context) ([]string, error)
	FindMeter(ctx context.Context, meterID string) (*models.Meter, error)
	FindAccount(ctx context.Context, accountID int64) (*models.Account, error)
	PrimaryWallet(ctx context.Context, accountID int64) (*models.Wallet, error)
}

// CommandSender delivers device-bound commands.
type CommandSender interface {
	SendCommand(ctx context.Context, meterID string, payload models.CommandPayload, accountID int64) error
}
