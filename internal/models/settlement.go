package models

import (
	"encoding/json"
	"time"
)

// SettlementStatus tracks the lifecycle of a settlement attempt.
type SettlementStatus string

const (
	SettlementPending SettlementStatus = "PENDING"
	SettlementSuccess SettlementStatus = "SUCCESS"
	SettlementFailed  SettlementStatus = "FAILED"
)

// SettlementTrigger records what initiated a settlement.
type SettlementTrigger string

const (
	TriggerPeriodic SettlementTrigger = "PERIODIC"
	TriggerManual   SettlementTrigger = "MANUAL"
)

// SettlementRecord is one row per attempted settlement. Records are created
// PENDING before the ledger call and are never deleted. Once the status leaves
// PENDING the row is immutable except for the credited ETK amount correction
// on confirmation.
type SettlementRecord struct {
	ID              int64             `json:"id"`
	MeterID         string            `json:"meter_id"`
	PeriodStart     time.Time         `json:"period_start"`
	PeriodEnd       time.Time         `json:"period_end"`
	RawExportKwh    float64           `json:"raw_export_kwh"`
	RawImportKwh    float64           `json:"raw_import_kwh"`
	NetKwhFromGrid  float64           `json:"net_kwh_from_grid"`
	EtkAmount       *float64          `json:"etk_amount,omitempty"`
	Status          SettlementStatus  `json:"status"`
	Trigger         SettlementTrigger `json:"trigger"`
	EnergyBreakdown json.RawMessage   `json:"energy_breakdown,omitempty"`
	TxHash          *string           `json:"tx_hash,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
}

// SettlementUpdate carries the mutable subset of a settlement record.
// Nil fields are left untouched.
type SettlementUpdate struct {
	Status      *SettlementStatus
	TxHash      *string
	EtkAmount   *float64
	ConfirmedAt *time.Time
}

// SettlementFilter narrows settlement history queries.
type SettlementFilter struct {
	MeterID   string
	AccountID int64
	Limit     int
}
