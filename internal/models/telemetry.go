package models

import "time"

// EnergyChannel holds accumulated energy counters for one flow direction.
// SettlementEnergyWh accumulates since the meter's last settlement reset.
type EnergyChannel struct {
	SettlementEnergyWh float64 `json:"settlement_energy_wh"`
	TotalEnergyWh      float64 `json:"total_energy_wh"`
}

// MeterReading is the latest full telemetry snapshot published by a meter.
type MeterReading struct {
	MeterID   string        `json:"meter_id"`
	Timestamp time.Time     `json:"timestamp"`
	PowerKw   float64       `json:"power_kw"`
	VoltageV  float64       `json:"voltage_v,omitempty"`
	Export    EnergyChannel `json:"export"`
	Import    EnergyChannel `json:"import"`
}

// RealtimePower is the pre-aggregated real-time view consumed by the
// estimator and the sampling loop. Positive net flow means export to grid.
type RealtimePower struct {
	MeterID   string    `json:"meter_id"`
	NetFlowKw float64   `json:"net_flow_kw"`
	ExportKwh float64   `json:"export_kwh"`
	ImportKwh float64   `json:"import_kwh"`
	Timestamp time.Time `json:"timestamp"`
}
