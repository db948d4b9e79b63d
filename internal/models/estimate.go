package models

// FlowStatus classifies the meter's current power flow direction.
type FlowStatus string

const (
	FlowExporting FlowStatus = "EXPORTING"
	FlowImporting FlowStatus = "IMPORTING"
	FlowIdle      FlowStatus = "IDLE"
)

// SettlementEstimate is a live, non-persisted projection of how far a meter
// is into its current settlement window.
type SettlementEstimate struct {
	MeterID                   string     `json:"meter_id"`
	Status                    FlowStatus `json:"status"`
	CurrentPowerKw            float64    `json:"current_power_kw"`
	AveragePowerKw            float64    `json:"average_power_kw"`
	ActualNetEnergyWh         float64    `json:"actual_net_energy_wh"`
	EstimatedFinalNetEnergyWh float64    `json:"estimated_final_net_energy_wh"`
	CurrentRunningEtk         float64    `json:"current_running_etk"`
	EstimatedEtkAtSettlement  float64    `json:"estimated_etk_at_settlement"`
	ElapsedSeconds            int        `json:"elapsed_seconds"`
	RemainingSeconds          int        `json:"remaining_seconds"`
	ProgressPercent           float64    `json:"progress_percent"`
	TimeRemaining             string     `json:"time_remaining"`
	PeriodStart               string     `json:"period_start"`
	PeriodEnd                 string     `json:"period_end"`
}
