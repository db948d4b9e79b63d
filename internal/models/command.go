package models

import "time"

// EnergyCommand targets the meter's energy accumulators.
type EnergyCommand struct {
	ResetSettlement string `json:"reset_settlement,omitempty"`
}

// CommandPayload is the device-bound command body.
type CommandPayload struct {
	Energy *EnergyCommand `json:"energy,omitempty"`
}

// ResetSettlementPayload clears the meter's settlement accumulators.
func ResetSettlementPayload() CommandPayload {
	return CommandPayload{Energy: &EnergyCommand{ResetSettlement: "all"}}
}

// DeviceCommand is the envelope published to the command topic.
type DeviceCommand struct {
	CommandID string         `json:"command_id"`
	MeterID   string         `json:"meter_id"`
	AccountID int64          `json:"account_id"`
	Payload   CommandPayload `json:"payload"`
	IssuedAt  time.Time      `json:"issued_at"`
}
