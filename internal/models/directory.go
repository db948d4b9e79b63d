package models

import "time"

// Meter is a registered smart meter device.
type Meter struct {
	ID           string    `json:"id"`
	AccountID    int64     `json:"account_id"`
	ChainAddress string    `json:"chain_address"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Account owns meters and wallets on the platform.
type Account struct {
	ID           int64  `json:"id"`
	ChainAddress string `json:"chain_address"`
}

// Wallet holds ETK balances for an account. Each account has exactly one
// primary wallet used for settlements.
type Wallet struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	Address   string `json:"address"`
	Primary   bool   `json:"primary"`
}
