package repository

import (
	"context"
	"database/sql"
	"errors"

	"gridtoken/internal/models"
)

// DirectoryRepository resolves meters, owning accounts and settlement wallets.
type DirectoryRepository struct {
	db *sql.DB
}

// NewDirectoryRepository returns repository.
func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// ListActiveMeters returns ids of all meters eligible for settlement sweeps.
func (r *DirectoryRepository) ListActiveMeters(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM meters WHERE active ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// FindMeter returns the meter or nil when unknown.
func (r *DirectoryRepository) FindMeter(ctx context.Context, meterID string) (*models.Meter, error) {
	const query = `
		SELECT id, account_id, chain_address, active, registered_at
		FROM meters
		WHERE id = $1
	`
	var m models.Meter
	err := r.db.QueryRowContext(ctx, query, meterID).Scan(
		&m.ID,
		&m.AccountID,
		&m.ChainAddress,
		&m.Active,
		&m.RegisteredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAccount returns the account or nil when unknown.
func (r *DirectoryRepository) FindAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	const query = `SELECT id, chain_address FROM accounts WHERE id = $1`
	var a models.Account
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&a.ID, &a.ChainAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// PrimaryWallet returns the account's settlement wallet or nil when missing.
func (r *DirectoryRepository) PrimaryWallet(ctx context.Context, accountID int64) (*models.Wallet, error) {
	const query = `
		SELECT id, account_id, address, is_primary
		FROM wallets
		WHERE account_id = $1 AND is_primary
		LIMIT 1
	`
	var w models.Wallet
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&w.ID, &w.AccountID, &w.Address, &w.Primary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
