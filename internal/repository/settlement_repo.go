package repository

import (
	"context"
	"database/sql"
	"errors"

	"gridtoken/internal/models"
)

// SettlementRepository persists settlement records.
type SettlementRepository struct {
	db *sql.DB
}

// NewSettlementRepository returns repository.
func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

const settlementColumns = `
	id, meter_id, period_start, period_end,
	raw_export_kwh, raw_import_kwh, net_kwh_from_grid, etk_amount,
	status, trigger_source, energy_breakdown, tx_hash, created_at, confirmed_at
`

// Create inserts a new settlement record and fills the assigned id and creation time.
func (r *SettlementRepository) Create(ctx context.Context, rec *models.SettlementRecord) error {
	const query = `
		INSERT INTO settlements (
			meter_id, period_start, period_end,
			raw_export_kwh, raw_import_kwh, net_kwh_from_grid, etk_amount,
			status, trigger_source, energy_breakdown, tx_hash, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		rec.MeterID,
		rec.PeriodStart,
		rec.PeriodEnd,
		rec.RawExportKwh,
		rec.RawImportKwh,
		rec.NetKwhFromGrid,
		rec.EtkAmount,
		rec.Status,
		rec.Trigger,
		[]byte(rec.EnergyBreakdown),
		rec.TxHash,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// Update applies the non-nil fields of upd to the record.
func (r *SettlementRepository) Update(ctx context.Context, id int64, upd models.SettlementUpdate) error {
	const query = `
		UPDATE settlements
		SET status       = COALESCE($2, status),
		    tx_hash      = COALESCE($3, tx_hash),
		    etk_amount   = COALESCE($4, etk_amount),
		    confirmed_at = COALESCE($5, confirmed_at)
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, upd.Status, upd.TxHash, upd.EtkAmount, upd.ConfirmedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns a record or nil when absent.
func (r *SettlementRepository) FindByID(ctx context.Context, id int64) (*models.SettlementRecord, error) {
	const query = `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByTxHash returns a record or nil when absent.
func (r *SettlementRepository) FindByTxHash(ctx context.Context, hash string) (*models.SettlementRecord, error) {
	const query = `SELECT ` + settlementColumns + ` FROM settlements WHERE tx_hash = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, hash))
}

// List returns settlement history newest first.
func (r *SettlementRepository) List(ctx context.Context, filter models.SettlementFilter) ([]models.SettlementRecord, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	const query = `
		SELECT ` + settlementColumns + `
		FROM settlements s
		WHERE ($1 = '' OR s.meter_id = $1)
		  AND ($2 = 0 OR s.meter_id IN (SELECT id FROM meters WHERE account_id = $2))
		ORDER BY s.created_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, filter.MeterID, filter.AccountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.SettlementRecord
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SettlementRepository) scanOne(row *sql.Row) (*models.SettlementRecord, error) {
	rec, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanSettlement(row rowScanner) (*models.SettlementRecord, error) {
	var (
		rec       models.SettlementRecord
		breakdown []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.MeterID,
		&rec.PeriodStart,
		&rec.PeriodEnd,
		&rec.RawExportKwh,
		&rec.RawImportKwh,
		&rec.NetKwhFromGrid,
		&rec.EtkAmount,
		&rec.Status,
		&rec.Trigger,
		&breakdown,
		&rec.TxHash,
		&rec.CreatedAt,
		&rec.ConfirmedAt,
	); err != nil {
		return nil, err
	}
	rec.EnergyBreakdown = breakdown
	return &rec, nil
}
