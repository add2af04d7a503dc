package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
)

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

const transferColumns = `tx_id, addr, from_addr, amount, status, COALESCE(plan_code, ''), COALESCE(credited_amount, 0), telegram_id, block_time, processed_at, created_at`

func scanTransfer(row interface{ Scan(...any) error }) (*models.Transfer, error) {
	var t models.Transfer
	var telegramID sql.NullInt64
	var blockTime, processedAt sql.NullTime
	if err := row.Scan(&t.TxID, &t.Addr, &t.FromAddr, &t.Amount, &t.Status, &t.PlanCode, &t.CreditedAmount, &telegramID, &blockTime, &processedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	if telegramID.Valid {
		t.TelegramID = &telegramID.Int64
	}
	if blockTime.Valid {
		bt := blockTime.Time.UTC()
		t.BlockTime = &bt
	}
	if processedAt.Valid {
		pt := processedAt.Time.UTC()
		t.ProcessedAt = &pt
	}
	return &t, nil
}

// InsertIfNew stores an observed transfer with status seen. The tx_id
// primary key makes re-observation a no-op; returns false for duplicates.
func (r *TransferRepository) InsertIfNew(ctx context.Context, t *models.Transfer) (bool, error) {
	const query = `
INSERT IGNORE INTO usdt_txs (tx_id, addr, from_addr, amount, status, block_time)
VALUES (?, ?, ?, ?, 'seen', ?)`
	var blockTime any
	if t.BlockTime != nil {
		blockTime = t.BlockTime.UTC()
	}
	res, err := r.db.ExecContext(ctx, query, t.TxID, t.Addr, t.FromAddr, t.Amount, blockTime)
	if err != nil {
		return false, fmt.Errorf("insert transfer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transfer rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TransferRepository) FindByTxID(ctx context.Context, txID string) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM usdt_txs WHERE tx_id = ?`
	t, err := scanTransfer(r.db.QueryRowContext(ctx, query, txID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find transfer: %w", err)
	}
	return t, nil
}

// ListMatchable returns transfers at the address still awaiting a match
// whose effective time is at or before the confirmation cutoff.
func (r *TransferRepository) ListMatchable(ctx context.Context, addr string, cutoff time.Time) ([]models.Transfer, error) {
	query := `
SELECT ` + transferColumns + ` FROM usdt_txs
WHERE addr = ? AND status IN ('seen', 'unmatched') AND COALESCE(block_time, created_at) <= ?
ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, addr, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("list matchable transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// ListUnmatched returns transfers awaiting operator attention, newest first.
func (r *TransferRepository) ListUnmatched(ctx context.Context, limit int) ([]models.Transfer, error) {
	query := `
SELECT ` + transferColumns + ` FROM usdt_txs
WHERE status = 'unmatched' ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unmatched transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unmatched row: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// MarkUnmatched parks a transfer for later re-evaluation. Processed
// transfers are never demoted.
func (r *TransferRepository) MarkUnmatched(ctx context.Context, txID string) error {
	const query = `
UPDATE usdt_txs SET status = 'unmatched'
WHERE tx_id = ? AND status IN ('seen', 'unmatched')`
	if _, err := r.db.ExecContext(ctx, query, txID); err != nil {
		return fmt.Errorf("mark transfer unmatched: %w", err)
	}
	return nil
}

// MarkProcessed stamps the terminal credited state inside tx. Returns false
// when the transfer was already processed, which aborts the credit.
func (r *TransferRepository) MarkProcessed(ctx context.Context, tx *sql.Tx, txID, planCode string, credited decimal.Decimal, telegramID int64, processedAt time.Time) (bool, error) {
	const query = `
UPDATE usdt_txs
SET status = 'processed', plan_code = ?, credited_amount = ?, telegram_id = ?, processed_at = ?
WHERE tx_id = ? AND status IN ('seen', 'unmatched')`
	res, err := tx.ExecContext(ctx, query, planCode, credited, telegramID, processedAt.UTC(), txID)
	if err != nil {
		return false, fmt.Errorf("mark transfer processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transfer processed rows affected: %w", err)
	}
	return affected > 0, nil
}

// LastProcessedAt returns the newest credit instant, or nil when no transfer
// has ever been credited.
func (r *TransferRepository) LastProcessedAt(ctx context.Context) (*time.Time, error) {
	const query = `SELECT MAX(processed_at) FROM usdt_txs WHERE status = 'processed'`
	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query).Scan(&last); err != nil {
		return nil, fmt.Errorf("last processed at: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time.UTC()
	return &t, nil
}
