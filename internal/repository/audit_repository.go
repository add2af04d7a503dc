package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, action string, telegramID int64, detail string) error {
	const query = `INSERT INTO admin_audit (action, telegram_id, detail) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, action, telegramID, detail); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// InsertTx writes the audit row inside the caller's transaction so it
// commits or aborts with the credit it records.
func (r *AuditRepository) InsertTx(ctx context.Context, tx *sql.Tx, action string, telegramID int64, detail string) error {
	const query = `INSERT INTO admin_audit (action, telegram_id, detail) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, action, telegramID, detail); err != nil {
		return fmt.Errorf("insert audit tx: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	const query = `
SELECT id, action, COALESCE(telegram_id, 0), COALESCE(detail, ''), created_at
FROM admin_audit ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.TelegramID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
