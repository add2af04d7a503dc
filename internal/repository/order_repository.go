package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, ref, telegram_id, addr, amount, plan_code, status, COALESCE(tx_id, ''), created_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(&o.ID, &o.Ref, &o.TelegramID, &o.Addr, &o.Amount, &o.PlanCode, &o.Status, &o.TxID, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	const query = `
INSERT INTO orders (ref, telegram_id, addr, amount, plan_code, status)
VALUES (?, ?, ?, ?, ?, 'pending')`
	res, err := r.db.ExecContext(ctx, query, order.Ref, order.TelegramID, order.Addr, order.Amount, order.PlanCode)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("order last insert id: %w", err)
	}
	order.ID = id
	order.Status = models.OrderPending
	return nil
}

// ListPendingByAddr returns pending orders at the address created after the
// lookback cutoff. preferRecent controls the tie-break direction the matcher
// applies when several orders qualify.
func (r *OrderRepository) ListPendingByAddr(ctx context.Context, addr string, since time.Time, preferRecent bool) ([]models.Order, error) {
	direction := "ASC"
	if preferRecent {
		direction = "DESC"
	}
	query := `
SELECT ` + orderColumns + ` FROM orders
WHERE addr = ? AND status = 'pending' AND created_at >= ?
ORDER BY created_at ` + direction
	rows, err := r.db.QueryContext(ctx, query, addr, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// LatestForUser returns the most recent order for the user, any status.
func (r *OrderRepository) LatestForUser(ctx context.Context, telegramID int64) (*models.Order, error) {
	query := `
SELECT ` + orderColumns + ` FROM orders
WHERE telegram_id = ? ORDER BY created_at DESC LIMIT 1`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest order: %w", err)
	}
	return order, nil
}

// PendingAmountsByAddr returns amounts of pending orders at the address.
// Used to keep suffixed amounts unique among concurrent orders.
func (r *OrderRepository) PendingAmountsByAddr(ctx context.Context, addr string, since time.Time) ([]string, error) {
	const query = `SELECT amount FROM orders WHERE addr = ? AND status = 'pending' AND created_at >= ?`
	rows, err := r.db.QueryContext(ctx, query, addr, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("pending amounts: %w", err)
	}
	defer rows.Close()

	var amounts []string
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("scan pending amount: %w", err)
		}
		amounts = append(amounts, amount)
	}
	return amounts, rows.Err()
}

// MarkSuccess stamps the one-way pending → success transition inside tx.
// Returns false when the order was no longer pending.
func (r *OrderRepository) MarkSuccess(ctx context.Context, tx *sql.Tx, orderID int64, txID string) (bool, error) {
	const query = `
UPDATE orders SET status = 'success', tx_id = ?
WHERE id = ? AND status = 'pending'`
	res, err := tx.ExecContext(ctx, query, txID, orderID)
	if err != nil {
		return false, fmt.Errorf("mark order success: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("order success rows affected: %w", err)
	}
	return affected > 0, nil
}
