package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
)

var ErrNoFreeAddress = errors.New("address pool exhausted")

type AddressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func scanAddress(row interface{ Scan(...any) error }) (*models.AddressPoolEntry, error) {
	var e models.AddressPoolEntry
	var assignedTo sql.NullInt64
	var assignedAt sql.NullTime
	if err := row.Scan(&e.Addr, &assignedTo, &assignedAt); err != nil {
		return nil, err
	}
	if assignedTo.Valid {
		e.AssignedTo = &assignedTo.Int64
	}
	if assignedAt.Valid {
		t := assignedAt.Time.UTC()
		e.AssignedAt = &t
	}
	return &e, nil
}

func (r *AddressRepository) Get(ctx context.Context, addr string) (*models.AddressPoolEntry, error) {
	const query = `SELECT addr, assigned_to, assigned_at FROM address_pool WHERE addr = ?`
	entry, err := scanAddress(r.db.QueryRowContext(ctx, query, addr))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	return entry, nil
}

func (r *AddressRepository) FindByUser(ctx context.Context, telegramID int64) (*models.AddressPoolEntry, error) {
	const query = `SELECT addr, assigned_to, assigned_at FROM address_pool WHERE assigned_to = ?`
	entry, err := scanAddress(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find address by user: %w", err)
	}
	return entry, nil
}

// Assign hands the user a free pool address, or returns the one already
// assigned. The row lock on the free row excludes concurrent assignment.
func (r *AddressRepository) Assign(ctx context.Context, telegramID int64, now time.Time) (*models.AddressPoolEntry, error) {
	existing, err := r.FindByUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assign tx: %w", err)
	}
	defer tx.Rollback()

	const pick = `SELECT addr, assigned_to, assigned_at FROM address_pool WHERE assigned_to IS NULL ORDER BY addr LIMIT 1 FOR UPDATE`
	entry, err := scanAddress(tx.QueryRowContext(ctx, pick))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoFreeAddress
		}
		return nil, fmt.Errorf("pick free address: %w", err)
	}

	const claim = `UPDATE address_pool SET assigned_to = ?, assigned_at = ? WHERE addr = ?`
	if _, err := tx.ExecContext(ctx, claim, telegramID, now.UTC(), entry.Addr); err != nil {
		return nil, fmt.Errorf("claim address: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assign tx: %w", err)
	}

	assignedAt := now.UTC()
	entry.AssignedTo = &telegramID
	entry.AssignedAt = &assignedAt
	return entry, nil
}

// Release returns an address to the free pool.
func (r *AddressRepository) Release(ctx context.Context, addr string) error {
	const query = `UPDATE address_pool SET assigned_to = NULL, assigned_at = NULL WHERE addr = ?`
	if _, err := r.db.ExecContext(ctx, query, addr); err != nil {
		return fmt.Errorf("release address: %w", err)
	}
	return nil
}

func (r *AddressRepository) List(ctx context.Context) ([]models.AddressPoolEntry, error) {
	const query = `SELECT addr, assigned_to, assigned_at FROM address_pool ORDER BY addr`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var entries []models.AddressPoolEntry
	for rows.Next() {
		entry, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}
