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

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) DB() *sql.DB {
	return r.db
}

const userColumns = `telegram_id, COALESCE(username, ''), paid_until, total_received, COALESCE(last_plan, ''), COALESCE(wallet_addr, ''), inviter_id, invite_count, invite_reward_days, language, expired_handled_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var paidUntil, expiredHandled sql.NullTime
	var inviter sql.NullInt64
	if err := row.Scan(&u.TelegramID, &u.Username, &paidUntil, &u.TotalReceived, &u.LastPlan, &u.WalletAddr, &inviter, &u.InviteCount, &u.InviteRewardDays, &u.Language, &expiredHandled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if paidUntil.Valid {
		t := paidUntil.Time.UTC()
		u.PaidUntil = &t
	}
	if expiredHandled.Valid {
		t := expiredHandled.Time.UTC()
		u.ExpiredHandledAt = &t
	}
	if inviter.Valid {
		u.InviterID = &inviter.Int64
	}
	return &u, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// FindForUpdate reads the user row under a row lock inside tx. The lock is
// what serializes concurrent credits to the same user.
func (r *UserRepository) FindForUpdate(ctx context.Context, tx *sql.Tx, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ? FOR UPDATE`
	user, err := scanUser(tx.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user for update: %w", err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `
INSERT INTO users (telegram_id, username, inviter_id, language)
VALUES (?, NULLIF(?, ''), ?, ?)`
	var inviter any
	if user.InviterID != nil {
		inviter = *user.InviterID
	}
	if _, err := r.db.ExecContext(ctx, query, user.TelegramID, user.Username, inviter, user.Language); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Ensure creates the user lazily on first contact. The inviter pointer is
// captured only at creation time and never for self-referrals.
func (r *UserRepository) Ensure(ctx context.Context, telegramID int64, username string, inviterID *int64, lang string) (*models.User, bool, error) {
	user, err := r.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}
	if inviterID != nil && *inviterID == telegramID {
		inviterID = nil
	}
	newUser := &models.User{
		TelegramID: telegramID,
		Username:   username,
		InviterID:  inviterID,
		Language:   lang,
	}
	if err := r.Create(ctx, newUser); err != nil {
		return nil, false, err
	}
	if inviterID != nil {
		if err := r.IncrementInviteCount(ctx, *inviterID); err != nil {
			return nil, false, err
		}
	}
	created, err := r.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *UserRepository) IncrementInviteCount(ctx context.Context, telegramID int64) error {
	const query = `UPDATE users SET invite_count = invite_count + 1 WHERE telegram_id = ?`
	if _, err := r.db.ExecContext(ctx, query, telegramID); err != nil {
		return fmt.Errorf("increment invite count: %w", err)
	}
	return nil
}

func (r *UserRepository) SetWalletAddr(ctx context.Context, telegramID int64, addr string) error {
	const query = `UPDATE users SET wallet_addr = NULLIF(?, '') WHERE telegram_id = ?`
	if _, err := r.db.ExecContext(ctx, query, addr, telegramID); err != nil {
		return fmt.Errorf("set wallet addr: %w", err)
	}
	return nil
}

func (r *UserRepository) SetLanguage(ctx context.Context, telegramID int64, lang string) error {
	const query = `UPDATE users SET language = ? WHERE telegram_id = ?`
	if _, err := r.db.ExecContext(ctx, query, lang, telegramID); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

// ApplyCredit advances the membership clock inside tx. It also clears the
// expiry mark and reminder marks so a renewing user is eligible for future
// expiry handling and reminders again.
func (r *UserRepository) ApplyCredit(ctx context.Context, tx *sql.Tx, telegramID int64, paidUntil time.Time, price decimal.Decimal, planCode string) error {
	const query = `
UPDATE users
SET paid_until = ?, total_received = total_received + ?, last_plan = ?, expired_handled_at = NULL
WHERE telegram_id = ?`
	if _, err := tx.ExecContext(ctx, query, paidUntil.UTC(), price, planCode, telegramID); err != nil {
		return fmt.Errorf("apply credit: %w", err)
	}
	const clearReminders = `DELETE FROM user_reminders WHERE telegram_id = ?`
	if _, err := tx.ExecContext(ctx, clearReminders, telegramID); err != nil {
		return fmt.Errorf("clear reminders: %w", err)
	}
	return nil
}

// AddRewardDays extends the inviter's clock and bumps the reward counter
// inside tx, using the same monotonic rule as a paid credit.
func (r *UserRepository) AddRewardDays(ctx context.Context, tx *sql.Tx, telegramID int64, paidUntil time.Time, days int) error {
	const query = `
UPDATE users
SET paid_until = ?, invite_reward_days = invite_reward_days + ?, expired_handled_at = NULL
WHERE telegram_id = ?`
	if _, err := tx.ExecContext(ctx, query, paidUntil.UTC(), days, telegramID); err != nil {
		return fmt.Errorf("add reward days: %w", err)
	}
	const clearReminders = `DELETE FROM user_reminders WHERE telegram_id = ?`
	if _, err := tx.ExecContext(ctx, clearReminders, telegramID); err != nil {
		return fmt.Errorf("clear reminders: %w", err)
	}
	return nil
}

// ListExpired returns users whose membership has lapsed and who have not
// been swept out of the channel yet.
func (r *UserRepository) ListExpired(ctx context.Context, now time.Time) ([]models.User, error) {
	query := `
SELECT ` + userColumns + ` FROM users
WHERE paid_until IS NOT NULL AND paid_until <= ? AND expired_handled_at IS NULL`
	return r.queryUsers(ctx, query, now.UTC())
}

// MarkExpiredHandled stamps the at-most-once expiry mark. Returns false when
// another sweep already handled the user.
func (r *UserRepository) MarkExpiredHandled(ctx context.Context, telegramID int64, now time.Time) (bool, error) {
	const query = `
UPDATE users SET expired_handled_at = ?
WHERE telegram_id = ? AND expired_handled_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, now.UTC(), telegramID)
	if err != nil {
		return false, fmt.Errorf("mark expired handled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("expired handled rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListExpiring returns users whose paid_until falls inside (now, now+lead]
// and who have not received the reminder for this lead time.
func (r *UserRepository) ListExpiring(ctx context.Context, now time.Time, leadDays int) ([]models.User, error) {
	query := `
SELECT ` + userColumnsPrefixed("u") + `
FROM users u
LEFT JOIN user_reminders ur ON ur.telegram_id = u.telegram_id AND ur.lead_days = ?
WHERE u.paid_until > ? AND u.paid_until <= ? AND ur.telegram_id IS NULL`
	deadline := now.Add(time.Duration(leadDays) * 24 * time.Hour)
	return r.queryUsers(ctx, query, leadDays, now.UTC(), deadline.UTC())
}

// MarkReminded records the per-threshold reminder mark. Returns false when
// the mark already exists.
func (r *UserRepository) MarkReminded(ctx context.Context, telegramID int64, leadDays int) (bool, error) {
	const query = `INSERT IGNORE INTO user_reminders (telegram_id, lead_days) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, query, telegramID, leadDays)
	if err != nil {
		return false, fmt.Errorf("mark reminded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reminded rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func userColumnsPrefixed(alias string) string {
	return alias + `.telegram_id, COALESCE(` + alias + `.username, ''), ` + alias + `.paid_until, ` + alias + `.total_received, COALESCE(` + alias + `.last_plan, ''), COALESCE(` + alias + `.wallet_addr, ''), ` + alias + `.inviter_id, ` + alias + `.invite_count, ` + alias + `.invite_reward_days, ` + alias + `.language, ` + alias + `.expired_handled_at, ` + alias + `.created_at, ` + alias + `.updated_at`
}
