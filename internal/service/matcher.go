package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/repository"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/tron"
)

// ChainSource enumerates incoming transfers for a watched address.
type ChainSource interface {
	ListIncoming(ctx context.Context, addr string, retries int) ([]tron.Transfer, error)
}

const chainRetries = 2

// Matcher drives one reconciliation pass per address: poll the chain,
// ingest new transfers, and credit each confirmed transfer against the
// unique pending order whose amount matches within tolerance.
type Matcher struct {
	cfg       config.Config
	chain     ChainSource
	users     *repository.UserRepository
	orders    *repository.OrderRepository
	transfers *repository.TransferRepository
	addresses *repository.AddressRepository
	audit     *repository.AuditRepository
	referrals *ReferralService
	messenger Messenger
	log       *slog.Logger
	now       func() time.Time
}

func NewMatcher(cfg config.Config, chain ChainSource, users *repository.UserRepository, orders *repository.OrderRepository, transfers *repository.TransferRepository, addresses *repository.AddressRepository, audit *repository.AuditRepository, referrals *ReferralService, messenger Messenger, log *slog.Logger) *Matcher {
	return &Matcher{
		cfg:       cfg,
		chain:     chain,
		users:     users,
		orders:    orders,
		transfers: transfers,
		addresses: addresses,
		audit:     audit,
		referrals: referrals,
		messenger: messenger,
		log:       log,
		now:       time.Now,
	}
}

// Reconcile runs one tick for a single address. A chain failure degrades to
// matching against already stored transfers; it never mutates existing rows.
func (m *Matcher) Reconcile(ctx context.Context, addr string) error {
	incoming, err := m.chain.ListIncoming(ctx, addr, chainRetries)
	if err != nil {
		m.log.Error("chain poll failed", "addr", addr, "err", err)
	}

	for _, in := range incoming {
		blockTime := in.BlockTime
		inserted, err := m.transfers.InsertIfNew(ctx, &models.Transfer{
			TxID:      in.TxID,
			Addr:      in.To,
			FromAddr:  in.From,
			Amount:    in.Amount,
			BlockTime: &blockTime,
		})
		if err != nil {
			return fmt.Errorf("ingest transfer %s: %w", in.TxID, err)
		}
		if inserted {
			m.log.Info("transfer observed", "tx_id", in.TxID, "addr", addr, "amount", in.Amount.String())
		}
	}

	now := m.now().UTC()
	cutoff := now.Add(-m.cfg.MinTxAge)
	candidates, err := m.transfers.ListMatchable(ctx, addr, cutoff)
	if err != nil {
		return fmt.Errorf("list matchable: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	var poolEntry *models.AddressPoolEntry
	if m.cfg.PaymentMode == config.ModeAddressPool {
		poolEntry, err = m.addresses.Get(ctx, addr)
		if err != nil {
			return fmt.Errorf("load pool entry: %w", err)
		}
	}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.matchOne(ctx, &candidates[i], poolEntry, now); err != nil {
			m.log.Error("match transfer failed", "tx_id", candidates[i].TxID, "err", err)
		}
	}
	return nil
}

func (m *Matcher) matchOne(ctx context.Context, t *models.Transfer, poolEntry *models.AddressPoolEntry, now time.Time) error {
	// In pool mode deposits that predate the address assignment belong to
	// nobody; park them instead of crediting the current assignee.
	if poolEntry != nil && poolEntry.AssignedAt != nil && t.EffectiveTime().Before(*poolEntry.AssignedAt) {
		return m.transfers.MarkUnmatched(ctx, t.TxID)
	}

	since := now.Add(-m.cfg.MatchLookback)
	pending, err := m.orders.ListPendingByAddr(ctx, t.Addr, since, m.cfg.MatchPreferRecent)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	order := PickOrder(pending, t.Amount, m.cfg.AmountEps)
	if order == nil {
		return m.transfers.MarkUnmatched(ctx, t.TxID)
	}

	user, err := m.users.FindByTelegramID(ctx, order.TelegramID)
	if err != nil {
		return fmt.Errorf("find order user: %w", err)
	}
	plan := m.cfg.PlanByCode(order.PlanCode)
	if user == nil || plan == nil {
		if err := m.transfers.MarkUnmatched(ctx, t.TxID); err != nil {
			return err
		}
		m.alert(ctx, fmt.Sprintf("transfer %s matched order %s but user=%d plan=%q no longer exists", t.TxID, order.Ref, order.TelegramID, order.PlanCode))
		return nil
	}

	credited, newPaidUntil, firstPayment, err := m.credit(ctx, order, t, plan, now)
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	if !credited {
		return nil
	}

	m.log.Info("credit applied",
		"tx_id", t.TxID,
		"order_ref", order.Ref,
		"telegram_id", user.TelegramID,
		"plan", plan.Code,
		"paid_until", newPaidUntil,
	)

	// Side effects never roll back the committed credit.
	if err := m.messenger.SendInvite(ctx, user, newPaidUntil); err != nil {
		m.log.Error("send invite failed", "telegram_id", user.TelegramID, "err", err)
		m.alert(ctx, fmt.Sprintf("invite delivery failed for user %d after tx %s: %v", user.TelegramID, t.TxID, err))
	}
	if firstPayment {
		if err := m.referrals.RewardFirstPayment(ctx, user, plan.Code); err != nil {
			m.log.Error("referral reward failed", "telegram_id", user.TelegramID, "err", err)
		}
	}
	return nil
}

// credit commits the user clock, order success, transfer processed and the
// audit row as one transaction. A false result means another matcher got
// there first; nothing was written.
func (m *Matcher) credit(ctx context.Context, order *models.Order, t *models.Transfer, plan *config.Plan, now time.Time) (bool, time.Time, bool, error) {
	tx, err := m.users.DB().BeginTx(ctx, nil)
	if err != nil {
		return false, time.Time{}, false, fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := m.users.FindForUpdate(ctx, tx, order.TelegramID)
	if err != nil {
		return false, time.Time{}, false, err
	}
	if locked == nil {
		return false, time.Time{}, false, fmt.Errorf("user %d vanished mid-credit", order.TelegramID)
	}

	firstPayment := locked.TotalReceived.IsZero()
	newPaidUntil := NextPaidUntil(now, locked.PaidUntil, plan.Days)

	if err := m.users.ApplyCredit(ctx, tx, locked.TelegramID, newPaidUntil, plan.Price, plan.Code); err != nil {
		return false, time.Time{}, false, err
	}
	ok, err := m.orders.MarkSuccess(ctx, tx, order.ID, t.TxID)
	if err != nil {
		return false, time.Time{}, false, err
	}
	if !ok {
		return false, time.Time{}, false, nil
	}
	ok, err = m.transfers.MarkProcessed(ctx, tx, t.TxID, plan.Code, plan.Price, locked.TelegramID, now)
	if err != nil {
		return false, time.Time{}, false, err
	}
	if !ok {
		return false, time.Time{}, false, nil
	}
	detail := fmt.Sprintf("tx=%s order=%s plan=%s amount=%s paid_until=%s", t.TxID, order.Ref, plan.Code, t.Amount.String(), newPaidUntil.Format(time.RFC3339))
	if err := m.audit.InsertTx(ctx, tx, "payment/credit", locked.TelegramID, detail); err != nil {
		return false, time.Time{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return false, time.Time{}, false, fmt.Errorf("commit credit tx: %w", err)
	}
	return true, newPaidUntil, firstPayment, nil
}

func (m *Matcher) alert(ctx context.Context, text string) {
	if err := m.messenger.AlertAdmins(ctx, text); err != nil {
		m.log.Error("admin alert failed", "err", err)
	}
}

// PickOrder returns the first order in the given tie-break order whose
// amount is within eps of the transfer amount, or nil.
func PickOrder(orders []models.Order, amount, eps decimal.Decimal) *models.Order {
	for i := range orders {
		if orders[i].Amount.Sub(amount).Abs().LessThanOrEqual(eps) {
			return &orders[i]
		}
	}
	return nil
}

// NextPaidUntil implements the membership clock: extension always starts
// from the later of now and the stored paid_until, so time already bought
// is never lost.
func NextPaidUntil(now time.Time, prev *time.Time, days int) time.Time {
	base := now
	if prev != nil && prev.After(now) {
		base = *prev
	}
	return base.UTC().AddDate(0, 0, days)
}
