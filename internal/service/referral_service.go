package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/repository"
)

// ReferralService credits bonus days to the inviter when one of their
// invitees pays for the first time. The caller establishes the
// first-payment condition from the pre-credit total inside the credit
// transaction; this service only applies the reward.
type ReferralService struct {
	cfg       config.Config
	users     *repository.UserRepository
	audit     *repository.AuditRepository
	messenger Messenger
	log       *slog.Logger
	now       func() time.Time
}

func NewReferralService(cfg config.Config, users *repository.UserRepository, audit *repository.AuditRepository, messenger Messenger, log *slog.Logger) *ReferralService {
	return &ReferralService{
		cfg:       cfg,
		users:     users,
		audit:     audit,
		messenger: messenger,
		log:       log,
		now:       time.Now,
	}
}

// RewardFirstPayment grants INVITE_REWARD[planCode] days to the payer's
// inviter. Missing inviter, unknown inviter row or a zero reward is a no-op.
func (s *ReferralService) RewardFirstPayment(ctx context.Context, payer *models.User, planCode string) error {
	if payer.InviterID == nil {
		return nil
	}
	days := s.cfg.InviteRewardDays[planCode]
	if days <= 0 {
		return nil
	}

	tx, err := s.users.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reward tx: %w", err)
	}
	defer tx.Rollback()

	inviter, err := s.users.FindForUpdate(ctx, tx, *payer.InviterID)
	if err != nil {
		return err
	}
	if inviter == nil {
		return nil
	}

	now := s.now().UTC()
	newPaidUntil := NextPaidUntil(now, inviter.PaidUntil, days)
	if err := s.users.AddRewardDays(ctx, tx, inviter.TelegramID, newPaidUntil, days); err != nil {
		return err
	}
	detail := fmt.Sprintf("invitee=%d plan=%s days=%d paid_until=%s", payer.TelegramID, planCode, days, newPaidUntil.Format(time.RFC3339))
	if err := s.audit.InsertTx(ctx, tx, "invite/reward", inviter.TelegramID, detail); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reward tx: %w", err)
	}

	s.log.Info("referral reward applied", "inviter", inviter.TelegramID, "invitee", payer.TelegramID, "days", days)

	if err := s.messenger.NotifyInviterReward(ctx, inviter, days); err != nil {
		s.log.Error("notify inviter failed", "inviter", inviter.TelegramID, "err", err)
	}
	return nil
}
