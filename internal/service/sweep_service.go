package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/repository"
)

// SweepService runs the expiry and reminder scans. Neither sweep touches
// paid_until, so both may run concurrently with matching.
type SweepService struct {
	cfg       config.Config
	users     *repository.UserRepository
	audit     *repository.AuditRepository
	messenger Messenger
	log       *slog.Logger
	now       func() time.Time
}

func NewSweepService(cfg config.Config, users *repository.UserRepository, audit *repository.AuditRepository, messenger Messenger, log *slog.Logger) *SweepService {
	return &SweepService{
		cfg:       cfg,
		users:     users,
		audit:     audit,
		messenger: messenger,
		log:       log,
		now:       time.Now,
	}
}

// SweepExpired removes lapsed members from the paid channel, notifies them
// and stamps expired_handled_at so a retried sweep is a no-op. Errors
// isolate to the iterated user.
func (s *SweepService) SweepExpired(ctx context.Context) error {
	now := s.now().UTC()
	expired, err := s.users.ListExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("list expired: %w", err)
	}

	for i := range expired {
		if err := ctx.Err(); err != nil {
			return err
		}
		user := &expired[i]

		if err := s.messenger.RemoveFromChannel(ctx, user.TelegramID); err != nil {
			// Stay unstamped so the next sweep retries the removal.
			s.log.Error("channel removal failed", "telegram_id", user.TelegramID, "err", err)
			continue
		}
		if err := s.messenger.SendExpiryNotice(ctx, user); err != nil {
			s.log.Error("expiry notice failed", "telegram_id", user.TelegramID, "err", err)
		}
		handled, err := s.users.MarkExpiredHandled(ctx, user.TelegramID, now)
		if err != nil {
			s.log.Error("mark expired handled failed", "telegram_id", user.TelegramID, "err", err)
			continue
		}
		if handled {
			if err := s.audit.Insert(ctx, "membership/expire", user.TelegramID, fmt.Sprintf("paid_until=%s", user.PaidUntil.Format(time.RFC3339))); err != nil {
				s.log.Error("audit expiry failed", "telegram_id", user.TelegramID, "err", err)
			}
			s.log.Info("expired member removed", "telegram_id", user.TelegramID)
		}
	}
	return nil
}

// SweepReminders sends at most one reminder per (user, lead time) per
// membership period. The mark is claimed before sending so a crash cannot
// produce duplicates.
func (s *SweepService) SweepReminders(ctx context.Context) error {
	now := s.now().UTC()
	for _, lead := range s.cfg.ReminderLeadDays {
		expiring, err := s.users.ListExpiring(ctx, now, lead)
		if err != nil {
			return fmt.Errorf("list expiring %dd: %w", lead, err)
		}
		for i := range expiring {
			if err := ctx.Err(); err != nil {
				return err
			}
			user := &expiring[i]

			claimed, err := s.users.MarkReminded(ctx, user.TelegramID, lead)
			if err != nil {
				s.log.Error("claim reminder failed", "telegram_id", user.TelegramID, "err", err)
				continue
			}
			if !claimed {
				continue
			}
			if err := s.messenger.SendReminder(ctx, user, lead); err != nil {
				s.log.Error("reminder send failed", "telegram_id", user.TelegramID, "lead_days", lead, "err", err)
			}
		}
	}
	return nil
}
