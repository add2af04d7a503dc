package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/repository"
)

// HealthService alerts administrators when the time since the last
// successful credit exceeds the configured threshold. The last-alerted memo
// is process-local; re-alerting once after a restart is acceptable.
type HealthService struct {
	cfg       config.Config
	transfers *repository.TransferRepository
	messenger Messenger
	log       *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	lastAlertAt time.Time
}

func NewHealthService(cfg config.Config, transfers *repository.TransferRepository, messenger Messenger, log *slog.Logger) *HealthService {
	return &HealthService{
		cfg:       cfg,
		transfers: transfers,
		messenger: messenger,
		log:       log,
		now:       time.Now,
	}
}

// Check runs one health tick. A store read failure is itself alert-worthy.
func (s *HealthService) Check(ctx context.Context) error {
	if !s.cfg.HealthAlertEnable {
		return nil
	}

	last, err := s.transfers.LastProcessedAt(ctx)
	if err != nil {
		s.alert(ctx, fmt.Sprintf("health check could not read the store: %v", err))
		return err
	}
	if last == nil {
		// No credit has ever landed; there is no baseline to be stale against.
		return nil
	}

	gap := s.now().UTC().Sub(*last)
	if gap <= s.cfg.HealthDepositStale {
		return nil
	}
	s.alert(ctx, fmt.Sprintf("no successful credit for %s (last at %s)", gap.Round(time.Minute), last.Format(time.RFC3339)))
	return nil
}

// LastCreditAge reports the age of the newest credit for the admin API.
func (s *HealthService) LastCreditAge(ctx context.Context) (*time.Duration, error) {
	last, err := s.transfers.LastProcessedAt(ctx)
	if err != nil || last == nil {
		return nil, err
	}
	age := s.now().UTC().Sub(*last)
	return &age, nil
}

func (s *HealthService) alert(ctx context.Context, text string) {
	s.mu.Lock()
	recent := !s.lastAlertAt.IsZero() && s.now().Sub(s.lastAlertAt) < s.cfg.HealthAlertMinInterval
	if !recent {
		s.lastAlertAt = s.now()
	}
	s.mu.Unlock()
	if recent {
		return
	}

	s.log.Warn("health alert", "text", text)
	if err := s.messenger.AlertAdmins(ctx, text); err != nil {
		s.log.Error("health alert delivery failed", "err", err)
	}
}
