package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/service"
)

// Scheduler drives the periodic work: reconciliation per watched address,
// the expiry and reminder sweeps, and the health check, each on its own
// cadence. At most one reconciliation attempt is in flight per address.
type Scheduler struct {
	cfg     config.Config
	matcher *service.Matcher
	sweeps  *service.SweepService
	health  *service.HealthService
	log     *slog.Logger

	addrLocks sync.Map // addr -> *sync.Mutex
}

func New(cfg config.Config, matcher *service.Matcher, sweeps *service.SweepService, health *service.HealthService, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		matcher: matcher,
		sweeps:  sweeps,
		health:  health,
		log:     log,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.ReconcileInterval, "reconcile", s.reconcileAll)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.ExpirySweepInterval, "expiry sweep", s.sweeps.SweepExpired)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.ReminderSweepInterval, "reminder sweep", s.sweeps.SweepReminders)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.HealthCheckInterval, "health check", s.health.Check)
	}()

	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, name string, task func(context.Context) error) {
	s.log.Info("scheduler loop started", "task", name, "interval", interval)

	// First pass right away; tickers fire only after a full interval.
	if err := task(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("scheduled task failed", "task", name, "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := task(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("scheduled task failed", "task", name, "err", err)
			}
		}
	}
}

func (s *Scheduler) reconcileAll(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, addr := range s.cfg.WatchedAddresses() {
		mu := s.lockFor(addr)
		if !mu.TryLock() {
			// Previous attempt for this address is still in flight.
			s.log.Debug("reconcile skipped, address busy", "addr", addr)
			continue
		}
		wg.Add(1)
		go func(addr string, mu *sync.Mutex) {
			defer wg.Done()
			defer mu.Unlock()
			if err := s.matcher.Reconcile(ctx, addr); err != nil && ctx.Err() == nil {
				s.log.Error("reconcile failed", "addr", addr, "err", err)
			}
		}(addr, mu)
	}
	wg.Wait()
	return nil
}

func (s *Scheduler) lockFor(addr string) *sync.Mutex {
	v, _ := s.addrLocks.LoadOrStore(addr, &sync.Mutex{})
	return v.(*sync.Mutex)
}
