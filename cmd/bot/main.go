package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/admin"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/database"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/repository"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/scheduler"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/service"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/telegram"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/tron"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.Debug)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}
	if cfg.PaymentMode == config.ModeAddressPool {
		if err := database.SeedAddressPool(ctx, db, cfg.AddressPool); err != nil {
			log.Fatalf("seed address pool: %v", err)
		}
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	notifier := telegram.NewNotifier(cfg, botAPI, logr)
	chain := tron.NewClient(cfg.TronBaseURL, cfg.TronAPIKey, cfg.USDTContract, cfg.HTTPTimeout, logr)

	orderService := service.NewOrderService(cfg, orderRepo, addressRepo, userRepo, logr)
	referralService := service.NewReferralService(cfg, userRepo, auditRepo, notifier, logr)
	matcher := service.NewMatcher(cfg, chain, userRepo, orderRepo, transferRepo, addressRepo, auditRepo, referralService, notifier, logr)
	sweepService := service.NewSweepService(cfg, userRepo, auditRepo, notifier, logr)
	healthService := service.NewHealthService(cfg, transferRepo, notifier, logr)

	sched := scheduler.New(cfg, matcher, sweepService, healthService, logr)
	go sched.Run(ctx)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, userRepo, transferRepo, addressRepo, auditRepo, healthService, notifier)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	bot := telegram.NewBot(cfg, botAPI, logr, userRepo, orderService, orderRepo, notifier)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}
