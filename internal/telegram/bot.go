package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/repository"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/service"
)

// Bot is the thin command surface over the reconciliation engine: plan
// selection creates pending orders, /status reports the membership clock,
// /resend re-issues the invite link.
type Bot struct {
	cfg      config.Config
	api      *tgbotapi.BotAPI
	log      *slog.Logger
	users    *repository.UserRepository
	orders   *service.OrderService
	orderLog *repository.OrderRepository
	notifier *Notifier
	state    *StateManager
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, users *repository.UserRepository, orders *service.OrderService, orderLog *repository.OrderRepository, notifier *Notifier) *Bot {
	return &Bot{
		cfg:      cfg,
		api:      api,
		log:      log,
		users:    users,
		orders:   orders,
		orderLog: orderLog,
		notifier: notifier,
		state:    NewStateManager(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if !m.IsCommand() {
		return
	}
	switch m.Command() {
	case "start":
		b.handleStart(ctx, m)
	case "plans":
		b.handlePlans(ctx, m)
	case "status":
		b.handleStatus(ctx, m)
	case "resend":
		b.handleResend(ctx, m)
	default:
		user, err := b.ensureUser(ctx, m)
		if err != nil {
			b.log.Error("ensure user", "err", err)
			return
		}
		b.sendText(m.Chat.ID, msg(user.Language, "start"))
	}
}

func (b *Bot) handleStart(ctx context.Context, m *tgbotapi.Message) {
	// Deep-link payload carries the inviter's telegram id.
	var inviterID *int64
	if payload := strings.TrimSpace(m.CommandArguments()); payload != "" {
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil && id > 0 {
			inviterID = &id
		}
	}
	user, created, err := b.users.Ensure(ctx, b.senderID(m), b.senderName(m), inviterID, b.language(m))
	if err != nil {
		b.log.Error("ensure user on start", "err", err)
		return
	}
	if created {
		b.log.Info("user created", "telegram_id", user.TelegramID, "inviter", inviterID)
	}
	b.sendText(m.Chat.ID, msg(user.Language, "start"))
}

func (b *Bot) handlePlans(ctx context.Context, m *tgbotapi.Message) {
	user, err := b.ensureUser(ctx, m)
	if err != nil {
		b.log.Error("ensure user plans", "err", err)
		return
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, plan := range b.cfg.Plans {
		label := fmt.Sprintf("%s — %d days / %s USDT", plan.Code, plan.Days, plan.Price.StringFixed(2))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "plan:"+plan.Code),
		))
	}
	out := tgbotapi.NewMessage(m.Chat.ID, msg(user.Language, "plans"))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send plan keyboard", "err", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || !strings.HasPrefix(cb.Data, "plan:") {
		return
	}
	chatID := cb.Message.Chat.ID
	planCode := strings.TrimPrefix(cb.Data, "plan:")

	user, err := b.users.FindByTelegramID(ctx, cb.From.ID)
	if err != nil || user == nil {
		b.log.Error("callback user lookup", "err", err)
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Error("callback ack", "err", err)
	}

	order, err := b.orders.Create(ctx, user, planCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan):
			b.sendText(chatID, msg(user.Language, "plan.unknown"))
		case errors.Is(err, repository.ErrNoFreeAddress):
			b.sendText(chatID, msg(user.Language, "pool.empty"))
		default:
			b.log.Error("create order", "err", err)
			b.sendText(chatID, msg(user.Language, "error"))
		}
		return
	}

	b.state.Set(chatID, &Session{
		OrderRef: order.Ref,
		Amount:   order.Amount.StringFixed(6),
		Addr:     order.Addr,
	})
	b.sendText(chatID, msg(user.Language, "order", order.Amount.StringFixed(6), order.Addr))
}

func (b *Bot) handleStatus(ctx context.Context, m *tgbotapi.Message) {
	user, err := b.ensureUser(ctx, m)
	if err != nil {
		b.log.Error("ensure user status", "err", err)
		return
	}
	now := time.Now().UTC()
	if !user.Expired(now) {
		b.state.Reset(m.Chat.ID)
		b.sendText(m.Chat.ID, msg(user.Language, "status.active", user.PaidUntil.Format("2006-01-02 15:04")))
		return
	}
	if session := b.state.Get(m.Chat.ID); session != nil {
		b.sendText(m.Chat.ID, msg(user.Language, "status.pending", session.Amount, session.Addr))
		return
	}
	if order, err := b.orderLog.LatestForUser(ctx, user.TelegramID); err == nil && order != nil && order.Status == models.OrderPending {
		b.sendText(m.Chat.ID, msg(user.Language, "status.pending", order.Amount.StringFixed(6), order.Addr))
		return
	}
	b.sendText(m.Chat.ID, msg(user.Language, "status.none"))
}

// handleResend is the manual recovery path for a lost or failed invite.
func (b *Bot) handleResend(ctx context.Context, m *tgbotapi.Message) {
	user, err := b.ensureUser(ctx, m)
	if err != nil {
		b.log.Error("ensure user resend", "err", err)
		return
	}
	if user.Expired(time.Now().UTC()) {
		b.sendText(m.Chat.ID, msg(user.Language, "resend.none"))
		return
	}
	if err := b.notifier.SendInvite(ctx, user, *user.PaidUntil); err != nil {
		b.log.Error("resend invite", "telegram_id", user.TelegramID, "err", err)
	}
}

func (b *Bot) ensureUser(ctx context.Context, m *tgbotapi.Message) (*models.User, error) {
	user, _, err := b.users.Ensure(ctx, b.senderID(m), b.senderName(m), nil, b.language(m))
	if err != nil {
		return nil, err
	}
	// Follow the Telegram client language when it changes.
	if lang := b.language(m); lang != user.Language {
		if err := b.users.SetLanguage(ctx, user.TelegramID, lang); err != nil {
			b.log.Error("set language", "telegram_id", user.TelegramID, "err", err)
		} else {
			user.Language = lang
		}
	}
	return user, nil
}

func (b *Bot) senderID(m *tgbotapi.Message) int64 {
	if m.From != nil {
		return m.From.ID
	}
	return m.Chat.ID
}

func (b *Bot) senderName(m *tgbotapi.Message) string {
	if m.From != nil {
		return m.From.UserName
	}
	return ""
}

func (b *Bot) language(m *tgbotapi.Message) string {
	if m.From != nil && m.From.LanguageCode != "" {
		if _, ok := messages[m.From.LanguageCode]; ok {
			return m.From.LanguageCode
		}
	}
	return b.cfg.DefaultLang
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("send text", "err", err)
	}
}
