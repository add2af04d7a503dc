package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
)

// Notifier performs the channel-side Telegram operations the reconciliation
// core needs: one-shot invite links, removal from the paid channel, direct
// messages and admin alerts. It implements service.Messenger.
type Notifier struct {
	cfg config.Config
	api *tgbotapi.BotAPI
	log *slog.Logger
}

func NewNotifier(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, api: api, log: log}
}

// SendInvite creates a single-use invite link and delivers it to the user.
// With join-request gating the link carries a short TTL instead of the
// membership expiry, since joining is approved separately.
func (n *Notifier) SendInvite(ctx context.Context, user *models.User, expiresAt time.Time) error {
	link, err := n.createInviteLink(expiresAt)
	if err != nil {
		// The credit stands; tell the user and leave the manual re-send path.
		n.sendText(user.TelegramID, msg(user.Language, "invite.pending", expiresAt.UTC().Format("2006-01-02 15:04")))
		return fmt.Errorf("create invite link: %w", err)
	}
	return n.send(user.TelegramID, msg(user.Language, "invite", expiresAt.UTC().Format("2006-01-02 15:04"), link))
}

func (n *Notifier) createInviteLink(expiresAt time.Time) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: n.cfg.PaidChannel},
	}
	if n.cfg.JoinRequestEnable {
		cfg.CreatesJoinRequest = true
		cfg.ExpireDate = int(time.Now().Add(n.cfg.JoinRequestLinkExpire).Unix())
	} else {
		cfg.MemberLimit = 1
		cfg.ExpireDate = int(expiresAt.Unix())
	}

	resp, err := n.api.Request(cfg)
	if err != nil {
		return "", err
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	if link.InviteLink == "" {
		return "", fmt.Errorf("empty invite link in response")
	}
	return link.InviteLink, nil
}

// RemoveFromChannel bans and immediately unbans the user, which removes
// them from the paid channel without a permanent ban.
func (n *Notifier) RemoveFromChannel(ctx context.Context, telegramID int64) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: n.cfg.PaidChannel,
			UserID: telegramID,
		},
	}
	if _, err := n.api.Request(ban); err != nil {
		return fmt.Errorf("ban member: %w", err)
	}

	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: n.cfg.PaidChannel,
			UserID: telegramID,
		},
		OnlyIfBanned: true,
	}
	if _, err := n.api.Request(unban); err != nil {
		return fmt.Errorf("unban member: %w", err)
	}
	return nil
}

func (n *Notifier) NotifyInviterReward(ctx context.Context, inviter *models.User, days int) error {
	return n.send(inviter.TelegramID, msg(inviter.Language, "reward", days))
}

func (n *Notifier) SendExpiryNotice(ctx context.Context, user *models.User) error {
	return n.send(user.TelegramID, msg(user.Language, "expiry"))
}

func (n *Notifier) SendReminder(ctx context.Context, user *models.User, leadDays int) error {
	return n.send(user.TelegramID, msg(user.Language, "reminder", leadDays))
}

func (n *Notifier) AlertAdmins(ctx context.Context, text string) error {
	if n.cfg.AdminChatID == 0 {
		n.log.Warn("admin alert dropped, ADMIN_CHAT_ID not set", "text", text)
		return nil
	}
	return n.send(n.cfg.AdminChatID, "⚠️ "+text)
}

func (n *Notifier) send(chatID int64, text string) error {
	if _, err := n.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// sendText is send with the error reduced to a log line.
func (n *Notifier) sendText(chatID int64, text string) {
	if err := n.send(chatID, text); err != nil {
		n.log.Error("send text", "chat_id", chatID, "err", err)
	}
}
