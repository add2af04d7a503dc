package service

import (
	"context"
	"time"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
)

// Messenger is the Telegram collaborator as the reconciliation core sees it.
// Every operation returns success or failure; failures are reported but
// never roll back database state.
type Messenger interface {
	SendInvite(ctx context.Context, user *models.User, expiresAt time.Time) error
	NotifyInviterReward(ctx context.Context, inviter *models.User, days int) error
	SendExpiryNotice(ctx context.Context, user *models.User) error
	SendReminder(ctx context.Context, user *models.User, leadDays int) error
	RemoveFromChannel(ctx context.Context, telegramID int64) error
	AlertAdmins(ctx context.Context, text string) error
}
