package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderSuccess OrderStatus = "success"
)

type TransferStatus string

const (
	// TransferSeen is the ingest state: stored, not yet evaluated.
	TransferSeen TransferStatus = "seen"
	// TransferUnmatched had no eligible order; re-evaluated on later sweeps.
	TransferUnmatched TransferStatus = "unmatched"
	// TransferProcessed is terminal: credited exactly once.
	TransferProcessed TransferStatus = "processed"
)

type User struct {
	TelegramID       int64
	Username         string
	PaidUntil        *time.Time
	TotalReceived    decimal.Decimal
	LastPlan         string
	WalletAddr       string
	InviterID        *int64
	InviteCount      int
	InviteRewardDays int
	Language         string
	ExpiredHandledAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether the membership clock has run out at the given instant.
func (u *User) Expired(now time.Time) bool {
	return u.PaidUntil == nil || !u.PaidUntil.After(now)
}

type AddressPoolEntry struct {
	Addr       string
	AssignedTo *int64
	AssignedAt *time.Time
}

type Order struct {
	ID         int64
	Ref        string
	TelegramID int64
	Addr       string
	Amount     decimal.Decimal
	PlanCode   string
	Status     OrderStatus
	TxID       string
	CreatedAt  time.Time
}

type Transfer struct {
	TxID           string
	Addr           string
	FromAddr       string
	Amount         decimal.Decimal
	Status         TransferStatus
	PlanCode       string
	CreditedAmount decimal.Decimal
	TelegramID     *int64
	BlockTime      *time.Time
	ProcessedAt    *time.Time
	CreatedAt      time.Time
}

// EffectiveTime is the instant used for confirmation-age checks: the block
// time when the chain reported one, otherwise the arrival instant.
func (t *Transfer) EffectiveTime() time.Time {
	if t.BlockTime != nil {
		return *t.BlockTime
	}
	return t.CreatedAt
}

type AuditEntry struct {
	ID         int64
	Action     string
	TelegramID int64
	Detail     string
	CreatedAt  time.Time
}
