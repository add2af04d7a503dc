package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/config"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/repository"
)

var ErrUnknownPlan = errors.New("unknown plan code")

// suffixStep is the granularity of the random amount suffix.
var suffixStep = decimal.New(1, -4)

// OrderService creates pending orders for a selected plan, assigning a pool
// address or a suffixed amount depending on the payment mode.
type OrderService struct {
	cfg       config.Config
	orders    *repository.OrderRepository
	addresses *repository.AddressRepository
	users     *repository.UserRepository
	log       *slog.Logger
	now       func() time.Time
	randInt   func(n int64) int64
}

func NewOrderService(cfg config.Config, orders *repository.OrderRepository, addresses *repository.AddressRepository, users *repository.UserRepository, log *slog.Logger) *OrderService {
	return &OrderService{
		cfg:       cfg,
		orders:    orders,
		addresses: addresses,
		users:     users,
		log:       log,
		now:       time.Now,
		randInt:   rand.Int63n,
	}
}

// Create opens a pending order for the user and plan and returns it. The
// returned order carries the exact amount the user must transfer and the
// address to send it to.
func (s *OrderService) Create(ctx context.Context, user *models.User, planCode string) (*models.Order, error) {
	plan := s.cfg.PlanByCode(planCode)
	if plan == nil {
		return nil, ErrUnknownPlan
	}

	addr, err := s.paymentAddress(ctx, user)
	if err != nil {
		return nil, err
	}

	amount, err := s.orderAmount(ctx, addr, plan)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Ref:        uuid.NewString(),
		TelegramID: user.TelegramID,
		Addr:       addr,
		Amount:     amount,
		PlanCode:   plan.Code,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	s.log.Info("order created", "ref", order.Ref, "telegram_id", user.TelegramID, "plan", plan.Code, "addr", addr, "amount", amount.String())
	return order, nil
}

func (s *OrderService) paymentAddress(ctx context.Context, user *models.User) (string, error) {
	if s.cfg.PaymentMode == config.ModeSingleAddress {
		return s.cfg.ReceiveAddress, nil
	}
	entry, err := s.addresses.Assign(ctx, user.TelegramID, s.now())
	if err != nil {
		return "", err
	}
	if user.WalletAddr != entry.Addr {
		if err := s.users.SetWalletAddr(ctx, user.TelegramID, entry.Addr); err != nil {
			return "", err
		}
	}
	return entry.Addr, nil
}

// orderAmount is the plan price, plus a random fractional suffix in
// single-address mode so concurrent orders stay amount-unique. A handful of
// draws avoids colliding with amounts already pending at the address.
func (s *OrderService) orderAmount(ctx context.Context, addr string, plan *config.Plan) (decimal.Decimal, error) {
	if s.cfg.PaymentMode != config.ModeSingleAddress || !s.cfg.SuffixEnable {
		return plan.Price, nil
	}

	since := s.now().Add(-s.cfg.MatchLookback)
	taken, err := s.orders.PendingAmountsByAddr(ctx, addr, since)
	if err != nil {
		return decimal.Decimal{}, err
	}
	takenSet := make(map[string]bool, len(taken))
	for _, a := range taken {
		d, err := decimal.NewFromString(a)
		if err != nil {
			continue
		}
		takenSet[d.Truncate(6).String()] = true
	}

	for attempt := 0; attempt < 20; attempt++ {
		amount := plan.Price.Add(SuffixAmount(s.cfg.SuffixMin, s.cfg.SuffixMax, s.randInt)).Truncate(6)
		if !takenSet[amount.String()] {
			return amount, nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("could not pick a unique amount for plan %s at %s", plan.Code, addr)
}

// SuffixAmount draws a uniform random multiple of 0.0001 in [min, max],
// bounds inclusive.
func SuffixAmount(min, max decimal.Decimal, randInt func(int64) int64) decimal.Decimal {
	lo := min.Div(suffixStep).Ceil().IntPart()
	hi := max.Div(suffixStep).Floor().IntPart()
	if hi < lo {
		hi = lo
	}
	n := lo + randInt(hi-lo+1)
	return suffixStep.Mul(decimal.NewFromInt(n))
}
