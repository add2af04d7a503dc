package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPickOrder(t *testing.T) {
	eps := dec("0.000001")
	orders := []models.Order{
		{ID: 1, Amount: dec("1.990042")},
		{ID: 2, Amount: dec("1.990088")},
		{ID: 3, Amount: dec("3.990000")},
	}

	tests := []struct {
		name   string
		amount string
		wantID int64
	}{
		{"exact match first", "1.990042", 1},
		{"exact match second", "1.990088", 2},
		{"within eps", "1.990089", 2},
		{"other plan amount", "3.990000", 3},
		{"no match", "2.500000", 0},
		{"outside eps", "1.990090", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickOrder(orders, dec(tt.amount), eps)
			if tt.wantID == 0 {
				if got != nil {
					t.Fatalf("want no match, got order %d", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatalf("want order %d, got none", tt.wantID)
			}
			if got.ID != tt.wantID {
				t.Fatalf("want order %d, got %d", tt.wantID, got.ID)
			}
		})
	}
}

func TestPickOrderRespectsListOrder(t *testing.T) {
	// Tie-break direction lives in the query's ORDER BY; the picker takes
	// the first qualifying order as given.
	eps := dec("0.01")
	recentFirst := []models.Order{
		{ID: 2, Amount: dec("1.99")},
		{ID: 1, Amount: dec("1.99")},
	}
	if got := PickOrder(recentFirst, dec("1.99"), eps); got == nil || got.ID != 2 {
		t.Fatalf("want first listed order 2, got %+v", got)
	}
}

func TestNextPaidUntil(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(72 * time.Hour)

	tests := []struct {
		name string
		prev *time.Time
		days int
		want time.Time
	}{
		{"first credit", nil, 30, now.AddDate(0, 0, 30)},
		{"lapsed membership restarts from now", &past, 30, now.AddDate(0, 0, 30)},
		{"active membership stacks", &future, 30, future.AddDate(0, 0, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextPaidUntil(now, tt.prev, tt.days)
			if !got.Equal(tt.want) {
				t.Fatalf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNextPaidUntilMonotonic(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	// Two credits applied in sequence never lose already-bought time.
	first := NextPaidUntil(now, nil, 30)
	second := NextPaidUntil(now.Add(time.Minute), &first, 30)
	if !second.After(first) {
		t.Fatalf("second credit %s must extend beyond first %s", second, first)
	}
	if want := first.AddDate(0, 0, 30); !second.Equal(want) {
		t.Fatalf("want %s, got %s", want, second)
	}
}
