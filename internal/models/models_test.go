package models

import (
	"testing"
	"time"
)

func TestUserExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		paidUntil *time.Time
		want      bool
	}{
		{"never paid", nil, true},
		{"lapsed", &past, true},
		{"exactly now", &now, true},
		{"active", &future, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{PaidUntil: tt.paidUntil}
			if got := u.Expired(now); got != tt.want {
				t.Fatalf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransferEffectiveTime(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	block := created.Add(-2 * time.Minute)

	tr := &Transfer{CreatedAt: created}
	if got := tr.EffectiveTime(); !got.Equal(created) {
		t.Fatalf("want arrival instant %s, got %s", created, got)
	}

	tr.BlockTime = &block
	if got := tr.EffectiveTime(); !got.Equal(block) {
		t.Fatalf("want block time %s, got %s", block, got)
	}
}
