package config

import (
	"testing"
)

func TestParsePlans(t *testing.T) {
	plans, err := ParsePlans("monthly:30:1.99, quarter:90:3.99")
	if err != nil {
		t.Fatalf("parse plans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("want 2 plans, got %d", len(plans))
	}
	if plans[0].Code != "monthly" || plans[0].Days != 30 || plans[0].Price.String() != "1.99" {
		t.Fatalf("unexpected first plan: %+v", plans[0])
	}
	if plans[1].Code != "quarter" || plans[1].Days != 90 || plans[1].Price.String() != "3.99" {
		t.Fatalf("unexpected second plan: %+v", plans[1])
	}
}

func TestParsePlansRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"missing field", "monthly:30"},
		{"bad days", "monthly:x:1.99"},
		{"zero days", "monthly:0:1.99"},
		{"bad price", "monthly:30:free"},
		{"negative price", "monthly:30:-1"},
		{"duplicate code", "monthly:30:1.99,monthly:60:2.99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePlans(tt.raw); err == nil {
				t.Fatalf("want error for %q", tt.raw)
			}
		})
	}
}

func TestParseInviteRewards(t *testing.T) {
	rewards, err := ParseInviteRewards("monthly:3,quarter:10")
	if err != nil {
		t.Fatalf("parse rewards: %v", err)
	}
	if rewards["monthly"] != 3 || rewards["quarter"] != 10 {
		t.Fatalf("unexpected rewards: %v", rewards)
	}

	empty, err := ParseInviteRewards("")
	if err != nil {
		t.Fatalf("parse empty rewards: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("want empty map, got %v", empty)
	}

	if _, err := ParseInviteRewards("monthly:-1"); err == nil {
		t.Fatal("want error for negative days")
	}
}

func TestParseLeadDaysSortedDescending(t *testing.T) {
	days, err := parseLeadDays("1, 7, 3")
	if err != nil {
		t.Fatalf("parse lead days: %v", err)
	}
	want := []int{7, 3, 1}
	if len(days) != len(want) {
		t.Fatalf("want %v, got %v", want, days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("want %v, got %v", want, days)
		}
	}

	if _, err := parseLeadDays("3,0"); err == nil {
		t.Fatal("want error for zero lead days")
	}
}

func TestPlanByCode(t *testing.T) {
	cfg := Config{}
	var err error
	if cfg.Plans, err = ParsePlans("monthly:30:1.99"); err != nil {
		t.Fatalf("parse plans: %v", err)
	}
	if plan := cfg.PlanByCode("monthly"); plan == nil || plan.Days != 30 {
		t.Fatalf("want monthly plan, got %+v", plan)
	}
	if plan := cfg.PlanByCode("yearly"); plan != nil {
		t.Fatalf("want nil for unknown code, got %+v", plan)
	}
}

func TestWatchedAddresses(t *testing.T) {
	single := Config{PaymentMode: ModeSingleAddress, ReceiveAddress: "TAddr1"}
	if got := single.WatchedAddresses(); len(got) != 1 || got[0] != "TAddr1" {
		t.Fatalf("single mode: got %v", got)
	}

	pool := Config{PaymentMode: ModeAddressPool, AddressPool: []string{"TAddr1", "TAddr2"}}
	if got := pool.WatchedAddresses(); len(got) != 2 {
		t.Fatalf("pool mode: got %v", got)
	}
}
