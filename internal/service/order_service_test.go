package service

import (
	"testing"
)

func TestSuffixAmountBounds(t *testing.T) {
	min := dec("0.0001")
	max := dec("0.0099")
	step := dec("0.0001")

	for n := int64(0); n < 99; n++ {
		n := n
		got := SuffixAmount(min, max, func(int64) int64 { return n })
		if got.LessThan(min) || got.GreaterThan(max) {
			t.Fatalf("suffix %s outside [%s, %s]", got, min, max)
		}
		if !got.Mod(step).IsZero() {
			t.Fatalf("suffix %s is not a multiple of %s", got, step)
		}
	}
}

func TestSuffixAmountInclusiveEnds(t *testing.T) {
	min := dec("0.0001")
	max := dec("0.0099")

	lowest := SuffixAmount(min, max, func(int64) int64 { return 0 })
	if !lowest.Equal(min) {
		t.Fatalf("lowest draw: want %s, got %s", min, lowest)
	}
	highest := SuffixAmount(min, max, func(n int64) int64 { return n - 1 })
	if !highest.Equal(max) {
		t.Fatalf("highest draw: want %s, got %s", max, highest)
	}
}

func TestSuffixAmountDegenerateRange(t *testing.T) {
	v := dec("0.0042")
	got := SuffixAmount(v, v, func(n int64) int64 {
		if n != 1 {
			t.Fatalf("want a single possible draw, got range %d", n)
		}
		return 0
	})
	if !got.Equal(v) {
		t.Fatalf("want %s, got %s", v, got)
	}
}
