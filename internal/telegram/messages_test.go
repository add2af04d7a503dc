package telegram

import (
	"strings"
	"testing"
)

func TestMsgLanguageFallback(t *testing.T) {
	en := msg("en", "plans")
	if got := msg("de", "plans"); got != en {
		t.Fatalf("unknown language should fall back to en: got %q, want %q", got, en)
	}
	if got := msg("", "plans"); got != en {
		t.Fatalf("empty language should fall back to en: got %q, want %q", got, en)
	}
}

func TestMsgFormatsArgs(t *testing.T) {
	got := msg("en", "reward", 7)
	if !strings.Contains(got, "7 bonus days") {
		t.Fatalf("want reward text with day count, got %q", got)
	}
}

func TestMsgPendingArgOrder(t *testing.T) {
	// Both languages take (amount, address), zh reorders them in the template.
	en := msg("en", "status.pending", "19.9901", "TAddr")
	if !strings.Contains(en, "19.9901") || !strings.Contains(en, "TAddr") {
		t.Fatalf("en pending text missing args: %q", en)
	}
	zh := msg("zh", "status.pending", "19.9901", "TAddr")
	if !strings.Contains(zh, "19.9901") || !strings.Contains(zh, "TAddr") {
		t.Fatalf("zh pending text missing args: %q", zh)
	}
	if strings.Contains(zh, "%!") {
		t.Fatalf("zh pending text has a formatting error: %q", zh)
	}
}

func TestMsgAllKeysPresentInEveryLanguage(t *testing.T) {
	for key := range messages["en"] {
		for lang, table := range messages {
			if _, ok := table[key]; !ok {
				t.Errorf("language %q missing key %q", lang, key)
			}
		}
	}
}
