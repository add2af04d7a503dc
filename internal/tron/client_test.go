package tron

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const usdtContract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "test-key", usdtContract, 5*time.Second, slog.Default())
	c.minDelay = 0
	return c
}

func TestListIncomingNormalizes(t *testing.T) {
	const body = `{
  "success": true,
  "data": [
    {
      "transaction_id": "T2",
      "from": "TSender",
      "to": "TWatched",
      "value": "1990456",
      "token_info": {"address": "` + usdtContract + `", "decimals": 6},
      "block_timestamp": 1714564000000
    },
    {
      "txID": "T1",
      "from": "TSender",
      "to": "TWatched",
      "value": "1990123",
      "token_info": {"address": "` + usdtContract + `", "decimals": 6},
      "block_timestamp": 1714560000000
    },
    {
      "transaction_id": "TOtherToken",
      "from": "TSender",
      "to": "TWatched",
      "value": "500000",
      "token_info": {"address": "TOtherContract", "decimals": 6},
      "block_timestamp": 1714560000000
    },
    {
      "transaction_id": "TWrongRecipient",
      "from": "TSender",
      "to": "TSomeoneElse",
      "value": "500000",
      "token_info": {"address": "` + usdtContract + `", "decimals": 6},
      "block_timestamp": 1714560000000
    }
  ]
}`
	var gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("TRON-PRO-API-KEY")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})

	transfers, err := c.ListIncoming(context.Background(), "TWatched", 0)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header not sent, got %q", gotKey)
	}
	if len(transfers) != 2 {
		t.Fatalf("want 2 transfers after filtering, got %d", len(transfers))
	}

	// Sorted by block time ascending.
	if transfers[0].TxID != "T1" || transfers[1].TxID != "T2" {
		t.Fatalf("want [T1 T2], got [%s %s]", transfers[0].TxID, transfers[1].TxID)
	}
	if got := transfers[0].Amount.String(); got != "1.990123" {
		t.Fatalf("T1 amount: want 1.990123, got %s", got)
	}
	if got := transfers[1].Amount.String(); got != "1.990456" {
		t.Fatalf("T2 amount: want 1.990456, got %s", got)
	}

	wantTime := time.UnixMilli(1714560000000).UTC()
	if !transfers[0].BlockTime.Equal(wantTime) {
		t.Fatalf("T1 block time: want %s, got %s", wantTime, transfers[0].BlockTime)
	}
	if transfers[0].BlockTime.Location() != time.UTC {
		t.Fatal("block time must be UTC")
	}
}

func TestListIncomingServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	transfers, err := c.ListIncoming(context.Background(), "TWatched", 0)
	if err == nil {
		t.Fatal("want error for non-2xx response")
	}
	if len(transfers) != 0 {
		t.Fatalf("want empty enumeration on failure, got %d", len(transfers))
	}
}

func TestListIncomingMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})

	transfers, err := c.ListIncoming(context.Background(), "TWatched", 0)
	if err == nil {
		t.Fatal("want error for malformed body")
	}
	if len(transfers) != 0 {
		t.Fatalf("want empty enumeration on parse failure, got %d", len(transfers))
	}
}

func TestListIncomingSkipsBadValue(t *testing.T) {
	const body = `{
  "success": true,
  "data": [
    {
      "transaction_id": "TBad",
      "from": "TSender",
      "to": "TWatched",
      "value": "not-a-number",
      "token_info": {"address": "` + usdtContract + `", "decimals": 6},
      "block_timestamp": 1714560000000
    },
    {
      "transaction_id": "TGood",
      "from": "TSender",
      "to": "TWatched",
      "value": "1000000",
      "token_info": {"address": "` + usdtContract + `", "decimals": 6},
      "block_timestamp": 1714560000000
    }
  ]
}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	transfers, err := c.ListIncoming(context.Background(), "TWatched", 0)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(transfers) != 1 || transfers[0].TxID != "TGood" {
		t.Fatalf("want only TGood, got %+v", transfers)
	}
	if got := transfers[0].Amount.String(); got != "1" {
		t.Fatalf("want amount 1, got %s", got)
	}
}

func TestListIncomingRetries(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success": true, "data": []}`))
	})

	if _, err := c.ListIncoming(context.Background(), "TWatched", 2); err != nil {
		t.Fatalf("want retry to succeed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("want 2 attempts, got %d", attempts)
	}
}
