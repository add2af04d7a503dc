package tron

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is a normalized incoming token transfer: integer base units
// already decoded through the contract's decimals, block timestamp in UTC.
type Transfer struct {
	TxID      string
	To        string
	From      string
	Amount    decimal.Decimal
	BlockTime time.Time
}

// Client lists incoming USDT-TRC20 transfers per watched address through
// the TronGrid HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	contract   string
	httpClient *http.Client
	log        *slog.Logger

	// TronGrid free tier tolerates a few RPS; calls are spaced out.
	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

func NewClient(baseURL, apiKey, contract string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		contract: contract,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:      log,
		minDelay: 250 * time.Millisecond,
	}
}

func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.lastCall)
	if elapsed < c.minDelay {
		time.Sleep(c.minDelay - elapsed)
	}
	c.lastCall = time.Now()
}

type trc20Response struct {
	Data []struct {
		TransactionID string `json:"transaction_id"`
		TxID          string `json:"txID"`
		Hash          string `json:"hash"`
		From          string `json:"from"`
		To            string `json:"to"`
		Value         string `json:"value"`
		TokenInfo     struct {
			Address  string `json:"address"`
			Decimals int32  `json:"decimals"`
		} `json:"token_info"`
		BlockTimestamp int64 `json:"block_timestamp"`
	} `json:"data"`
	Success bool `json:"success"`
}

// ListIncoming enumerates confirmed incoming transfers of the configured
// token contract for addr. Failures are logged and surface as an error with
// an empty slice; the caller treats that as an empty enumeration and never
// touches stored rows.
func (c *Client) ListIncoming(ctx context.Context, addr string, retries int) ([]Transfer, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
		transfers, err := c.listOnce(ctx, addr)
		if err == nil {
			return transfers, nil
		}
		lastErr = err
		c.log.Warn("trongrid list failed", "addr", addr, "attempt", attempt+1, "err", err)
	}
	return nil, lastErr
}

func (c *Client) listOnce(ctx context.Context, addr string) ([]Transfer, error) {
	c.throttle()

	params := url.Values{}
	params.Set("only_to", "true")
	params.Set("only_confirmed", "true")
	params.Set("contract_address", c.contract)
	params.Set("limit", "100")
	fullURL := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20?%s", c.baseURL, url.PathEscape(addr), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get trongrid: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("trongrid error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var parsed trc20Response
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode trc20 response: %w (body=%s)", err, truncateBody(rawBody))
	}

	transfers := make([]Transfer, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		txID := item.TransactionID
		if txID == "" {
			txID = item.TxID
		}
		if txID == "" {
			txID = item.Hash
		}
		if txID == "" || item.To != addr || item.TokenInfo.Address != c.contract {
			continue
		}
		units, err := decimal.NewFromString(item.Value)
		if err != nil {
			c.log.Warn("skip transfer with bad value", "tx_id", txID, "value", item.Value)
			continue
		}
		transfers = append(transfers, Transfer{
			TxID:      txID,
			To:        item.To,
			From:      item.From,
			Amount:    units.Shift(-item.TokenInfo.Decimals),
			BlockTime: time.UnixMilli(item.BlockTimestamp).UTC(),
		})
	}

	sort.Slice(transfers, func(i, j int) bool {
		return transfers[i].BlockTime.Before(transfers[j].BlockTime)
	})
	return transfers, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
