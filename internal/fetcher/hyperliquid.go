package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const hyperliquidInfoPath = "/info"

// HyperliquidOptions parameterise the Hyperliquid info fetcher.
type HyperliquidOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Hyperliquid fetches perp market context from the Hyperliquid info endpoint.
type Hyperliquid struct {
	opts    HyperliquidOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHyperliquid constructs a Hyperliquid market context fetcher.
func NewHyperliquid(opts HyperliquidOptions, logger zerolog.Logger) *Hyperliquid {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.hyperliquid.xyz"
	}

	return &Hyperliquid{
		opts:    opts,
		logger:  logger.With().Str("component", "hyperliquid_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchContext retrieves funding, mark price, and open interest for one coin.
func (h *Hyperliquid) FetchContext(ctx context.Context, symbol string) (MarketContext, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return MarketContext{}, errors.New("symbol required")
	}

	body, err := json.Marshal(infoRequest{Type: "metaAndAssetCtxs"})
	if err != nil {
		return MarketContext{}, err
	}

	endpoint := h.baseURL + hyperliquidInfoPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return MarketContext{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "marketwatcher/1.0")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return MarketContext{}, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return MarketContext{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return MarketContext{}, parseHTTPError("hyperliquid", resp.StatusCode, payloadBytes)
	}

	// The payload is a two-element array: [meta, assetCtxs]. The universe index
	// in meta lines up with the context array.
	var parts []json.RawMessage
	if err := json.Unmarshal(payloadBytes, &parts); err != nil {
		return MarketContext{}, err
	}
	if len(parts) != 2 {
		return MarketContext{}, fmt.Errorf("unexpected metaAndAssetCtxs shape: %d elements", len(parts))
	}

	var meta infoMeta
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return MarketContext{}, err
	}

	var ctxs []assetContext
	if err := json.Unmarshal(parts[1], &ctxs); err != nil {
		return MarketContext{}, err
	}

	idx := -1
	for i, asset := range meta.Universe {
		if strings.EqualFold(asset.Name, symbol) {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(ctxs) {
		return MarketContext{}, fmt.Errorf("coin %s not listed on hyperliquid", symbol)
	}

	asset := ctxs[idx]
	out := MarketContext{Symbol: symbol}

	if out.Funding, err = parseDecimalField("funding", asset.Funding); err != nil {
		return MarketContext{}, err
	}
	if out.MarkPx, err = parseDecimalField("markPx", asset.MarkPx); err != nil {
		return MarketContext{}, err
	}
	if out.OpenInterest, err = parseDecimalField("openInterest", asset.OpenInterest); err != nil {
		return MarketContext{}, err
	}

	return out, nil
}

type infoRequest struct {
	Type string `json:"type"`
}

type infoMeta struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

type assetContext struct {
	Funding      string `json:"funding"`
	MarkPx       string `json:"markPx"`
	OpenInterest string `json:"openInterest"`
}

func parseDecimalField(name, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

func parseHTTPError(api string, status int, payload []byte) error {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error != "" {
			return fmt.Errorf("%s api error (%d): %s", api, status, apiErr.Error)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("%s api error (%d): %s", api, status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("%s api error (%d): %s", api, status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("%s api error (%d)", api, status)
}

var _ MarketContextFetcher = (*Hyperliquid)(nil)
