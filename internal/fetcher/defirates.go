package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var dec100 = decimal.NewFromInt(100)

// DeFiRatesOptions parameterise the REST rates fetcher.
type DeFiRatesOptions struct {
	Endpoints map[string]string
	Timeout   time.Duration
	UserAgent string
}

// DeFiRates fetches protocol APY data from per-protocol REST endpoints.
// Upstream payloads are loose JSON; missing rate fields are tolerated and
// reported as absent rather than zero.
type DeFiRates struct {
	opts   DeFiRatesOptions
	logger zerolog.Logger
	client *http.Client
}

// NewDeFiRates constructs a REST rates fetcher.
func NewDeFiRates(opts DeFiRatesOptions, logger zerolog.Logger) *DeFiRates {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &DeFiRates{
		opts:   opts,
		logger: logger.With().Str("component", "defi_rates_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchRates retrieves APY data for one configured protocol.
func (d *DeFiRates) FetchRates(ctx context.Context, protocol string) (ProtocolRates, error) {
	endpoint, ok := d.opts.Endpoints[protocol]
	if !ok || strings.TrimSpace(endpoint) == "" {
		return ProtocolRates{}, fmt.Errorf("no rates endpoint configured for protocol %s", protocol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ProtocolRates{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(d.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "marketwatcher/1.0")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return ProtocolRates{}, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProtocolRates{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return ProtocolRates{}, parseHTTPError(protocol, resp.StatusCode, payloadBytes)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return ProtocolRates{}, fmt.Errorf("decode %s rates payload: %w", protocol, err)
	}

	rates := ProtocolRates{Protocol: protocol, Source: endpoint}
	if rates.Staking, err = extractRate(payload, "stakingApy", "staking_apy"); err != nil {
		return ProtocolRates{}, fmt.Errorf("%s: %w", protocol, err)
	}
	if rates.Lending, err = extractRate(payload, "supplyApy", "supply_apy", "lendingApy"); err != nil {
		return ProtocolRates{}, fmt.Errorf("%s: %w", protocol, err)
	}
	if rates.Borrowing, err = extractRate(payload, "borrowApy", "borrow_apy", "borrowingApy"); err != nil {
		return ProtocolRates{}, fmt.Errorf("%s: %w", protocol, err)
	}

	if !rates.Staking.Present && !rates.Lending.Present && !rates.Borrowing.Present {
		return ProtocolRates{}, fmt.Errorf("%s: payload carries no recognised rate fields", protocol)
	}

	// Endpoints report annualised percentages; everything downstream works in
	// fractions.
	rates.Staking = toFraction(rates.Staking)
	rates.Lending = toFraction(rates.Lending)
	rates.Borrowing = toFraction(rates.Borrowing)

	return rates, nil
}

func toFraction(r RateReading) RateReading {
	if !r.Present {
		return r
	}
	r.Value = r.Value.Div(dec100)
	return r
}

// extractRate returns the first matching alias as an annualised percentage.
// Values arrive as JSON numbers or strings like "9.5%".
func extractRate(payload map[string]json.RawMessage, aliases ...string) (RateReading, error) {
	for _, alias := range aliases {
		raw, ok := payload[alias]
		if !ok {
			continue
		}

		var asNumber float64
		if err := json.Unmarshal(raw, &asNumber); err == nil {
			return RateReading{Value: decimal.NewFromFloat(asNumber), Present: true}, nil
		}

		var asString string
		if err := json.Unmarshal(raw, &asString); err != nil {
			return RateReading{}, fmt.Errorf("field %s has unsupported type", alias)
		}

		asString = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(asString), "%"))
		if asString == "" {
			continue
		}
		value, err := decimal.NewFromString(asString)
		if err != nil {
			return RateReading{}, fmt.Errorf("parse field %s: %w", alias, err)
		}
		return RateReading{Value: value, Present: true}, nil
	}
	return RateReading{}, nil
}

var _ ProtocolRatesFetcher = (*DeFiRates)(nil)
