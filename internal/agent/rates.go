package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/arbitrage"
	"github.com/okorie22/Okorie-AI-sub005/internal/cooldown"
	"github.com/okorie22/Okorie-AI-sub005/internal/events"
	"github.com/okorie22/Okorie-AI-sub005/internal/fetcher"
	"github.com/okorie22/Okorie-AI-sub005/internal/monitor"
	"github.com/okorie22/Okorie-AI-sub005/internal/ratestore"
	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

const ratesAgentName = "rate_agent"

// RatesOptions parameterise the cross-protocol rate monitor.
type RatesOptions struct {
	CacheTTL      time.Duration
	MoveThreshold decimal.Decimal
	NotionalUSD   decimal.Decimal
}

// RatesAgent refreshes protocol rates on a TTL, raises rate_move alerts on
// threshold breaches, and scans the fresh snapshots for borrow/lend spreads.
type RatesAgent struct {
	opts      RatesOptions
	fetchers  map[string]fetcher.ProtocolRatesFetcher
	cache     *ratestore.Store
	history   storage.RateHistoryStore
	scorer    *arbitrage.Scorer
	gate      *cooldown.Gate
	publisher events.Publisher
	audit     storage.AlertStore
	logger    zerolog.Logger

	mu          sync.Mutex
	lastFetched map[string]time.Time
}

// NewRatesAgent constructs the agent. fetchers maps protocol name to its data
// source; the history store, publisher, and audit store are optional.
func NewRatesAgent(
	opts RatesOptions,
	fetchers map[string]fetcher.ProtocolRatesFetcher,
	cache *ratestore.Store,
	history storage.RateHistoryStore,
	scorer *arbitrage.Scorer,
	gate *cooldown.Gate,
	publisher events.Publisher,
	audit storage.AlertStore,
	logger zerolog.Logger,
) *RatesAgent {
	return &RatesAgent{
		opts:        opts,
		fetchers:    fetchers,
		cache:       cache,
		history:     history,
		scorer:      scorer,
		gate:        gate,
		publisher:   publisher,
		audit:       audit,
		logger:      logger.With().Str("component", ratesAgentName).Logger(),
		lastFetched: make(map[string]time.Time),
	}
}

// Cycle refreshes stale protocols and scans for arbitrage. A failing protocol
// does not stop the rest.
func (a *RatesAgent) Cycle(ctx context.Context) error {
	var firstErr error

	for _, protocol := range a.protocolNames() {
		if !a.needsRefresh(protocol) {
			continue
		}
		if err := a.refreshProtocol(ctx, protocol); err != nil {
			a.logger.Error().Err(err).Str("protocol", protocol).Msg("rate refresh failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("refresh %s: %w", protocol, err)
			}
		}
	}

	if err := a.scanArbitrage(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

func (a *RatesAgent) protocolNames() []string {
	names := make([]string, 0, len(a.fetchers))
	for name := range a.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *RatesAgent) needsRefresh(protocol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	last, ok := a.lastFetched[protocol]
	return !ok || time.Since(last) >= a.opts.CacheTTL
}

func (a *RatesAgent) refreshProtocol(ctx context.Context, protocol string) error {
	rates, err := a.fetchers[protocol].FetchRates(ctx, protocol)
	if err != nil {
		return err
	}

	a.ingestReading(ctx, protocol, ratestore.RateStaking, rates.Staking, rates.Source)
	a.ingestReading(ctx, protocol, ratestore.RateLending, rates.Lending, rates.Source)
	a.ingestReading(ctx, protocol, ratestore.RateBorrowing, rates.Borrowing, rates.Source)

	a.mu.Lock()
	a.lastFetched[protocol] = time.Now()
	a.mu.Unlock()

	return nil
}

// ingestReading caches one reading, persists the observation, and raises a
// rate_move alert when the change against the previous snapshot breaches the
// threshold.
func (a *RatesAgent) ingestReading(ctx context.Context, protocol string, rateType ratestore.RateType, reading fetcher.RateReading, source string) {
	if !reading.Present {
		return
	}

	prev, hadPrev := a.cache.Get(rateType, protocol)
	a.cache.Put(rateType, protocol, reading.Value, source)

	if a.history != nil {
		obs := storage.RateObservation{
			Protocol:   protocol,
			RateType:   string(rateType),
			Rate:       reading.Value,
			Source:     source,
			CapturedAt: time.Now().UTC(),
		}
		if err := a.history.InsertObservation(ctx, obs); err != nil {
			a.logger.Error().Err(err).Str("protocol", protocol).Str("rate_type", string(rateType)).
				Msg("rate history write failed")
		}
	}

	if !hadPrev {
		return
	}

	cmp := monitor.Compare(prev.Value, reading.Value, a.opts.MoveThreshold)
	if !cmp.Comparable || !cmp.Breached {
		return
	}

	entity := protocol + "_" + string(rateType)
	if a.gate != nil && !a.gate.ShouldFire(ctx, entity, events.TypeRateMove, time.Now().UTC()) {
		a.logger.Info().Str("entity", entity).Msg("rate move suppressed by cooldown")
		return
	}

	pct, _ := cmp.PctChange.Mul(decimal.NewFromInt(100)).Float64()
	severity, confidence := events.GradeSpike(pct)
	payload := map[string]any{
		"protocol":      protocol,
		"rate_type":     string(rateType),
		"previous_rate": prev.Value.String(),
		"current_rate":  reading.Value.String(),
		"change_pct":    pct,
		"source":        source,
	}
	if trend, ok := a.cache.TrendSince(rateType, protocol, time.Now().UTC().Add(-24*time.Hour)); ok {
		payload["trend_direction"] = trend.Direction
		payload["trend_min"] = trend.Min.String()
		payload["trend_max"] = trend.Max.String()
		payload["trend_points"] = trend.DataPoints
	}

	event := events.NewAlertEvent(ratesAgentName, protocol, events.TypeRateMove, severity, confidence, payload)

	a.logger.Warn().
		Str("protocol", protocol).
		Str("rate_type", string(rateType)).
		Float64("change_pct", pct).
		Msg("rate move detected")

	if err := emit(ctx, a.publisher, a.audit, a.logger, event); err != nil {
		a.logger.Error().Err(err).Str("entity", entity).Msg("rate move emit failed")
	}
}

// scanArbitrage pairs fresh borrowing snapshots against fresh lending
// snapshots and alerts on each qualifying spread, one cooldown slot per
// protocol pair.
func (a *RatesAgent) scanArbitrage(ctx context.Context) error {
	borrowing := a.cache.Fresh(ratestore.RateBorrowing, a.opts.CacheTTL)
	lending := a.cache.Fresh(ratestore.RateLending, a.opts.CacheTTL)
	if len(borrowing) == 0 || len(lending) == 0 {
		return nil
	}

	var firstErr error
	for _, opp := range a.scorer.Score(borrowing, lending) {
		entity := opp.BorrowProtocol + "_" + opp.LendProtocol
		if a.gate != nil && !a.gate.ShouldFire(ctx, entity, events.TypeRateArbitrage, time.Now().UTC()) {
			continue
		}

		severity := events.SeverityMedium
		if opp.RiskScore <= 0.5 {
			severity = events.SeverityHigh
		}
		confidence := 1 - opp.RiskScore

		payload := map[string]any{
			"borrow_protocol":      opp.BorrowProtocol,
			"borrow_rate":          opp.BorrowRate.String(),
			"lend_protocol":        opp.LendProtocol,
			"lend_rate":            opp.LendRate.String(),
			"spread":               opp.Spread.String(),
			"profit_potential_apy": opp.ProfitPotentialAPY.String(),
			"risk_score":           opp.RiskScore,
			"notional_usd":         a.opts.NotionalUSD.String(),
			"est_annual_profit":    arbitrage.EstimateProfit(opp, a.opts.NotionalUSD, 365).String(),
		}

		event := events.NewAlertEvent(ratesAgentName, entity, events.TypeRateArbitrage, severity, confidence, payload)

		a.logger.Warn().
			Str("borrow", opp.BorrowProtocol).
			Str("lend", opp.LendProtocol).
			Str("spread", opp.Spread.String()).
			Float64("risk", opp.RiskScore).
			Msg("arbitrage opportunity detected")

		if err := emit(ctx, a.publisher, a.audit, a.logger, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Opportunities exposes the current ranked scan for the CLI.
func (a *RatesAgent) Opportunities() []arbitrage.Opportunity {
	borrowing := a.cache.Fresh(ratestore.RateBorrowing, a.opts.CacheTTL)
	lending := a.cache.Fresh(ratestore.RateLending, a.opts.CacheTTL)
	return a.scorer.Score(borrowing, lending)
}
