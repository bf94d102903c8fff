package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/cooldown"
	"github.com/okorie22/Okorie-AI-sub005/internal/events"
	"github.com/okorie22/Okorie-AI-sub005/internal/fetcher"
	"github.com/okorie22/Okorie-AI-sub005/internal/monitor"
	"github.com/okorie22/Okorie-AI-sub005/internal/narrator"
	"github.com/okorie22/Okorie-AI-sub005/internal/scheduler"
	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

const liquidationAgentName = "liquidation_agent"

const liquidationSystemPrompt = `You are a crypto market analyst. Given liquidation data, reply in exactly three lines:
line 1: BUY, SELL, or NOTHING
line 2: a one-sentence reason
line 3: Confidence: NN%`

// Narrator produces free-text commentary for an alert. Satisfied by the
// narration client; nil disables commentary.
type Narrator interface {
	Generate(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// LiquidationOptions parameterise the spike monitor.
type LiquidationOptions struct {
	Symbols          []string
	Threshold        decimal.Decimal
	ComparisonWindow time.Duration
	SymbolDelay      time.Duration
}

// LiquidationAgent polls aggregated liquidation volume per symbol and raises a
// spike alert when either side grows past the threshold against the previous
// cycle.
type LiquidationAgent struct {
	opts      LiquidationOptions
	source    fetcher.LiquidationSource
	market    fetcher.MarketContextFetcher
	gate      *cooldown.Gate
	publisher events.Publisher
	audit     storage.AlertStore
	narrator  Narrator
	logger    zerolog.Logger

	mu       sync.Mutex
	previous map[string]storage.LiquidationTotals
}

// NewLiquidationAgent constructs the agent. The market fetcher, publisher,
// audit store, and narrator are all optional.
func NewLiquidationAgent(
	opts LiquidationOptions,
	source fetcher.LiquidationSource,
	market fetcher.MarketContextFetcher,
	gate *cooldown.Gate,
	publisher events.Publisher,
	audit storage.AlertStore,
	commentary Narrator,
	logger zerolog.Logger,
) *LiquidationAgent {
	return &LiquidationAgent{
		opts:      opts,
		source:    source,
		market:    market,
		gate:      gate,
		publisher: publisher,
		audit:     audit,
		narrator:  commentary,
		logger:    logger.With().Str("component", liquidationAgentName).Logger(),
		previous:  make(map[string]storage.LiquidationTotals),
	}
}

// Cycle runs one monitoring pass over all configured symbols. A failing symbol
// does not stop the rest; the first error is returned after the pass so the
// scheduler can apply backoff.
func (a *LiquidationAgent) Cycle(ctx context.Context) error {
	var firstErr error

	for i, symbol := range a.opts.Symbols {
		if i > 0 && a.opts.SymbolDelay > 0 {
			if err := scheduler.Sleep(ctx, a.opts.SymbolDelay); err != nil {
				return err
			}
		}

		if err := a.checkSymbol(ctx, symbol); err != nil {
			a.logger.Error().Err(err).Str("symbol", symbol).Msg("liquidation check failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("check %s: %w", symbol, err)
			}
		}
	}

	return firstErr
}

func (a *LiquidationAgent) checkSymbol(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	current, err := a.source.Totals(ctx, symbol, a.opts.ComparisonWindow)
	if err != nil {
		return fmt.Errorf("fetch totals: %w", err)
	}

	prev, hadPrev := a.swapPrevious(symbol, current)
	if !hadPrev {
		a.logger.Debug().Str("symbol", symbol).Msg("baseline recorded, no comparison yet")
		return nil
	}

	longBreach := monitor.SideBreached(prev.LongUSD, current.LongUSD, a.opts.Threshold)
	shortBreach := monitor.SideBreached(prev.ShortUSD, current.ShortUSD, a.opts.Threshold)
	if !longBreach && !shortBreach {
		return nil
	}

	longPct := sideChangePct(prev.LongUSD, current.LongUSD)
	shortPct := sideChangePct(prev.ShortUSD, current.ShortUSD)
	// Severity is graded from the combined magnitude; a side that collapsed
	// counts as much as one that spiked.
	totalPct := math.Abs(longPct) + math.Abs(shortPct)
	severity, confidence := events.GradeSpike(totalPct)

	if a.gate != nil && !a.gate.ShouldFire(ctx, symbol, events.TypeLiquidationSpike, time.Now().UTC()) {
		a.logger.Info().Str("symbol", symbol).Msg("spike suppressed by cooldown")
		return nil
	}

	payload := map[string]any{
		"long_usd":           current.LongUSD.String(),
		"short_usd":          current.ShortUSD.String(),
		"previous_long_usd":  prev.LongUSD.String(),
		"previous_short_usd": prev.ShortUSD.String(),
		"long_change_pct":    longPct,
		"short_change_pct":   shortPct,
		"long_breached":      longBreach,
		"short_breached":     shortBreach,
		"long_events":        current.LongEvents,
		"short_events":       current.ShortEvents,
		"exchanges":          current.Exchanges,
		"window_minutes":     a.opts.ComparisonWindow.Minutes(),
	}
	a.attachMarketContext(ctx, symbol, payload)
	a.attachCommentary(ctx, symbol, payload)

	event := events.NewAlertEvent(liquidationAgentName, symbol, events.TypeLiquidationSpike, severity, confidence, payload)

	a.logger.Warn().
		Str("symbol", symbol).
		Str("severity", string(severity)).
		Float64("long_change_pct", longPct).
		Float64("short_change_pct", shortPct).
		Msg("liquidation spike detected")

	return emit(ctx, a.publisher, a.audit, a.logger, event)
}

// swapPrevious installs current as the new baseline and returns the old one.
func (a *LiquidationAgent) swapPrevious(symbol string, current storage.LiquidationTotals) (storage.LiquidationTotals, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, ok := a.previous[symbol]
	a.previous[symbol] = current
	return prev, ok
}

func (a *LiquidationAgent) attachMarketContext(ctx context.Context, symbol string, payload map[string]any) {
	if a.market == nil {
		return
	}
	mc, err := a.market.FetchContext(ctx, symbol)
	if err != nil {
		// Context enriches the alert but never blocks it.
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("market context unavailable")
		return
	}
	payload["funding"] = mc.Funding.String()
	payload["mark_px"] = mc.MarkPx.String()
	payload["open_interest"] = mc.OpenInterest.String()
}

func (a *LiquidationAgent) attachCommentary(ctx context.Context, symbol string, payload map[string]any) {
	if a.narrator == nil {
		return
	}

	user := fmt.Sprintf(
		"Symbol: %s\nLong liquidations: $%v (%.1f%% change)\nShort liquidations: $%v (%.1f%% change)",
		symbol, payload["long_usd"], payload["long_change_pct"], payload["short_usd"], payload["short_change_pct"],
	)

	text, err := a.narrator.Generate(ctx, liquidationSystemPrompt, user)
	verdict := narrator.FallbackVerdict
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("narration failed, using fallback verdict")
	} else {
		verdict = narrator.ParseVerdict(text)
	}

	payload["verdict_action"] = verdict.Action
	payload["verdict_reason"] = verdict.Reason
	payload["verdict_confidence"] = verdict.Confidence
}

// sideChangePct returns the percentage-point change of one side, zero when the
// previous value is not comparable.
func sideChangePct(prev, current decimal.Decimal) float64 {
	cmp := monitor.Compare(prev, current, decimal.Zero)
	if !cmp.Comparable {
		return 0
	}
	pct, _ := cmp.PctChange.Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// emit publishes the event and records the audit copy. Both sinks are
// optional; an audit failure after a successful publish is logged, not
// returned, since the event is already out.
func emit(ctx context.Context, publisher events.Publisher, audit storage.AlertStore, logger zerolog.Logger, event events.AlertEvent) error {
	var publishErr error
	if publisher != nil {
		publishErr = publisher.Publish(ctx, event)
		if publishErr != nil {
			logger.Error().Err(publishErr).Str("event_type", event.EventType).Msg("publish failed")
		}
	}

	if audit != nil {
		record, err := toAlertRecord(event)
		if err == nil {
			err = audit.InsertAlert(ctx, record)
		}
		if err != nil {
			logger.Error().Err(err).Str("event_id", event.ID).Msg("alert audit write failed")
			if publisher == nil {
				return err
			}
		}
	}

	return publishErr
}

func toAlertRecord(event events.AlertEvent) (storage.AlertRecord, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return storage.AlertRecord{}, err
	}
	return storage.AlertRecord{
		EventID:     event.ID,
		SourceAgent: event.SourceAgent,
		Symbol:      event.Symbol,
		EventType:   event.EventType,
		Severity:    string(event.Severity),
		Confidence:  event.Confidence,
		Payload:     payload,
		EventTime:   event.Timestamp,
	}, nil
}
