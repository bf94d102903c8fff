package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/agent"
	"github.com/okorie22/Okorie-AI-sub005/internal/arbitrage"
	"github.com/okorie22/Okorie-AI-sub005/internal/config"
	"github.com/okorie22/Okorie-AI-sub005/internal/cooldown"
	"github.com/okorie22/Okorie-AI-sub005/internal/events"
	"github.com/okorie22/Okorie-AI-sub005/internal/fetcher"
	"github.com/okorie22/Okorie-AI-sub005/internal/narrator"
	"github.com/okorie22/Okorie-AI-sub005/internal/ratestore"
	"github.com/okorie22/Okorie-AI-sub005/internal/scheduler"
	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openDB(ctx context.Context) (*storage.DB, func(), error) {
	db, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

// newPublisher returns the Redis event bus, or nil when alerting is disabled.
func (a *App) newPublisher() *events.RedisPublisher {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	redis := a.Config.Alerting.Redis
	return events.NewRedisPublisher(redis.Addr, redis.Password, redis.DB, a.Config.Alerting.Channel, a.Logger)
}

// newNarrator returns the AI commentary client, or nil when disabled.
func (a *App) newNarrator() agent.Narrator {
	if !a.Config.Narrator.Enabled {
		return nil
	}
	cfg := a.Config.Narrator
	return narrator.NewClient(narrator.Options{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.RequestTimeout,
	}, a.Logger)
}

func (a *App) newGate(ctx context.Context, db *storage.DB) *cooldown.Gate {
	return cooldown.New(ctx, a.Config.Alerting.Cooldown, storage.NewCooldownStore(db), a.Logger)
}

// ratesFetchers routes each configured protocol to its data source: a REST
// endpoint when rates_url is set, the on-chain reader when only a contract
// address is given.
func (a *App) ratesFetchers() map[string]fetcher.ProtocolRatesFetcher {
	endpoints := make(map[string]string)
	contracts := make(map[string]string)
	for name, proto := range a.Config.Rates.Protocols {
		if proto.RatesURL != "" {
			endpoints[name] = proto.RatesURL
			continue
		}
		if proto.Contract != "" {
			contracts[name] = proto.Contract
		}
	}

	rest := fetcher.NewDeFiRates(fetcher.DeFiRatesOptions{
		Endpoints: endpoints,
		Timeout:   a.Config.Rates.RequestTimeout,
	}, a.Logger)
	onchain := fetcher.NewOnChain(fetcher.OnChainOptions{
		RPCURL:    a.Config.Ethereum.RPCURL,
		Contracts: contracts,
		Timeout:   a.Config.Ethereum.RequestTimeout,
	}, a.Logger)

	fetchers := make(map[string]fetcher.ProtocolRatesFetcher)
	for name := range endpoints {
		fetchers[name] = rest
	}
	for name := range contracts {
		fetchers[name] = onchain
	}
	return fetchers
}

func (a *App) riskTable() arbitrage.RiskTable {
	table := make(arbitrage.RiskTable)
	for name, proto := range a.Config.Rates.Protocols {
		if proto.RiskLevel != "" {
			table[name] = proto.RiskLevel
		}
	}
	return table
}

func (a *App) newScorer() *arbitrage.Scorer {
	return arbitrage.NewScorer(decimal.NewFromFloat(a.Config.Arbitrage.MinSpread), a.riskTable())
}

// newRatesAgent wires the rate agent. The audit sink is explicit so one-shot
// CLI scans can opt out of writing alert rows.
func (a *App) newRatesAgent(db *storage.DB, gate *cooldown.Gate, publisher events.Publisher, audit storage.AlertStore) (*agent.RatesAgent, *ratestore.Store) {
	cache := ratestore.New(a.Config.Rates.HistoryPoints)

	var history storage.RateHistoryStore
	if db != nil {
		history = storage.NewRateStore(db)
	}

	ag := agent.NewRatesAgent(agent.RatesOptions{
		CacheTTL:      a.Config.Rates.CacheTTL,
		MoveThreshold: decimal.NewFromFloat(a.Config.Rates.MoveThreshold),
		NotionalUSD:   decimal.NewFromFloat(a.Config.Arbitrage.NotionalUSD),
	}, a.ratesFetchers(), cache, history, a.newScorer(), gate, publisher, audit, a.Logger)

	return ag, cache
}

func (a *App) newLiquidationAgent(db *storage.DB, gate *cooldown.Gate, publisher events.Publisher) *agent.LiquidationAgent {
	source := fetcher.NewStorageLiquidations(storage.NewLiquidationStore(db), a.Logger)
	market := fetcher.NewHyperliquid(fetcher.HyperliquidOptions{
		Timeout: a.Config.Rates.RequestTimeout,
	}, a.Logger)

	return agent.NewLiquidationAgent(agent.LiquidationOptions{
		Symbols:          a.Config.Liquidation.Symbols,
		Threshold:        decimal.NewFromFloat(a.Config.Liquidation.Threshold),
		ComparisonWindow: a.Config.Liquidation.ComparisonWindow,
		SymbolDelay:      a.Config.Scheduler.SymbolDelay,
	}, source, market, gate, publisher, storage.NewAlertAuditStore(db), a.newNarrator(), a.Logger)
}

func (a *App) newScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		ErrorBackoff: a.Config.Scheduler.ErrorBackoff,
	}, a.Logger)
}

// Run executes the long-running liquidation monitoring loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	publisher := a.newPublisher()
	if publisher == nil {
		a.Logger.Warn().Msg("alerting disabled; events will only be written to the local audit trail")
	} else {
		defer publisher.Close()
	}

	gate := a.newGate(ctx, db)
	liq := a.newLiquidationAgent(db, gate, asPublisher(publisher))
	liqStore := storage.NewLiquidationStore(db)

	a.Logger.Info().
		Strs("symbols", a.Config.Liquidation.Symbols).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting liquidation monitor")

	err = a.newScheduler().Run(ctx, func(ctx context.Context, cycle time.Time) error {
		defer gate.Purge(ctx, time.Now().UTC())
		if retention := a.Config.Liquidation.Retention; retention > 0 {
			if err := liqStore.DeleteEventsBefore(ctx, time.Now().UTC().Add(-retention)); err != nil {
				a.Logger.Warn().Err(err).Msg("liquidation history trim failed")
			}
		}
		a.applyRetention(ctx, db)
		return liq.Cycle(ctx)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("liquidation monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("liquidation monitor stopped")
	return nil
}

// RunRates executes the long-running rate monitoring and arbitrage loop.
func (a *App) RunRates(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	publisher := a.newPublisher()
	if publisher == nil {
		a.Logger.Warn().Msg("alerting disabled; events will only be written to the local audit trail")
	} else {
		defer publisher.Close()
	}

	gate := a.newGate(ctx, db)
	rates, _ := a.newRatesAgent(db, gate, asPublisher(publisher), storage.NewAlertAuditStore(db))

	a.Logger.Info().
		Int("protocols", len(a.Config.Rates.Protocols)).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting rate monitor")

	err = a.newScheduler().Run(ctx, func(ctx context.Context, cycle time.Time) error {
		defer gate.Purge(ctx, time.Now().UTC())
		a.applyRetention(ctx, db)
		return rates.Cycle(ctx)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("rate monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("rate monitor stopped")
	return nil
}

// applyRetention trims the alert audit trail and rate history to the
// configured database retention. Failures are logged; the cycle proceeds.
func (a *App) applyRetention(ctx context.Context, db *storage.DB) {
	retention := a.Config.Database.Retention
	if retention <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-retention)
	if err := storage.NewAlertAuditStore(db).DeleteAlertsBefore(ctx, cutoff); err != nil {
		a.Logger.Warn().Err(err).Msg("alert audit trim failed")
	}
	if err := storage.NewRateStore(db).DeleteObservationsBefore(ctx, cutoff); err != nil {
		a.Logger.Warn().Err(err).Msg("rate history trim failed")
	}
}

// asPublisher converts the concrete publisher to the interface without the
// typed-nil trap.
func asPublisher(p *events.RedisPublisher) events.Publisher {
	if p == nil {
		return nil
	}
	return p
}

// ExportOptions hold parameters for exporting rate history.
type ExportOptions struct {
	Protocol  string
	RateType  string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ArbOptions configure the one-shot arbitrage scan.
type ArbOptions struct {
	Execute   bool
	AmountUSD float64
}

// PositionsOptions configure the positions command.
type PositionsOptions struct {
	Status      string
	CloseID     string
	CloseStatus string
	HistoryDays int
}
