package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/cooldown"
	"github.com/okorie22/Okorie-AI-sub005/internal/events"
	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.AlertEvent
}

func (c *capturePublisher) Publish(ctx context.Context, event events.AlertEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) published() []events.AlertEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.AlertEvent, len(c.events))
	copy(out, c.events)
	return out
}

type sequenceSource struct {
	mu     sync.Mutex
	totals []storage.LiquidationTotals
	calls  int
}

func (s *sequenceSource) Totals(ctx context.Context, symbol string, window time.Duration) (storage.LiquidationTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.totals) {
		idx = len(s.totals) - 1
	}
	s.calls++
	totals := s.totals[idx]
	totals.Symbol = symbol
	return totals, nil
}

func usd(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func newTestLiquidationAgent(source *sequenceSource, pub *capturePublisher, gate *cooldown.Gate) *LiquidationAgent {
	return NewLiquidationAgent(LiquidationOptions{
		Symbols:          []string{"BTC"},
		Threshold:        decimal.NewFromFloat(0.5),
		ComparisonWindow: 15 * time.Minute,
	}, source, nil, gate, pub, nil, nil, zerolog.Nop())
}

func TestLiquidationSpikeFiresOnce(t *testing.T) {
	ctx := context.Background()
	source := &sequenceSource{totals: []storage.LiquidationTotals{
		{LongUSD: usd(100000), ShortUSD: usd(100000)},
		{LongUSD: usd(160000), ShortUSD: usd(160000)},
		{LongUSD: usd(400000), ShortUSD: usd(400000)},
	}}
	pub := &capturePublisher{}
	gate := cooldown.New(ctx, 24*time.Hour, nil, zerolog.Nop())
	agent := newTestLiquidationAgent(source, pub, gate)

	// First cycle only seeds the baseline.
	if err := agent.Cycle(ctx); err != nil {
		t.Fatalf("首个周期失败: %v", err)
	}
	if len(pub.published()) != 0 {
		t.Fatal("首个周期不应触发告警")
	}

	// Second cycle breaches the threshold.
	if err := agent.Cycle(ctx); err != nil {
		t.Fatalf("第二个周期失败: %v", err)
	}
	published := pub.published()
	if len(published) != 1 {
		t.Fatalf("期望 1 条告警, 实际 %d", len(published))
	}

	event := published[0]
	if event.EventType != events.TypeLiquidationSpike {
		t.Fatalf("事件类型不正确: %s", event.EventType)
	}
	if event.Symbol != "BTC" {
		t.Fatalf("symbol 不正确: %s", event.Symbol)
	}
	// 60% per side means 120 combined, which grades critical at 0.6.
	if event.Severity != events.SeverityCritical {
		t.Fatalf("期望 critical, 实际 %s", event.Severity)
	}
	if event.Confidence != 0.6 {
		t.Fatalf("期望置信度 0.6, 实际 %v", event.Confidence)
	}
	if event.Payload["long_breached"] != true {
		t.Fatalf("payload 应标记 long 突破: %#v", event.Payload)
	}

	// Third cycle breaches again but sits inside the cooldown window.
	if err := agent.Cycle(ctx); err != nil {
		t.Fatalf("第三个周期失败: %v", err)
	}
	if len(pub.published()) != 1 {
		t.Fatal("冷却窗口内不应重复告警")
	}
}

func TestLiquidationSeveritySumsAbsoluteChanges(t *testing.T) {
	ctx := context.Background()
	// Long +150%, short -70%: combined magnitude is 220, critical at the cap.
	source := &sequenceSource{totals: []storage.LiquidationTotals{
		{LongUSD: usd(100000), ShortUSD: usd(100000)},
		{LongUSD: usd(250000), ShortUSD: usd(30000)},
	}}
	pub := &capturePublisher{}
	gate := cooldown.New(ctx, 24*time.Hour, nil, zerolog.Nop())
	agent := newTestLiquidationAgent(source, pub, gate)

	_ = agent.Cycle(ctx)
	if err := agent.Cycle(ctx); err != nil {
		t.Fatalf("第二个周期失败: %v", err)
	}

	published := pub.published()
	if len(published) != 1 {
		t.Fatalf("期望 1 条告警, 实际 %d", len(published))
	}
	if published[0].Severity != events.SeverityCritical {
		t.Fatalf("多空合计 220%% 应为 critical, 实际 %s", published[0].Severity)
	}
	if published[0].Confidence != 0.95 {
		t.Fatalf("期望置信度封顶 0.95, 实际 %v", published[0].Confidence)
	}
}

func TestLiquidationConfidenceNeverNegative(t *testing.T) {
	ctx := context.Background()
	// Long +60%, short -80%: the collapse must not cancel the spike.
	source := &sequenceSource{totals: []storage.LiquidationTotals{
		{LongUSD: usd(100000), ShortUSD: usd(100000)},
		{LongUSD: usd(160000), ShortUSD: usd(20000)},
	}}
	pub := &capturePublisher{}
	gate := cooldown.New(ctx, 24*time.Hour, nil, zerolog.Nop())
	agent := newTestLiquidationAgent(source, pub, gate)

	_ = agent.Cycle(ctx)
	if err := agent.Cycle(ctx); err != nil {
		t.Fatalf("第二个周期失败: %v", err)
	}

	published := pub.published()
	if len(published) != 1 {
		t.Fatalf("期望 1 条告警, 实际 %d", len(published))
	}
	if published[0].Confidence <= 0 {
		t.Fatalf("置信度不应为负或零: %v", published[0].Confidence)
	}
	if published[0].Severity != events.SeverityCritical {
		t.Fatalf("多空合计 140%% 应为 critical, 实际 %s", published[0].Severity)
	}
	if published[0].Confidence != 0.7 {
		t.Fatalf("期望置信度 0.7, 实际 %v", published[0].Confidence)
	}
}

func TestLiquidationBelowThresholdSilent(t *testing.T) {
	ctx := context.Background()
	source := &sequenceSource{totals: []storage.LiquidationTotals{
		{LongUSD: usd(100000), ShortUSD: usd(100000)},
		{LongUSD: usd(140000), ShortUSD: usd(90000)},
	}}
	pub := &capturePublisher{}
	gate := cooldown.New(ctx, 24*time.Hour, nil, zerolog.Nop())
	agent := newTestLiquidationAgent(source, pub, gate)

	_ = agent.Cycle(ctx)
	_ = agent.Cycle(ctx)

	if len(pub.published()) != 0 {
		t.Fatal("40% 增长不应突破 50% 阈值")
	}
}

func TestLiquidationZeroBaselineNeverFires(t *testing.T) {
	ctx := context.Background()
	source := &sequenceSource{totals: []storage.LiquidationTotals{
		{LongUSD: decimal.Zero, ShortUSD: decimal.Zero},
		{LongUSD: usd(500000), ShortUSD: usd(500000)},
	}}
	pub := &capturePublisher{}
	gate := cooldown.New(ctx, 24*time.Hour, nil, zerolog.Nop())
	agent := newTestLiquidationAgent(source, pub, gate)

	_ = agent.Cycle(ctx)
	_ = agent.Cycle(ctx)

	if len(pub.published()) != 0 {
		t.Fatal("基线为 0 时首次放量不应告警")
	}
}

func TestLiquidationAuditTrail(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("打开内存库失败: %v", err)
	}
	defer db.Close()

	source := &sequenceSource{totals: []storage.LiquidationTotals{
		{LongUSD: usd(100000), ShortUSD: usd(100000)},
		{LongUSD: usd(200000), ShortUSD: usd(200000)},
	}}
	audit := storage.NewAlertAuditStore(db)
	gate := cooldown.New(ctx, 24*time.Hour, storage.NewCooldownStore(db), zerolog.Nop())

	agent := NewLiquidationAgent(LiquidationOptions{
		Symbols:          []string{"BTC"},
		Threshold:        decimal.NewFromFloat(0.5),
		ComparisonWindow: 15 * time.Minute,
	}, source, nil, gate, nil, audit, nil, zerolog.Nop())

	_ = agent.Cycle(ctx)
	if err := agent.Cycle(ctx); err != nil {
		t.Fatalf("第二个周期失败: %v", err)
	}

	alerts, err := audit.ListRecentAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentAlerts 失败: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("审计表应有 1 条记录, 实际 %d", len(alerts))
	}
	if alerts[0].SourceAgent != "liquidation_agent" {
		t.Fatalf("source_agent 不正确: %s", alerts[0].SourceAgent)
	}
}
