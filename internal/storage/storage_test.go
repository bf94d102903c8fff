package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/cooldown"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("打开内存库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLiquidationTotalsSince(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewLiquidationStore(db)

	now := time.Now().UTC()
	events := []LiquidationEvent{
		{Symbol: "BTC", Exchange: "binance", Side: SideLong, USDValue: decimal.NewFromInt(60000), EventTime: now.Add(-5 * time.Minute)},
		{Symbol: "BTC", Exchange: "bybit", Side: SideLong, USDValue: decimal.NewFromInt(40000), EventTime: now.Add(-10 * time.Minute)},
		{Symbol: "BTC", Exchange: "binance", Side: SideShort, USDValue: decimal.NewFromInt(25000), EventTime: now.Add(-3 * time.Minute)},
		// Outside the window and a different symbol; both excluded.
		{Symbol: "BTC", Exchange: "okx", Side: SideLong, USDValue: decimal.NewFromInt(999999), EventTime: now.Add(-2 * time.Hour)},
		{Symbol: "ETH", Exchange: "binance", Side: SideLong, USDValue: decimal.NewFromInt(777), EventTime: now.Add(-1 * time.Minute)},
	}
	for _, event := range events {
		if err := store.InsertEvent(ctx, event); err != nil {
			t.Fatalf("插入失败: %v", err)
		}
	}

	totals, err := store.TotalsSince(ctx, "BTC", now.Add(-15*time.Minute))
	if err != nil {
		t.Fatalf("TotalsSince 失败: %v", err)
	}
	if totals.LongUSD.Cmp(decimal.NewFromInt(100000)) != 0 {
		t.Fatalf("long 总量应为 100000, 实际 %s", totals.LongUSD.String())
	}
	if totals.ShortUSD.Cmp(decimal.NewFromInt(25000)) != 0 {
		t.Fatalf("short 总量应为 25000, 实际 %s", totals.ShortUSD.String())
	}
	if totals.LongEvents != 2 || totals.ShortEvents != 1 {
		t.Fatalf("事件计数不正确: %+v", totals)
	}
	if totals.Exchanges != 2 {
		t.Fatalf("期望 2 个交易所, 实际 %d", totals.Exchanges)
	}
}

func TestTimeWindowSubSecondBoundary(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewLiquidationStore(db)

	// A whole-second cutoff against a half-second event: the stored TEXT
	// comparison only stays chronological with fixed-width fractions.
	since := time.Now().UTC().Truncate(time.Second)
	event := LiquidationEvent{
		Symbol:    "BTC",
		Exchange:  "binance",
		Side:      SideLong,
		USDValue:  decimal.NewFromInt(50000),
		EventTime: since.Add(500 * time.Millisecond),
	}
	if err := store.InsertEvent(ctx, event); err != nil {
		t.Fatalf("插入失败: %v", err)
	}

	totals, err := store.TotalsSince(ctx, "BTC", since)
	if err != nil {
		t.Fatalf("TotalsSince 失败: %v", err)
	}
	if totals.LongEvents != 1 {
		t.Fatalf("窗口边界后 500ms 的事件应被统计, 实际 %d", totals.LongEvents)
	}
	if totals.LongUSD.Cmp(decimal.NewFromInt(50000)) != 0 {
		t.Fatalf("long 总量应为 50000, 实际 %s", totals.LongUSD.String())
	}

	if err := store.DeleteEventsBefore(ctx, since); err != nil {
		t.Fatalf("DeleteEventsBefore 失败: %v", err)
	}
	totals, _ = store.TotalsSince(ctx, "BTC", since.Add(-time.Hour))
	if totals.LongEvents != 1 {
		t.Fatalf("晚于清理边界的事件不应被删除, 剩余 %d", totals.LongEvents)
	}
}

func TestLiquidationDeleteBefore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewLiquidationStore(db)

	now := time.Now().UTC()
	_ = store.InsertEvent(ctx, LiquidationEvent{Symbol: "BTC", Side: SideLong, USDValue: decimal.NewFromInt(1), EventTime: now.Add(-48 * time.Hour)})
	_ = store.InsertEvent(ctx, LiquidationEvent{Symbol: "BTC", Side: SideLong, USDValue: decimal.NewFromInt(2), EventTime: now})

	if err := store.DeleteEventsBefore(ctx, now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("DeleteEventsBefore 失败: %v", err)
	}

	totals, err := store.TotalsSince(ctx, "BTC", now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("TotalsSince 失败: %v", err)
	}
	if totals.LongEvents != 1 {
		t.Fatalf("旧事件应被清理, 剩余 %d", totals.LongEvents)
	}
}

func TestAlertAuditRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewAlertAuditStore(db)

	eventTime := time.Now().UTC().Add(-time.Minute)
	alert := AlertRecord{
		EventID:     "evt-1",
		SourceAgent: "liquidation_agent",
		Symbol:      "BTC",
		EventType:   "liquidation_spike",
		Severity:    "high",
		Confidence:  0.8,
		Payload:     []byte(`{"long_usd":"160000"}`),
		EventTime:   eventTime,
	}
	if err := store.InsertAlert(ctx, alert); err != nil {
		t.Fatalf("InsertAlert 失败: %v", err)
	}

	alerts, err := store.ListRecentAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentAlerts 失败: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("期望 1 条告警, 实际 %d", len(alerts))
	}

	got := alerts[0]
	if got.EventID != "evt-1" || got.Severity != "high" || got.Confidence != 0.8 {
		t.Fatalf("字段不一致: %+v", got)
	}
	if !got.EventTime.Equal(eventTime) {
		t.Fatalf("event_time 应保留纳秒精度: %v vs %v", got.EventTime, eventTime)
	}
	if string(got.Payload) != `{"long_usd":"160000"}` {
		t.Fatalf("payload 不一致: %s", got.Payload)
	}

	if err := store.DeleteAlertsBefore(ctx, eventTime.Add(time.Second)); err != nil {
		t.Fatalf("DeleteAlertsBefore 失败: %v", err)
	}
	alerts, _ = store.ListRecentAlerts(ctx, 10)
	if len(alerts) != 0 {
		t.Fatalf("过期告警应被清理, 剩余 %d", len(alerts))
	}
}

func TestCooldownStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewCooldownStore(db)

	key := cooldown.Key{Entity: "BTC", EventType: "liquidation_spike"}
	fired := time.Now().UTC().Add(-time.Hour)

	if err := store.Save(ctx, key, fired); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	// INSERT OR REPLACE keeps a single row per key.
	fired = fired.Add(30 * time.Minute)
	if err := store.Save(ctx, key, fired); err != nil {
		t.Fatalf("重复 Save 失败: %v", err)
	}

	tracked, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll 失败: %v", err)
	}
	if len(tracked) != 1 {
		t.Fatalf("期望 1 条记录, 实际 %d", len(tracked))
	}
	if !tracked[key].Equal(fired) {
		t.Fatalf("时间戳应被覆盖: %v vs %v", tracked[key], fired)
	}

	if err := store.DeleteBefore(ctx, fired.Add(time.Minute)); err != nil {
		t.Fatalf("DeleteBefore 失败: %v", err)
	}
	tracked, _ = store.LoadAll(ctx)
	if len(tracked) != 0 {
		t.Fatalf("过期记录应被删除, 剩余 %d", len(tracked))
	}
}

func TestRateHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewRateStore(db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		obs := RateObservation{
			Protocol:   "aave",
			RateType:   "lending",
			Rate:       decimal.NewFromFloat(0.05).Add(decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(100))),
			Source:     "test",
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.InsertObservation(ctx, obs); err != nil {
			t.Fatalf("InsertObservation 失败: %v", err)
		}
	}

	observations, err := store.ListBetween(ctx, "aave", "lending", base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("ListBetween 失败: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("窗口应为左闭右开, 期望 2, 实际 %d", len(observations))
	}
	if observations[0].Rate.Cmp(decimal.NewFromFloat(0.05)) != 0 {
		t.Fatalf("应按时间升序返回: %+v", observations[0])
	}

	if err := store.DeleteObservationsBefore(ctx, base.Add(time.Minute)); err != nil {
		t.Fatalf("DeleteObservationsBefore 失败: %v", err)
	}
	observations, _ = store.ListBetween(ctx, "aave", "lending", base, base.Add(time.Hour))
	if len(observations) != 2 {
		t.Fatalf("只应清理窗口前的观测, 剩余 %d", len(observations))
	}
}

func TestPositionStatusTransition(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewArbitrageStore(db)

	pos := Position{
		ID:           "pos-1",
		Protocol:     "aave",
		PositionType: SideBorrowing,
		AmountUSD:    decimal.NewFromInt(10000),
		Rate:         decimal.NewFromFloat(0.02),
		OpenedAt:     time.Now().UTC(),
		Status:       StatusActive,
	}
	if err := store.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition 失败: %v", err)
	}

	if err := store.UpdatePositionStatus(ctx, "pos-1", StatusClosed); err != nil {
		t.Fatalf("状态转换失败: %v", err)
	}
	if err := store.UpdatePositionStatus(ctx, "missing", StatusClosed); err == nil {
		t.Fatal("不存在的持仓应返回错误")
	}

	active, err := store.ListPositions(ctx, StatusActive)
	if err != nil {
		t.Fatalf("ListPositions 失败: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active 过滤应为空, 实际 %d", len(active))
	}

	closed, err := store.ListPositions(ctx, StatusClosed)
	if err != nil {
		t.Fatalf("ListPositions 失败: %v", err)
	}
	if len(closed) != 1 || closed[0].AmountUSD.Cmp(decimal.NewFromInt(10000)) != 0 {
		t.Fatalf("closed 持仓不正确: %+v", closed)
	}
}
