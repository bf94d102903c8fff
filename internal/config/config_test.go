package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: marketwatcher\n"))
	if err != nil {
		t.Fatalf("加载默认配置失败: %v", err)
	}

	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Fatalf("默认轮询间隔应为 5m, 实际 %v", cfg.Scheduler.Interval)
	}
	if cfg.Liquidation.Threshold != 0.5 {
		t.Fatalf("默认阈值应为 0.5, 实际 %v", cfg.Liquidation.Threshold)
	}
	if cfg.Liquidation.ComparisonWindow != 15*time.Minute {
		t.Fatalf("默认比较窗口应为 15m, 实际 %v", cfg.Liquidation.ComparisonWindow)
	}
	if cfg.Liquidation.Retention != 72*time.Hour {
		t.Fatalf("默认保留期应为 72h, 实际 %v", cfg.Liquidation.Retention)
	}
	if cfg.Logging.Service != "marketwatcher" {
		t.Fatalf("默认 service 标识不正确: %s", cfg.Logging.Service)
	}
	if cfg.Alerting.Cooldown != 24*time.Hour {
		t.Fatalf("默认冷却窗口应为 24h, 实际 %v", cfg.Alerting.Cooldown)
	}
	if cfg.Arbitrage.MinSpread != 0.03 {
		t.Fatalf("默认 min_spread 应为 0.03, 实际 %v", cfg.Arbitrage.MinSpread)
	}
	if len(cfg.Liquidation.Symbols) != 3 {
		t.Fatalf("默认 symbols 应为 3 个, 实际 %v", cfg.Liquidation.Symbols)
	}
	if cfg.Alerting.Channel != "market_alert" {
		t.Fatalf("默认频道不正确: %s", cfg.Alerting.Channel)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
scheduler:
  interval: 1m
liquidation:
  threshold: 0.8
  symbols:
    - BTC
rates:
  protocols:
    aave:
      risk_level: low
      rates_url: https://example.com/aave
    degen:
      risk_level: high
      contract: "0xabc"
`))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Scheduler.Interval != time.Minute {
		t.Fatalf("interval 覆盖失败: %v", cfg.Scheduler.Interval)
	}
	if cfg.Liquidation.Threshold != 0.8 {
		t.Fatalf("threshold 覆盖失败: %v", cfg.Liquidation.Threshold)
	}
	if len(cfg.Rates.Protocols) != 2 {
		t.Fatalf("期望 2 个协议, 实际 %d", len(cfg.Rates.Protocols))
	}
	if cfg.Rates.Protocols["degen"].Contract != "0xabc" {
		t.Fatalf("contract 解析失败: %+v", cfg.Rates.Protocols["degen"])
	}
}

func TestValidateRejectsBadRiskLevel(t *testing.T) {
	_, err := Load(writeConfig(t, `
rates:
  protocols:
    shady:
      risk_level: extreme
`))
	if err == nil {
		t.Fatal("非法 risk_level 应被拒绝")
	}
}

func TestValidateRequiresRedisAddrWhenAlerting(t *testing.T) {
	_, err := Load(writeConfig(t, `
alerting:
  enabled: true
  redis:
    addr: ""
`))
	if err == nil {
		t.Fatal("启用告警但缺少 redis addr 应报错")
	}
}

func TestValidateRequiresNarratorKey(t *testing.T) {
	_, err := Load(writeConfig(t, `
narrator:
  enabled: true
`))
	if err == nil {
		t.Fatal("启用 narrator 但缺少 api_key 应报错")
	}
}

func TestValidateRejectsZeroInterval(t *testing.T) {
	_, err := Load(writeConfig(t, `
scheduler:
  interval: 0s
`))
	if err == nil {
		t.Fatal("零轮询间隔应被拒绝")
	}
}

func TestValidateRejectsShortRetention(t *testing.T) {
	_, err := Load(writeConfig(t, `
liquidation:
  comparison_window: 15m
  retention: 5m
`))
	if err == nil {
		t.Fatal("短于比较窗口的保留期应被拒绝")
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 123}}
	if got := cfg.ResolveMaxPoints(0); got != 123 {
		t.Fatalf("未覆盖时应取配置值, 实际 %d", got)
	}
	if got := cfg.ResolveMaxPoints(7); got != 7 {
		t.Fatalf("CLI 覆盖应优先, 实际 %d", got)
	}
}
