package arbitrage

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/ratestore"
)

func snap(protocol, value string) ratestore.Snapshot {
	v, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return ratestore.Snapshot{Protocol: protocol, Value: v, CapturedAt: time.Now()}
}

func TestScoreIncludesExactMinSpread(t *testing.T) {
	s := NewScorer(decimal.NewFromFloat(0.03), nil)

	opps := s.Score(
		[]ratestore.Snapshot{snap("aave", "0.02")},
		[]ratestore.Snapshot{snap("compound", "0.05")},
	)
	if len(opps) != 1 {
		t.Fatalf("spread 恰好等于 min_spread 应入选, got %d", len(opps))
	}
	if opps[0].Spread.Cmp(decimal.NewFromFloat(0.03)) != 0 {
		t.Fatalf("期望 spread 0.03, 实际 %s", opps[0].Spread.String())
	}
}

func TestScoreRejectsBelowMinSpread(t *testing.T) {
	s := NewScorer(decimal.NewFromFloat(0.03), nil)

	opps := s.Score(
		[]ratestore.Snapshot{snap("aave", "0.03")},
		[]ratestore.Snapshot{snap("compound", "0.05")},
	)
	if len(opps) != 0 {
		t.Fatalf("spread 0.02 不应入选, got %d", len(opps))
	}
}

func TestScoreSkipsSameProtocol(t *testing.T) {
	s := NewScorer(decimal.NewFromFloat(0.01), nil)

	opps := s.Score(
		[]ratestore.Snapshot{snap("aave", "0.01")},
		[]ratestore.Snapshot{snap("aave", "0.10")},
	)
	if len(opps) != 0 {
		t.Fatal("同协议自配对应被跳过")
	}
}

func TestScoreSortsBySpreadDescending(t *testing.T) {
	s := NewScorer(decimal.NewFromFloat(0.01), nil)

	opps := s.Score(
		[]ratestore.Snapshot{snap("aave", "0.02"), snap("maker", "0.01")},
		[]ratestore.Snapshot{snap("compound", "0.06")},
	)
	if len(opps) != 2 {
		t.Fatalf("期望 2 个机会, got %d", len(opps))
	}
	if opps[0].BorrowProtocol != "maker" {
		t.Fatalf("最大 spread 应排第一, got %s", opps[0].BorrowProtocol)
	}
}

func TestPairRiskAverage(t *testing.T) {
	s := NewScorer(decimal.Zero, RiskTable{"aave": "low", "compound": "medium"})
	if got := s.PairRisk("aave", "compound"); math.Abs(got-0.35) > 1e-9 {
		t.Fatalf("期望平均风险 0.35, 实际 %v", got)
	}
}

func TestPairRiskClampedByHighSide(t *testing.T) {
	s := NewScorer(decimal.Zero, RiskTable{"aave": "low", "degen": "high"})
	if got := s.PairRisk("aave", "degen"); got != 0.7 {
		t.Fatalf("一侧为 high 时风险应钳制到 0.7, 实际 %v", got)
	}
}

func TestPairRiskUnknownDefaultsMedium(t *testing.T) {
	s := NewScorer(decimal.Zero, nil)
	if got := s.PairRisk("mystery", "unknown"); got != 0.5 {
		t.Fatalf("未知协议应按 medium 计, 实际 %v", got)
	}
}
