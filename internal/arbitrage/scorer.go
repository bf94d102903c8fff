package arbitrage

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/okorie22/Okorie-AI-sub005/internal/ratestore"
)

// Opportunity is a borrow-low / lend-high pairing surfaced by the scorer.
// Derived, never persisted; recomputed fresh every scan.
type Opportunity struct {
	BorrowProtocol     string
	BorrowRate         decimal.Decimal
	LendProtocol       string
	LendRate           decimal.Decimal
	Spread             decimal.Decimal
	ProfitPotentialAPY decimal.Decimal
	RiskScore          float64
}

// Risk bucket scores. Unknown protocols default to medium.
const (
	riskLow        = 0.2
	riskMedium     = 0.5
	riskMediumHigh = 0.7
	riskHigh       = 0.9
)

var riskScores = map[string]float64{
	"low":         riskLow,
	"medium":      riskMedium,
	"medium_high": riskMediumHigh,
	"high":        riskHigh,
}

// RiskTable maps protocol name to its static risk bucket.
type RiskTable map[string]string

// Score returns the numeric risk for a protocol.
func (t RiskTable) Score(protocol string) float64 {
	if score, ok := riskScores[t[protocol]]; ok {
		return score
	}
	return riskMedium
}

// Scorer turns borrowing/lending snapshots into ranked opportunities.
type Scorer struct {
	minSpread decimal.Decimal
	risk      RiskTable
}

// NewScorer constructs a Scorer with a fractional minimum spread (0.03 = 3%).
func NewScorer(minSpread decimal.Decimal, risk RiskTable) *Scorer {
	if risk == nil {
		risk = RiskTable{}
	}
	return &Scorer{minSpread: minSpread, risk: risk}
}

// Score pairs every borrowing snapshot against every lending snapshot and
// keeps pairs whose spread meets the minimum, sorted by spread descending.
// Same-protocol pairs and missing rates simply produce no opportunity.
func (s *Scorer) Score(borrowing, lending []ratestore.Snapshot) []Opportunity {
	opportunities := make([]Opportunity, 0)

	for _, borrow := range borrowing {
		for _, lend := range lending {
			if borrow.Protocol == lend.Protocol {
				continue
			}

			spread := lend.Value.Sub(borrow.Value)
			if spread.LessThan(s.minSpread) {
				continue
			}

			opportunities = append(opportunities, Opportunity{
				BorrowProtocol:     borrow.Protocol,
				BorrowRate:         borrow.Value,
				LendProtocol:       lend.Protocol,
				LendRate:           lend.Value,
				Spread:             spread,
				ProfitPotentialAPY: spread,
				RiskScore:          s.PairRisk(borrow.Protocol, lend.Protocol),
			})
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].Spread.GreaterThan(opportunities[j].Spread)
	})
	return opportunities
}

// PairRisk averages both sides' bucket scores, clamped up to at least 0.7
// whenever either side alone exceeds 0.7.
func (s *Scorer) PairRisk(borrowProtocol, lendProtocol string) float64 {
	borrowRisk := s.risk.Score(borrowProtocol)
	lendRisk := s.risk.Score(lendProtocol)

	avg := (borrowRisk + lendRisk) / 2
	if borrowRisk > riskMediumHigh || lendRisk > riskMediumHigh {
		if avg < riskMediumHigh {
			avg = riskMediumHigh
		}
	}
	return avg
}
