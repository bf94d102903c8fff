package events

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event types emitted by the agents.
const (
	TypeLiquidationSpike = "liquidation_spike"
	TypeRateMove         = "rate_move"
	TypeRateArbitrage    = "rate_arbitrage"
)

// AlertEvent is the write-once record handed to the event bus on a threshold
// breach. Payload carries free-form numeric and string details.
type AlertEvent struct {
	ID          string         `json:"id"`
	SourceAgent string         `json:"source_agent"`
	Symbol      string         `json:"symbol"`
	EventType   string         `json:"event_type"`
	Severity    Severity       `json:"severity"`
	Confidence  float64        `json:"confidence"`
	Payload     map[string]any `json:"payload"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewAlertEvent stamps identity and time onto an alert.
func NewAlertEvent(sourceAgent, symbol, eventType string, severity Severity, confidence float64, payload map[string]any) AlertEvent {
	return AlertEvent{
		ID:          uuid.NewString(),
		SourceAgent: sourceAgent,
		Symbol:      symbol,
		EventType:   eventType,
		Severity:    severity,
		Confidence:  confidence,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}

// GradeSpike maps the combined absolute percentage change of a liquidation
// spike (long% + short%, percentage points) to a severity and confidence.
func GradeSpike(totalChangePct float64) (Severity, float64) {
	switch {
	case totalChangePct > 100:
		return SeverityCritical, minFloat(totalChangePct/200, 0.95)
	case totalChangePct > 50:
		return SeverityHigh, minFloat(totalChangePct/150, 0.85)
	default:
		return SeverityMedium, minFloat(totalChangePct/100, 0.75)
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
