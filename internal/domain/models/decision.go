package models

import "time"

// Action is the direction of a trading decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Directional reports whether the action is BUY or SELL.
func (a Action) Directional() bool { return a == ActionBuy || a == ActionSell }

// CompositeScore is the weighted, correlation-adjusted aggregate of an asset's
// live signals at one aggregation tick. Recomputed, never mutated.
type CompositeScore struct {
	AssetID       string
	Score         float64
	Contributing  []string            // fingerprints of the signals that entered the score
	KindShares    map[Kind]float64    // signed per-kind contribution share, for outcome attribution
	ComputedAt    time.Time
}

// Decision is an append-only record of a gate verdict for one asset.
type Decision struct {
	ID                 string
	AssetID            string
	Action             Action
	Score              float64
	ThresholdUsed      float64
	AutoTradingEnabled bool
	KindShares         map[Kind]float64
	Timestamp          time.Time
}

// Outcome is the externally evaluated realized return of a past decision.
type Outcome struct {
	DecisionID     string
	RealizedReturn float64
	EvaluatedAt    time.Time
}
