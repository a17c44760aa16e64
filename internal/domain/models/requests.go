package models

// PairWindowRequest asks for the mirrored sample window of one instrument pair.
type PairWindowRequest struct {
	Pair string `query:"pair" validate:"required"`
}

// AutoTradingRequest toggles execution forwarding at runtime.
type AutoTradingRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// InstrumentLimitRequest adjusts the correlation instrument cap. A pairwise
// matrix needs at least two instruments.
type InstrumentLimitRequest struct {
	Limit int `json:"limit" validate:"required,min=2,max=256"`
}

// OutcomeRequest records the realized return of a past decision.
type OutcomeRequest struct {
	DecisionID     string  `json:"decision_id" validate:"required"`
	RealizedReturn float64 `json:"realized_return"`
}

// GateStateRequest asks for the gate state of one asset.
type GateStateRequest struct {
	Asset string `param:"asset" validate:"required"`
}
