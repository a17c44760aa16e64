package models

import "time"

// WeightVector maps signal kinds to their scoring weights. Published as an
// immutable snapshot; mutating a published vector is a bug.
type WeightVector struct {
	Weights   map[Kind]float64
	Version   uint64
	UpdatedAt time.Time
}

// Weight returns the weight for kind, falling back to def for unknown kinds.
func (w *WeightVector) Weight(kind Kind, def float64) float64 {
	if w == nil {
		return def
	}
	if v, ok := w.Weights[kind]; ok {
		return v
	}
	return def
}

// Clone returns a deep copy suitable for building the next snapshot.
func (w *WeightVector) Clone() *WeightVector {
	out := &WeightVector{
		Weights:   make(map[Kind]float64, len(w.Weights)),
		Version:   w.Version,
		UpdatedAt: w.UpdatedAt,
	}
	for k, v := range w.Weights {
		out.Weights[k] = v
	}
	return out
}

// DefaultWeights mirrors the initial per-kind weights before any optimizer run.
func DefaultWeights() map[Kind]float64 {
	return map[Kind]float64{
		KindWhaleTrade:     0.25,
		KindListing:        1.0,
		KindNarrative:      0.15,
		KindLiquidityFlow:  0.20,
		KindSentiment:      0.15,
		KindDerivatives:    0.10,
		KindStablecoinRisk: 0.80,
		KindGasAnomaly:     0.05,
		KindPriceMove:      0.20,
	}
}
