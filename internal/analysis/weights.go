package analysis

import (
	"sync/atomic"
	"time"

	"TradePulse/internal/domain/models"
)

// WeightBook holds the current weight vector snapshot. Readers are wait-free;
// the optimizer swaps in complete snapshots and never mutates a published one.
type WeightBook struct {
	cur atomic.Pointer[models.WeightVector]
}

// NewWeightBook seeds the book. A nil initial vector falls back to defaults.
func NewWeightBook(initial *models.WeightVector) *WeightBook {
	b := &WeightBook{}
	if initial == nil {
		initial = &models.WeightVector{
			Weights:   models.DefaultWeights(),
			Version:   1,
			UpdatedAt: time.Now(),
		}
	}
	b.cur.Store(initial)
	return b
}

// Current returns the latest published snapshot.
func (b *WeightBook) Current() *models.WeightVector {
	return b.cur.Load()
}

// Publish atomically swaps in a new snapshot.
func (b *WeightBook) Publish(w *models.WeightVector) {
	b.cur.Store(w)
}
