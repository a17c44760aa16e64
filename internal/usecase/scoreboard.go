package usecase

import (
	"sync"
	"time"

	"TradePulse/internal/domain/models"
)

type boardEntry struct {
	score float64
	at    time.Time
}

// ScoreBoard tracks the latest composite score per asset. The aggregator
// reads partner trends from it; the control surface reads current scores.
type ScoreBoard struct {
	mu      sync.RWMutex
	entries map[string]boardEntry

	// scores inside (-epsilon, +epsilon) count as flat, not a trend
	epsilon float64
	maxAge  time.Duration
}

// NewScoreBoard creates a score board. Entries older than maxAge carry no trend.
func NewScoreBoard(epsilon float64, maxAge time.Duration) *ScoreBoard {
	if epsilon <= 0 {
		epsilon = 0.05
	}
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &ScoreBoard{
		entries: make(map[string]boardEntry),
		epsilon: epsilon,
		maxAge:  maxAge,
	}
}

// Update records a freshly computed composite score.
func (b *ScoreBoard) Update(s *models.CompositeScore) {
	b.mu.Lock()
	b.entries[s.AssetID] = boardEntry{score: s.Score, at: s.ComputedAt}
	b.mu.Unlock()
}

// Trend returns +1 when the asset is currently trending up, -1 when down,
// and 0 when flat, unknown, or stale.
func (b *ScoreBoard) Trend(assetID string, now time.Time) float64 {
	b.mu.RLock()
	e, ok := b.entries[assetID]
	b.mu.RUnlock()
	if !ok || now.Sub(e.at) > b.maxAge {
		return 0
	}
	switch {
	case e.score >= b.epsilon:
		return 1
	case e.score <= -b.epsilon:
		return -1
	default:
		return 0
	}
}

// Latest returns the current score per asset.
func (b *ScoreBoard) Latest() map[string]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]float64, len(b.entries))
	for id, e := range b.entries {
		out[id] = e.score
	}
	return out
}
