package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/analysis"
	"TradePulse/internal/domain/models"
	applogger "TradePulse/pkg/logger"
)

type stubMetrics struct {
	signals   int
	dupes     int
	drops     int
	stale     int
	decisions map[string]int
	abandoned int
	errs      int
}

func (m *stubMetrics) RecordSignal(string, string) { m.signals++ }
func (m *stubMetrics) RecordDuplicate(string)      { m.dupes++ }
func (m *stubMetrics) RecordOverflowDrop(string)   { m.drops++ }
func (m *stubMetrics) RecordStale(string)          { m.stale++ }
func (m *stubMetrics) RecordDecision(action string) {
	if m.decisions == nil {
		m.decisions = make(map[string]int)
	}
	m.decisions[action]++
}
func (m *stubMetrics) RecordTickAbandoned(string)    { m.abandoned++ }
func (m *stubMetrics) RecordError(string)            { m.errs++ }
func (m *stubMetrics) RecordLatency(string, float64) {}
func (m *stubMetrics) RecordScore(string, float64)   {}

func newTestLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func sig(asset string, kind models.Kind, value, conf float64, ts time.Time) *models.Signal {
	return &models.Signal{
		Source:     "test",
		AssetID:    asset,
		Kind:       kind,
		Value:      value,
		Confidence: conf,
		Timestamp:  ts,
	}
}

func newAggregator(t *testing.T, cfg AggregatorConfig, weights map[models.Kind]float64, m *stubMetrics) (*Aggregator, time.Time) {
	t.Helper()
	book := analysis.NewWeightBook(&models.WeightVector{Weights: weights, Version: 1})
	agg := NewAggregator(cfg, nil, book, nil, nil, newTestLogger(t))
	if m != nil {
		agg.metrics = m
	}
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	agg.nowFn = func() time.Time { return now }
	return agg, now
}

func TestComputeWeightedComposite(t *testing.T) {
	agg, now := newAggregator(t, AggregatorConfig{}, map[models.Kind]float64{
		models.KindWhaleTrade: 0.6,
		models.KindSentiment:  0.4,
	}, nil)

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.8, 1, now),
		sig("BTC", models.KindSentiment, -0.2, 1, now),
	})
	require.NotNil(t, cs)

	// 0.6*0.8 + 0.4*(-0.2) = 0.40
	assert.InDelta(t, 0.40, cs.Score, 1e-9)
	assert.Equal(t, "BTC", cs.AssetID)
	assert.Len(t, cs.Contributing, 2)
}

func TestComputeAveragesSameKind(t *testing.T) {
	agg, now := newAggregator(t, AggregatorConfig{}, map[models.Kind]float64{
		models.KindWhaleTrade: 1.0,
	}, nil)

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.8, 1, now),
		sig("BTC", models.KindWhaleTrade, 0.4, 1, now.Add(-time.Minute)),
	})
	require.NotNil(t, cs)

	// two whale reports average to 0.6, they never overwrite each other
	assert.InDelta(t, 0.6, cs.Score, 1e-9)
}

func TestComputeConfidenceScalesContribution(t *testing.T) {
	agg, now := newAggregator(t, AggregatorConfig{}, map[models.Kind]float64{
		models.KindSentiment: 1.0,
	}, nil)

	cs := agg.Compute("ETH", []*models.Signal{
		sig("ETH", models.KindSentiment, 0.8, 0.5, now),
	})
	require.NotNil(t, cs)
	assert.InDelta(t, 0.4, cs.Score, 1e-9)
}

func TestComputeExcludesStaleSignals(t *testing.T) {
	m := &stubMetrics{}
	agg, now := newAggregator(t, AggregatorConfig{StalenessWindow: 5 * time.Minute}, map[models.Kind]float64{
		models.KindWhaleTrade: 1.0,
		models.KindSentiment:  1.0,
	}, m)

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.5, 1, now),
		sig("BTC", models.KindSentiment, -0.9, 1, now.Add(-10*time.Minute)),
	})
	require.NotNil(t, cs)

	assert.InDelta(t, 0.5, cs.Score, 1e-9, "stale sentiment must not enter the score")
	assert.Equal(t, 1, m.stale)
	assert.Len(t, cs.Contributing, 1)
}

func TestComputeNilWhenNothingLive(t *testing.T) {
	agg, now := newAggregator(t, AggregatorConfig{StalenessWindow: time.Minute}, map[models.Kind]float64{
		models.KindWhaleTrade: 1.0,
	}, nil)

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.5, 1, now.Add(-time.Hour)),
	})
	assert.Nil(t, cs)

	assert.Nil(t, agg.Compute("BTC", nil))
}

func TestComputeUnknownKindUsesDefaultWeight(t *testing.T) {
	agg, now := newAggregator(t, AggregatorConfig{DefaultWeight: 0.1}, map[models.Kind]float64{}, nil)

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindGasAnomaly, 1.0, 1, now),
	})
	require.NotNil(t, cs)
	assert.InDelta(t, 0.1, cs.Score, 1e-9)
}

func TestComputeConfirmationBoost(t *testing.T) {
	cfg := AggregatorConfig{ConfirmationBoost: 1.25}
	agg, now := newAggregator(t, cfg, map[models.Kind]float64{
		models.KindWhaleTrade: 0.4,
		models.KindSentiment:  0.4,
	}, nil)

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.5, 1, now),
		sig("BTC", models.KindSentiment, 0.5, 1, now),
	})
	require.NotNil(t, cs)

	// both kinds point the same way: (0.2 + 0.2) * 1.25
	assert.InDelta(t, 0.5, cs.Score, 1e-9)
}

func TestComputeNoBoostOnDisagreement(t *testing.T) {
	cfg := AggregatorConfig{ConfirmationBoost: 1.25}
	agg, now := newAggregator(t, cfg, map[models.Kind]float64{
		models.KindWhaleTrade: 0.6,
		models.KindSentiment:  0.4,
	}, nil)

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.8, 1, now),
		sig("BTC", models.KindSentiment, -0.2, 1, now),
	})
	require.NotNil(t, cs)
	assert.InDelta(t, 0.40, cs.Score, 1e-9)
}

func TestComputeScoreClampedToUnitInterval(t *testing.T) {
	agg, now := newAggregator(t, AggregatorConfig{}, map[models.Kind]float64{
		models.KindListing:    1.0,
		models.KindWhaleTrade: 1.0,
	}, nil)

	cs := agg.Compute("SOL", []*models.Signal{
		sig("SOL", models.KindListing, 1.0, 1, now),
		sig("SOL", models.KindWhaleTrade, 1.0, 1, now),
	})
	require.NotNil(t, cs)
	assert.Equal(t, 1.0, cs.Score)
}

func TestComputeKindSharesSignedByDirection(t *testing.T) {
	agg, now := newAggregator(t, AggregatorConfig{}, map[models.Kind]float64{
		models.KindWhaleTrade: 0.6,
		models.KindSentiment:  0.4,
	}, nil)

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.8, 1, now),
		sig("BTC", models.KindSentiment, -0.2, 1, now),
	})
	require.NotNil(t, cs)

	// magnitudes sum to 1; the dissenting kind carries a negative share
	total := 0.0
	for _, share := range cs.KindShares {
		total += math.Abs(share)
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.InDelta(t, 0.48/0.56, cs.KindShares[models.KindWhaleTrade], 1e-9)
	assert.InDelta(t, -0.08/0.56, cs.KindShares[models.KindSentiment], 1e-9)
}

func TestComputeCorrelationAdjustmentRaisesScore(t *testing.T) {
	corr := analysis.NewCorrelationEngine(analysis.WithWindowSize(16))
	for i := 0; i < 16; i++ {
		v := float64(i) / 16
		corr.AddSample("BTC", v)
		corr.AddSample("ETH", v) // perfectly correlated partner
	}

	board := NewScoreBoard(0.05, 15*time.Minute)
	book := analysis.NewWeightBook(&models.WeightVector{
		Weights: map[models.Kind]float64{models.KindWhaleTrade: 0.5},
		Version: 1,
	})
	cfg := AggregatorConfig{CorrelationBound: 0.6, CorrelationGain: 0.1}
	agg := NewAggregator(cfg, corr, book, board, nil, newTestLogger(t))
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	agg.nowFn = func() time.Time { return now }

	board.Update(&models.CompositeScore{AssetID: "ETH", Score: 0.7, ComputedAt: now})

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.6, 1, now),
	})
	require.NotNil(t, cs)

	// base 0.30 plus gain * coefficient(=1) * trend(+1)
	assert.InDelta(t, 0.30+0.1, cs.Score, 1e-6)
}

func TestComputeUndefinedCorrelationIsNeutral(t *testing.T) {
	corr := analysis.NewCorrelationEngine(analysis.WithWindowSize(16))
	// constant partner series: zero variance, coefficient undefined
	for i := 0; i < 16; i++ {
		corr.AddSample("BTC", float64(i)/16)
		corr.AddSample("ETH", 0.5)
	}

	board := NewScoreBoard(0.05, 15*time.Minute)
	book := analysis.NewWeightBook(&models.WeightVector{
		Weights: map[models.Kind]float64{models.KindWhaleTrade: 0.5},
		Version: 1,
	})
	agg := NewAggregator(AggregatorConfig{}, corr, book, board, nil, newTestLogger(t))
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	agg.nowFn = func() time.Time { return now }

	board.Update(&models.CompositeScore{AssetID: "ETH", Score: 0.9, ComputedAt: now})

	cs := agg.Compute("BTC", []*models.Signal{
		sig("BTC", models.KindWhaleTrade, 0.6, 1, now),
	})
	require.NotNil(t, cs)
	assert.InDelta(t, 0.30, cs.Score, 1e-9, "undefined coefficient contributes nothing")
}

func TestScoreBoardTrend(t *testing.T) {
	board := NewScoreBoard(0.05, 15*time.Minute)
	now := time.Now()

	board.Update(&models.CompositeScore{AssetID: "UP", Score: 0.4, ComputedAt: now})
	board.Update(&models.CompositeScore{AssetID: "DOWN", Score: -0.4, ComputedAt: now})
	board.Update(&models.CompositeScore{AssetID: "FLAT", Score: 0.01, ComputedAt: now})
	board.Update(&models.CompositeScore{AssetID: "OLD", Score: 0.9, ComputedAt: now.Add(-time.Hour)})

	assert.Equal(t, 1.0, board.Trend("UP", now))
	assert.Equal(t, -1.0, board.Trend("DOWN", now))
	assert.Equal(t, 0.0, board.Trend("FLAT", now))
	assert.Equal(t, 0.0, board.Trend("OLD", now), "stale entries carry no trend")
	assert.Equal(t, 0.0, board.Trend("UNKNOWN", now))
}
