package usecase

import (
	"math"
	"time"

	"TradePulse/internal/analysis"
	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// AggregatorConfig tunes composite scoring.
type AggregatorConfig struct {
	StalenessWindow   time.Duration
	DefaultWeight     float64
	CorrelationBound  float64 // |coefficient| at or above this participates in adjustment
	CorrelationGain   float64
	ConfirmationBoost float64 // multiplier when >=2 kinds agree in direction; <=1 disables
}

// Aggregator computes a composite, correlation-adjusted score per asset from
// the asset's current live signals. It holds no per-asset state of its own;
// the engine worker that owns the asset feeds it.
type Aggregator struct {
	cfg     AggregatorConfig
	corr    *analysis.CorrelationEngine
	weights *analysis.WeightBook
	board   *ScoreBoard
	metrics drepo.Metrics
	l       *applogger.Logger
	nowFn   func() time.Time
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg AggregatorConfig, corr *analysis.CorrelationEngine, weights *analysis.WeightBook, board *ScoreBoard, metrics drepo.Metrics, l *applogger.Logger) *Aggregator {
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = 5 * time.Minute
	}
	if cfg.DefaultWeight <= 0 {
		cfg.DefaultWeight = 0.1
	}
	if cfg.CorrelationBound <= 0 || cfg.CorrelationBound > 1 {
		cfg.CorrelationBound = 0.6
	}
	if cfg.CorrelationGain < 0 {
		cfg.CorrelationGain = 0.1
	}
	return &Aggregator{
		cfg:     cfg,
		corr:    corr,
		weights: weights,
		board:   board,
		metrics: metrics,
		l:       l,
		nowFn:   time.Now,
	}
}

type kindBucket struct {
	valueSum float64
	confSum  float64
	count    int
	fps      []string
}

// Compute builds a fresh CompositeScore for the asset from the given signals.
// Stale signals are excluded (not an error). Returns nil when nothing live
// remains to score.
func (a *Aggregator) Compute(assetID string, signals []*models.Signal) *models.CompositeScore {
	now := a.nowFn()

	buckets := make(map[models.Kind]*kindBucket)
	for _, s := range signals {
		if s.Stale(now, a.cfg.StalenessWindow) {
			if a.metrics != nil {
				a.metrics.RecordStale(assetID)
			}
			continue
		}
		b, ok := buckets[s.Kind]
		if !ok {
			b = &kindBucket{}
			buckets[s.Kind] = b
		}
		b.valueSum += s.Value
		b.confSum += s.Confidence
		b.count++
		b.fps = append(b.fps, s.Fingerprint())
	}
	if len(buckets) == 0 {
		return nil
	}

	wv := a.weights.Current()
	base := 0.0
	absSum := 0.0
	terms := make(map[models.Kind]float64, len(buckets))
	contributing := make([]string, 0, len(signals))
	for kind, b := range buckets {
		// same-kind signals inside the window average, never overwrite
		meanValue := b.valueSum / float64(b.count)
		meanConf := b.confSum / float64(b.count)
		term := wv.Weight(kind, a.cfg.DefaultWeight) * meanValue * meanConf
		terms[kind] = term
		base += term
		absSum += math.Abs(term)
		contributing = append(contributing, b.fps...)
	}

	// shares keep the sign of their term: a kind that voted against the
	// composite carries a negative share, so outcome attribution credits
	// contrarians instead of penalizing them alongside the majority
	shares := make(map[models.Kind]float64, len(terms))
	if absSum > 0 {
		for kind, term := range terms {
			shares[kind] = term / absSum
		}
	}

	score := base
	if boost := a.cfg.ConfirmationBoost; boost > 1 {
		if agreeing(terms, base) >= 2 {
			score *= boost
		}
	}
	score += a.correlationAdjustment(assetID, score, now)

	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}

	cs := &models.CompositeScore{
		AssetID:      assetID,
		Score:        score,
		Contributing: contributing,
		KindShares:   shares,
		ComputedAt:   now,
	}
	if a.metrics != nil {
		a.metrics.RecordScore(assetID, score)
	}
	return cs
}

// correlationAdjustment averages the contribution of every strongly
// correlated partner with a current trend. The term gain*coef*trend is
// monotone in the coefficient: a higher positive correlation with a rising
// partner can only raise the score.
func (a *Aggregator) correlationAdjustment(assetID string, score float64, now time.Time) float64 {
	if a.corr == nil || a.board == nil {
		return 0
	}
	sum := 0.0
	n := 0
	for _, partner := range a.corr.Partners(assetID) {
		coef, ok := a.corr.Coefficient(assetID, partner)
		if !ok {
			// undefined is neutral, never zero-as-data
			a.l.Debug("aggregator: correlation undefined",
				applogger.String("asset", assetID),
				applogger.String("partner", partner),
			)
			continue
		}
		if math.Abs(coef) < a.cfg.CorrelationBound {
			continue
		}
		trend := a.board.Trend(partner, now)
		if trend == 0 {
			continue
		}
		sum += a.cfg.CorrelationGain * coef * trend
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// agreeing counts the kinds whose term points the same direction as the base.
func agreeing(terms map[models.Kind]float64, base float64) int {
	if base == 0 {
		return 0
	}
	n := 0
	for _, term := range terms {
		if term*base > 0 {
			n++
		}
	}
	return n
}
