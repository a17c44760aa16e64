package analysis

import (
	"context"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// OptimizerConfig bounds the reweighting step. Bounds are validated at
// startup; a malformed range never reaches this package.
type OptimizerConfig struct {
	LearningRate float64
	MaxStep      float64
	MinWeight    float64
	MaxWeight    float64
	Lookback     time.Duration
	MinOutcomes  int
	FetchLimit   int
	RunTimeout   time.Duration
}

// Optimizer revises per-kind weights from realized decision outcomes. It runs
// on its own schedule, never on the signal path, and talks to the aggregator
// only through WeightBook snapshot publication.
type Optimizer struct {
	cfg   OptimizerConfig
	store drepo.DecisionStore
	book  *WeightBook
	l     *applogger.Logger
	nowFn func() time.Time
}

// NewOptimizer creates a weight optimizer.
func NewOptimizer(cfg OptimizerConfig, store drepo.DecisionStore, book *WeightBook, l *applogger.Logger) *Optimizer {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = 0.05
	}
	if cfg.MaxWeight <= cfg.MinWeight {
		cfg.MinWeight, cfg.MaxWeight = 0.05, 1.0
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 48 * time.Hour
	}
	if cfg.MinOutcomes <= 0 {
		cfg.MinOutcomes = 10
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 2000
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	return &Optimizer{cfg: cfg, store: store, book: book, l: l, nowFn: time.Now}
}

// Name identifies the optimizer job on the scheduler.
func (o *Optimizer) Name() string { return "weight_optimizer" }

// Run executes one optimization cycle as a scheduled job.
func (o *Optimizer) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RunTimeout)
	defer cancel()
	return o.RunOnce(ctx)
}

// RunOnce fetches recent outcomes, attributes realized return to the signal
// kinds that shaped each decision, steps every weight by a bounded
// learning-rate-scaled amount, and publishes a new snapshot.
func (o *Optimizer) RunOnce(ctx context.Context) error {
	since := o.nowFn().Add(-o.cfg.Lookback)
	outcomes, err := o.store.RecentOutcomes(ctx, since, o.cfg.FetchLimit)
	if err != nil {
		return fmt.Errorf("fetch outcomes: %w", err)
	}
	if len(outcomes) < o.cfg.MinOutcomes {
		o.l.Debug("optimizer: not enough outcomes",
			applogger.Int("have", len(outcomes)),
			applogger.Int("need", o.cfg.MinOutcomes),
		)
		return nil
	}

	attribution := o.attribute(outcomes)
	next := o.step(o.book.Current(), attribution)
	o.book.Publish(next)

	if err := o.store.SaveWeights(ctx, next); err != nil {
		// snapshot already published; persistence catches up on the next run
		o.l.Warn("optimizer: weight snapshot persist failed", applogger.Error(err))
	}

	o.l.Info("optimizer: published weight snapshot",
		applogger.Uint64("version", next.Version),
		applogger.Int("outcomes", len(outcomes)),
		applogger.Int("kinds", len(next.Weights)),
	)
	return nil
}

// attribute averages, per signal kind, the directional realized return scaled
// by that kind's contribution share in the originating decision.
func (o *Optimizer) attribute(outcomes []drepo.AttributedOutcome) map[models.Kind]float64 {
	sums := make(map[models.Kind]float64)
	counts := make(map[models.Kind]int)
	for _, ao := range outcomes {
		dir := 0.0
		switch ao.Action {
		case models.ActionBuy:
			dir = 1
		case models.ActionSell:
			dir = -1
		default:
			continue
		}
		for kind, share := range ao.KindShares {
			sums[kind] += share * ao.Outcome.RealizedReturn * dir
			counts[kind]++
		}
	}
	out := make(map[models.Kind]float64, len(sums))
	for kind, sum := range sums {
		out[kind] = sum / float64(counts[kind])
	}
	return out
}

func (o *Optimizer) step(cur *models.WeightVector, attribution map[models.Kind]float64) *models.WeightVector {
	next := cur.Clone()
	next.Version = cur.Version + 1
	next.UpdatedAt = o.nowFn()

	for kind, attr := range attribution {
		w, ok := next.Weights[kind]
		if !ok {
			w = o.cfg.MinWeight
		}
		step := o.cfg.LearningRate * attr
		if step > o.cfg.MaxStep {
			step = o.cfg.MaxStep
		} else if step < -o.cfg.MaxStep {
			step = -o.cfg.MaxStep
		}
		w += step
		if w < o.cfg.MinWeight || w > o.cfg.MaxWeight {
			o.l.Warn("optimizer: weight clipped to bounds",
				applogger.String("kind", string(kind)),
				applogger.Any("raw", w),
			)
			if w < o.cfg.MinWeight {
				w = o.cfg.MinWeight
			} else {
				w = o.cfg.MaxWeight
			}
		}
		next.Weights[kind] = w
	}
	return next
}
