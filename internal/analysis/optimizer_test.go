package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

type fakeStore struct {
	outcomes   []drepo.AttributedOutcome
	fetchErr   error
	saved      []*models.WeightVector
	saveErr    error
	loadResult *models.WeightVector
}

func (s *fakeStore) Init(context.Context) error                           { return nil }
func (s *fakeStore) AppendDecision(context.Context, *models.Decision) error { return nil }
func (s *fakeStore) AppendOutcome(context.Context, *models.Outcome) error { return nil }
func (s *fakeStore) RecentOutcomes(context.Context, time.Time, int) ([]drepo.AttributedOutcome, error) {
	return s.outcomes, s.fetchErr
}
func (s *fakeStore) SaveWeights(_ context.Context, w *models.WeightVector) error {
	s.saved = append(s.saved, w)
	return s.saveErr
}
func (s *fakeStore) LoadWeights(context.Context) (*models.WeightVector, error) {
	return s.loadResult, nil
}
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func outcome(action models.Action, ret float64, shares map[models.Kind]float64) drepo.AttributedOutcome {
	return drepo.AttributedOutcome{
		Outcome:    models.Outcome{DecisionID: "d", RealizedReturn: ret, EvaluatedAt: time.Now()},
		Action:     action,
		KindShares: shares,
	}
}

func TestOptimizerSkipsBelowMinOutcomes(t *testing.T) {
	store := &fakeStore{outcomes: []drepo.AttributedOutcome{
		outcome(models.ActionBuy, 0.1, map[models.Kind]float64{models.KindWhaleTrade: 1}),
	}}
	book := NewWeightBook(nil)
	before := book.Current()

	opt := NewOptimizer(OptimizerConfig{MinOutcomes: 5}, store, book, testLogger(t))
	require.NoError(t, opt.RunOnce(context.Background()))

	assert.Same(t, before, book.Current(), "no snapshot published below the outcome floor")
	assert.Empty(t, store.saved)
}

func TestOptimizerRaisesProfitableKind(t *testing.T) {
	shares := map[models.Kind]float64{models.KindWhaleTrade: 1}
	var outs []drepo.AttributedOutcome
	for i := 0; i < 10; i++ {
		outs = append(outs, outcome(models.ActionBuy, 0.2, shares))
	}
	store := &fakeStore{outcomes: outs}
	book := NewWeightBook(nil)
	prev := book.Current().Weight(models.KindWhaleTrade, 0)

	opt := NewOptimizer(OptimizerConfig{LearningRate: 0.1, MaxStep: 0.05}, store, book, testLogger(t))
	require.NoError(t, opt.RunOnce(context.Background()))

	cur := book.Current()
	assert.Greater(t, cur.Weight(models.KindWhaleTrade, 0), prev)
	assert.InDelta(t, prev+0.02, cur.Weight(models.KindWhaleTrade, 0), 1e-9, "step = lr * mean(share*return*dir)")
	assert.Equal(t, uint64(2), cur.Version)
	require.Len(t, store.saved, 1)
}

func TestOptimizerLowersLosingKind(t *testing.T) {
	shares := map[models.Kind]float64{models.KindSentiment: 1}
	var outs []drepo.AttributedOutcome
	for i := 0; i < 10; i++ {
		outs = append(outs, outcome(models.ActionBuy, -0.3, shares))
	}
	store := &fakeStore{outcomes: outs}
	book := NewWeightBook(nil)
	prev := book.Current().Weight(models.KindSentiment, 0)

	opt := NewOptimizer(OptimizerConfig{LearningRate: 0.1, MaxStep: 0.05}, store, book, testLogger(t))
	require.NoError(t, opt.RunOnce(context.Background()))

	assert.Less(t, book.Current().Weight(models.KindSentiment, 0), prev)
}

func TestOptimizerCreditsContrarianKind(t *testing.T) {
	// sentiment voted against the BUY (negative share) and the BUY lost
	// money, so sentiment earns weight while whale trades lose it
	shares := map[models.Kind]float64{
		models.KindWhaleTrade: 0.8,
		models.KindSentiment:  -0.2,
	}
	var outs []drepo.AttributedOutcome
	for i := 0; i < 10; i++ {
		outs = append(outs, outcome(models.ActionBuy, -0.3, shares))
	}
	store := &fakeStore{outcomes: outs}
	book := NewWeightBook(nil)
	prevWhale := book.Current().Weight(models.KindWhaleTrade, 0)
	prevSent := book.Current().Weight(models.KindSentiment, 0)

	opt := NewOptimizer(OptimizerConfig{LearningRate: 0.1, MaxStep: 0.05}, store, book, testLogger(t))
	require.NoError(t, opt.RunOnce(context.Background()))

	cur := book.Current()
	assert.Less(t, cur.Weight(models.KindWhaleTrade, 0), prevWhale)
	assert.Greater(t, cur.Weight(models.KindSentiment, 0), prevSent)
}

func TestOptimizerSellAttributionInverts(t *testing.T) {
	// a SELL followed by a negative return was a good call
	shares := map[models.Kind]float64{models.KindDerivatives: 1}
	var outs []drepo.AttributedOutcome
	for i := 0; i < 10; i++ {
		outs = append(outs, outcome(models.ActionSell, -0.2, shares))
	}
	store := &fakeStore{outcomes: outs}
	book := NewWeightBook(nil)
	prev := book.Current().Weight(models.KindDerivatives, 0)

	opt := NewOptimizer(OptimizerConfig{}, store, book, testLogger(t))
	require.NoError(t, opt.RunOnce(context.Background()))

	assert.Greater(t, book.Current().Weight(models.KindDerivatives, 0), prev)
}

func TestOptimizerPreservesBounds(t *testing.T) {
	var outs []drepo.AttributedOutcome
	for i := 0; i < 200; i++ {
		outs = append(outs, outcome(models.ActionBuy, 5.0, map[models.Kind]float64{models.KindWhaleTrade: 1}))
		outs = append(outs, outcome(models.ActionBuy, -5.0, map[models.Kind]float64{models.KindSentiment: 1}))
	}
	store := &fakeStore{outcomes: outs}
	book := NewWeightBook(nil)
	opt := NewOptimizer(OptimizerConfig{LearningRate: 1, MaxStep: 10, MinWeight: 0.05, MaxWeight: 1.0}, store, book, testLogger(t))

	// repeated extreme steps must stay clipped inside the bounds
	for i := 0; i < 25; i++ {
		require.NoError(t, opt.RunOnce(context.Background()))
	}
	for kind, w := range book.Current().Weights {
		assert.GreaterOrEqual(t, w, 0.05, "kind %s", kind)
		assert.LessOrEqual(t, w, 1.0, "kind %s", kind)
	}
	assert.Equal(t, 1.0, book.Current().Weight(models.KindWhaleTrade, 0))
	assert.Equal(t, 0.05, book.Current().Weight(models.KindSentiment, 0))
}

func TestOptimizerPublishesEvenWhenPersistFails(t *testing.T) {
	var outs []drepo.AttributedOutcome
	for i := 0; i < 10; i++ {
		outs = append(outs, outcome(models.ActionBuy, 0.1, map[models.Kind]float64{models.KindNarrative: 1}))
	}
	store := &fakeStore{outcomes: outs, saveErr: errors.New("clickhouse down")}
	book := NewWeightBook(nil)
	opt := NewOptimizer(OptimizerConfig{}, store, book, testLogger(t))

	require.NoError(t, opt.RunOnce(context.Background()))
	assert.Equal(t, uint64(2), book.Current().Version, "snapshot publication does not depend on persistence")
}

func TestOptimizerPropagatesFetchError(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("query timeout")}
	opt := NewOptimizer(OptimizerConfig{}, store, NewWeightBook(nil), testLogger(t))
	assert.Error(t, opt.RunOnce(context.Background()))
}

func TestWeightBookSnapshotIsolation(t *testing.T) {
	book := NewWeightBook(nil)
	v1 := book.Current()

	next := v1.Clone()
	next.Version = v1.Version + 1
	next.Weights[models.KindWhaleTrade] = 0.9
	book.Publish(next)

	assert.NotEqual(t, 0.9, v1.Weights[models.KindWhaleTrade], "published snapshot must not mutate prior reads")
	assert.Equal(t, 0.9, book.Current().Weights[models.KindWhaleTrade])
}
