package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
)

type fakeDecisionStore struct {
	appended  []*models.Decision
	appendErr error
}

func (s *fakeDecisionStore) Init(context.Context) error { return nil }
func (s *fakeDecisionStore) AppendDecision(_ context.Context, d *models.Decision) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, d)
	return nil
}
func (s *fakeDecisionStore) AppendOutcome(context.Context, *models.Outcome) error { return nil }
func (s *fakeDecisionStore) RecentOutcomes(context.Context, time.Time, int) ([]drepo.AttributedOutcome, error) {
	return nil, nil
}
func (s *fakeDecisionStore) SaveWeights(context.Context, *models.WeightVector) error { return nil }
func (s *fakeDecisionStore) LoadWeights(context.Context) (*models.WeightVector, error) {
	return nil, nil
}
func (s *fakeDecisionStore) Health(context.Context) error { return nil }
func (s *fakeDecisionStore) Close() error                 { return nil }

type fakePublisher struct {
	published []*models.Decision
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, d *models.Decision) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, d)
	return nil
}
func (p *fakePublisher) Close() error { return nil }

type fakeSampleCache struct {
	decisions []*models.Decision
}

func (c *fakeSampleCache) MirrorWindow(context.Context, string, []float64) error { return nil }
func (c *fakeSampleCache) LoadWindow(context.Context, string) ([]float64, error) { return nil, nil }
func (c *fakeSampleCache) CacheScore(context.Context, *models.CompositeScore) error {
	return nil
}
func (c *fakeSampleCache) LatestScores(context.Context) (map[string]float64, error) {
	return nil, nil
}
func (c *fakeSampleCache) PublishDecision(_ context.Context, d *models.Decision) error {
	c.decisions = append(c.decisions, d)
	return nil
}
func (c *fakeSampleCache) PublishPrioritySignal(context.Context, *models.Signal) error { return nil }
func (c *fakeSampleCache) Close() error                                                { return nil }

type fakeAlerter struct {
	notified []*models.Decision
	err      error
}

func (a *fakeAlerter) Notify(_ context.Context, d *models.Decision) error {
	a.notified = append(a.notified, d)
	return a.err
}

type fakeExecutor struct {
	orders []*models.Decision
	err    error
}

func (e *fakeExecutor) SubmitOrder(_ context.Context, d *models.Decision) error {
	if e.err != nil {
		return e.err
	}
	e.orders = append(e.orders, d)
	return nil
}
func (e *fakeExecutor) Mode() string { return "paper" }

type fakeRetryQueue struct {
	types    []string
	payloads []interface{}
	err      error
}

func (q *fakeRetryQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.types = append(q.types, msgType)
	q.payloads = append(q.payloads, payload)
	return nil
}

type dispatcherFixture struct {
	store    *fakeDecisionStore
	pub      *fakePublisher
	cache    *fakeSampleCache
	alerter  *fakeAlerter
	executor *fakeExecutor
	retry    *fakeRetryQueue
	metrics  *stubMetrics
	d        *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		store:    &fakeDecisionStore{},
		pub:      &fakePublisher{},
		cache:    &fakeSampleCache{},
		alerter:  &fakeAlerter{},
		executor: &fakeExecutor{},
		retry:    &fakeRetryQueue{},
		metrics:  &stubMetrics{},
	}
	f.d = NewDispatcher(f.store, f.pub, f.cache, f.alerter, f.executor, f.retry, f.metrics, newTestLogger(t))
	return f
}

func decision(action models.Action, auto bool) *models.Decision {
	return &models.Decision{
		ID:                 "dec-1",
		AssetID:            "BTC",
		Action:             action,
		Score:              0.42,
		AutoTradingEnabled: auto,
		Timestamp:          time.Now(),
	}
}

func TestDispatchDirectionalFansOut(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.Dispatch(context.Background(), decision(models.ActionBuy, true))

	assert.Len(t, f.store.appended, 1)
	assert.Len(t, f.alerter.notified, 1)
	assert.Len(t, f.pub.published, 1)
	assert.Len(t, f.cache.decisions, 1)
	assert.Len(t, f.executor.orders, 1)
}

func TestDispatchHoldPersistsOnly(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.Dispatch(context.Background(), decision(models.ActionHold, true))

	assert.Len(t, f.store.appended, 1)
	assert.Empty(t, f.alerter.notified)
	assert.Empty(t, f.pub.published)
	assert.Empty(t, f.executor.orders)
}

func TestDispatchPersistFailureBlocksExecutionNotAlert(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.appendErr = errors.New("clickhouse unavailable")

	f.d.Dispatch(context.Background(), decision(models.ActionBuy, true))

	assert.Len(t, f.alerter.notified, 1, "the operator hears about the decision regardless")
	assert.Empty(t, f.executor.orders, "no order without a durable record")
	require.Len(t, f.retry.types, 1)
	assert.Equal(t, DecisionPersistRetryType, f.retry.types[0])
}

func TestDispatchAutoTradingOffSkipsExecutor(t *testing.T) {
	f := newDispatcherFixture(t)

	f.d.Dispatch(context.Background(), decision(models.ActionSell, false))

	assert.Len(t, f.alerter.notified, 1)
	assert.Len(t, f.pub.published, 1)
	assert.Empty(t, f.executor.orders)
}

func TestDispatchAlertFailureDoesNotStopPipeline(t *testing.T) {
	f := newDispatcherFixture(t)
	f.alerter.err = errors.New("webhook 503")

	f.d.Dispatch(context.Background(), decision(models.ActionBuy, true))

	assert.Len(t, f.pub.published, 1)
	assert.Len(t, f.executor.orders, 1)
	assert.Equal(t, 1, f.metrics.errs)
}

func TestDispatchExecutorFailureIsRecorded(t *testing.T) {
	f := newDispatcherFixture(t)
	f.executor.err = errors.New("exchange rejected")

	f.d.Dispatch(context.Background(), decision(models.ActionBuy, true))

	assert.Equal(t, 1, f.metrics.errs)
	assert.Len(t, f.store.appended, 1)
}

func TestDispatchRetryEnqueueFailure(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.appendErr = errors.New("clickhouse unavailable")
	f.retry.err = errors.New("redis down")

	f.d.Dispatch(context.Background(), decision(models.ActionBuy, true))

	// persist + enqueue both recorded; the decision still alerted
	assert.GreaterOrEqual(t, f.metrics.errs, 2)
	assert.Len(t, f.alerter.notified, 1)
}

func TestPersistRetryJobReplaysDecision(t *testing.T) {
	store := &fakeDecisionStore{}
	job := NewPersistRetryJob(store)

	assert.Equal(t, DecisionPersistRetryType, job.Type())

	dec := decision(models.ActionBuy, true)
	require.NoError(t, job.Handle(context.Background(), dec))
	require.Len(t, store.appended, 1)
	assert.Equal(t, dec.ID, store.appended[0].ID)

	store.appendErr = errors.New("still down")
	assert.Error(t, job.Handle(context.Background(), dec), "a failed replay re-queues")
}
