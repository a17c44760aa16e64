package usecase

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/queue"
)

// DecisionPersistRetryType is the queue message type for failed decision writes.
const DecisionPersistRetryType = "decision_persist_retry"

// Dispatcher fans an emitted decision out to the gateways. Persistence
// failure never suppresses the alert; it only blocks order execution and
// queues the write for retry with backoff.
type Dispatcher struct {
	store    drepo.DecisionStore
	pub      drepo.DecisionPublisher
	cache    drepo.SampleCache
	alerter  drepo.Alerter
	executor drepo.OrderExecutor
	retry    queue.QueueService
	metrics  drepo.Metrics
	l        *applogger.Logger
}

// NewDispatcher creates a decision dispatcher. retry may be nil when no
// retry queue is configured.
func NewDispatcher(
	store drepo.DecisionStore,
	pub drepo.DecisionPublisher,
	cache drepo.SampleCache,
	alerter drepo.Alerter,
	executor drepo.OrderExecutor,
	retry queue.QueueService,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:    store,
		pub:      pub,
		cache:    cache,
		alerter:  alerter,
		executor: executor,
		retry:    retry,
		metrics:  metrics,
		l:        l,
	}
}

// Dispatch routes one decision. HOLD decisions are persisted only; directional
// decisions additionally alert, publish, and (policy permitting) execute.
func (d *Dispatcher) Dispatch(ctx context.Context, dec *models.Decision) {
	start := time.Now()
	persisted := d.persist(ctx, dec)

	if !dec.Action.Directional() {
		return
	}

	if err := d.alerter.Notify(ctx, dec); err != nil {
		d.metrics.RecordError("alert")
		d.l.Warn("dispatcher: alert failed",
			applogger.String("decision", dec.ID),
			applogger.Error(err),
		)
	}

	if d.pub != nil {
		if err := d.pub.Publish(ctx, dec); err != nil {
			d.metrics.RecordError("publish")
			d.l.Warn("dispatcher: kafka publish failed",
				applogger.String("decision", dec.ID),
				applogger.Error(err),
			)
		}
	}
	if d.cache != nil {
		if err := d.cache.PublishDecision(ctx, dec); err != nil {
			d.metrics.RecordError("decision_channel")
		}
	}

	if dec.AutoTradingEnabled {
		if !persisted {
			// never hand an order to the exchange without a durable record
			d.l.Warn("dispatcher: execution blocked, decision not persisted",
				applogger.String("decision", dec.ID),
			)
			d.metrics.RecordError("execution_blocked")
		} else if err := d.executor.SubmitOrder(ctx, dec); err != nil {
			d.metrics.RecordError("execution")
			d.l.Error("dispatcher: order submission failed",
				applogger.String("decision", dec.ID),
				applogger.Error(err),
			)
		}
	}

	d.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
}

func (d *Dispatcher) persist(ctx context.Context, dec *models.Decision) bool {
	if err := d.store.AppendDecision(ctx, dec); err != nil {
		d.metrics.RecordError("persist")
		d.l.Warn("dispatcher: decision persist failed, queueing retry",
			applogger.String("decision", dec.ID),
			applogger.Error(err),
		)
		if d.retry != nil {
			if qerr := d.retry.PublishMessage(ctx, DecisionPersistRetryType, dec); qerr != nil {
				d.metrics.RecordError("persist_retry_enqueue")
				d.l.Error("dispatcher: retry enqueue failed",
					applogger.String("decision", dec.ID),
					applogger.Error(qerr),
				)
			}
		}
		return false
	}
	return true
}

// Close releases the outbound gateways.
func (d *Dispatcher) Close() {
	if d.pub != nil {
		if err := d.pub.Close(); err != nil {
			d.l.Warn("dispatcher: publisher close error", applogger.Error(err))
		}
	}
	if d.cache != nil {
		if err := d.cache.Close(); err != nil {
			d.l.Warn("dispatcher: cache close error", applogger.Error(err))
		}
	}
	if err := d.store.Close(); err != nil {
		d.l.Warn("dispatcher: store close error", applogger.Error(err))
	}
}

// PersistRetryJob replays failed decision writes from the redis retry queue.
type PersistRetryJob struct {
	store drepo.DecisionStore
}

// NewPersistRetryJob creates the retry job.
func NewPersistRetryJob(store drepo.DecisionStore) *PersistRetryJob {
	return &PersistRetryJob{store: store}
}

func (j *PersistRetryJob) Name() string { return "decision-persist-retry" }

func (j *PersistRetryJob) Type() string { return DecisionPersistRetryType }

// Handle re-appends the decision; a returned error re-queues the message
// with the configured retry delay.
func (j *PersistRetryJob) Handle(ctx context.Context, payload interface{}) error {
	dec, err := queue.ParsePayload[models.Decision](payload)
	if err != nil {
		return err
	}
	return j.store.AppendDecision(ctx, dec)
}
