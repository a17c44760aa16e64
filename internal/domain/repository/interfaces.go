package repository

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
)

// SignalStream is a live watcher connection yielding normalized signals.
type SignalStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Signal, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AttributedOutcome joins an outcome with the kind shares of its decision.
type AttributedOutcome struct {
	Outcome    models.Outcome
	Action     models.Action
	KindShares map[models.Kind]float64
}

// DecisionStore is the persistence gateway for append-only decision history,
// realized outcomes, and weight snapshot history.
type DecisionStore interface {
	Init(ctx context.Context) error
	AppendDecision(ctx context.Context, d *models.Decision) error
	AppendOutcome(ctx context.Context, o *models.Outcome) error
	RecentOutcomes(ctx context.Context, since time.Time, limit int) ([]AttributedOutcome, error)
	SaveWeights(ctx context.Context, w *models.WeightVector) error
	LoadWeights(ctx context.Context) (*models.WeightVector, error)
	Health(ctx context.Context) error
	Close() error
}

// DecisionPublisher pushes decision notifications to the message backbone.
type DecisionPublisher interface {
	Publish(ctx context.Context, d *models.Decision) error
	Close() error
}

// SampleCache is the cache/queue gateway: ephemeral correlation-window samples,
// latest composite scores, and the realtime decision channel.
type SampleCache interface {
	MirrorWindow(ctx context.Context, pairKey string, samples []float64) error
	LoadWindow(ctx context.Context, pairKey string) ([]float64, error)
	CacheScore(ctx context.Context, s *models.CompositeScore) error
	LatestScores(ctx context.Context) (map[string]float64, error)
	PublishDecision(ctx context.Context, d *models.Decision) error
	PublishPrioritySignal(ctx context.Context, s *models.Signal) error
	Close() error
}

// Alerter is the outbound alert gateway, invoked on every emitted decision.
type Alerter interface {
	Notify(ctx context.Context, d *models.Decision) error
}

// OrderExecutor is the execution gateway, invoked only when auto-trading is on.
type OrderExecutor interface {
	SubmitOrder(ctx context.Context, d *models.Decision) error
	Mode() string
}

// Metrics records engine observability counters.
type Metrics interface {
	RecordSignal(source string, kind string)
	RecordDuplicate(source string)
	RecordOverflowDrop(assetID string)
	RecordStale(assetID string)
	RecordDecision(action string)
	RecordTickAbandoned(assetID string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordScore(assetID string, score float64)
}
