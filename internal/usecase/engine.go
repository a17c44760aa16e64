package usecase

import (
	"context"
	"sync"
	"time"

	"TradePulse/internal/analysis"
	"TradePulse/internal/bus"
	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// EngineConfig tunes the per-asset pipelines.
type EngineConfig struct {
	Assets         []string
	TickInterval   time.Duration
	TickBudget     time.Duration
	BufferLimit    int // max live signals retained per asset
	MirrorInterval time.Duration
	GatewayTimeout time.Duration
}

// Engine owns one worker goroutine per asset. The worker is the single owner
// of that asset's live-signal buffer and gate state, so independent assets
// process fully in parallel while same-asset updates are serialized. No
// cross-asset locks are ever held together.
type Engine struct {
	cfg     EngineConfig
	bus     *bus.Bus
	agg     *Aggregator
	gate    *Gate
	corr    *analysis.CorrelationEngine
	board   *ScoreBoard
	disp    *Dispatcher
	cache   drepo.SampleCache
	metrics drepo.Metrics
	l       *applogger.Logger

	mu      sync.Mutex
	workers map[string]struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewEngine creates the aggregation engine.
func NewEngine(
	cfg EngineConfig,
	b *bus.Bus,
	agg *Aggregator,
	gate *Gate,
	corr *analysis.CorrelationEngine,
	board *ScoreBoard,
	disp *Dispatcher,
	cache drepo.SampleCache,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.TickBudget <= 0 {
		cfg.TickBudget = 500 * time.Millisecond
	}
	if cfg.BufferLimit <= 0 {
		cfg.BufferLimit = 512
	}
	if cfg.MirrorInterval <= 0 {
		cfg.MirrorInterval = time.Minute
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 2 * time.Second
	}
	return &Engine{
		cfg:     cfg,
		bus:     b,
		agg:     agg,
		gate:    gate,
		corr:    corr,
		board:   board,
		disp:    disp,
		cache:   cache,
		metrics: metrics,
		l:       l,
		workers: make(map[string]struct{}),
	}
}

// Start launches a worker per configured asset and the mirror loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	for _, asset := range e.cfg.Assets {
		e.Track(asset)
	}
	e.wg.Add(1)
	go e.mirrorLoop()

	e.l.Info("engine: started", applogger.Int("assets", len(e.cfg.Assets)))
	return nil
}

// Track ensures a worker exists for the asset. Safe to call from ingestion
// when a signal for a new asset arrives.
func (e *Engine) Track(assetID string) {
	e.mu.Lock()
	if !e.started || e.ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	if _, ok := e.workers[assetID]; ok {
		e.mu.Unlock()
		return
	}
	e.workers[assetID] = struct{}{}
	e.mu.Unlock()

	sub := e.bus.Subscribe(assetID)
	e.wg.Add(1)
	go e.runWorker(sub)
}

// Publish validates a signal, routes it to the bus, and makes sure the asset
// has a worker. Priority signals additionally go straight onto the realtime
// channel so downstream consumers see them before the next tick.
func (e *Engine) Publish(s *models.Signal) error {
	if err := s.Validate(); err != nil {
		e.metrics.RecordError("signal_invalid")
		return err
	}
	e.Track(s.AssetID)
	accepted := e.bus.Publish(s)
	if accepted && s.Priority && e.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GatewayTimeout)
		if err := e.cache.PublishPrioritySignal(ctx, s); err != nil {
			e.metrics.RecordError("priority_channel")
		}
		cancel()
	}
	return nil
}

// Process satisfies the realtime pipeline's downstream interface.
func (e *Engine) Process(ctx context.Context, s *models.Signal) error {
	return e.Publish(s)
}

// Stop cancels the workers and waits for in-flight ticks to complete.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.cancel()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.l.Info("engine: stopped")
		return nil
	}
}

func (e *Engine) runWorker(sub *bus.Subscription) {
	defer e.wg.Done()
	assetID := sub.AssetID()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	var live []*models.Signal
	for {
		select {
		case <-e.ctx.Done():
			// let the last delivery cycle finish before stopping intake
			if sub.Len() > 0 {
				live = e.tick(assetID, sub, live)
			}
			return
		case <-sub.Wait():
			live = e.tick(assetID, sub, live)
		case <-ticker.C:
			live = e.tick(assetID, sub, live)
		}
	}
}

// tick is one aggregation cycle for one asset. Every error path inside the
// cycle fails open to HOLD.
func (e *Engine) tick(assetID string, sub *bus.Subscription, live []*models.Signal) []*models.Signal {
	start := time.Now()

	fresh := sub.Drain()
	for _, s := range fresh {
		if s.Kind == models.KindPriceMove {
			e.corr.AddSample(s.AssetID, s.Value)
		}
	}
	live = e.retain(append(live, fresh...), start)
	if len(live) == 0 {
		return live
	}

	cs := e.agg.Compute(assetID, live)

	if elapsed := time.Since(start); elapsed > e.cfg.TickBudget {
		e.metrics.RecordTickAbandoned(assetID)
		e.l.Warn("engine: tick budget exceeded, failing open",
			applogger.String("asset", assetID),
			applogger.Duration("elapsed_ms", elapsed),
		)
		e.dispatch(e.gate.HoldFailOpen(assetID))
		return live
	}
	if cs == nil {
		return live
	}

	e.board.Update(cs)
	if e.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GatewayTimeout)
		if err := e.cache.CacheScore(ctx, cs); err != nil {
			e.metrics.RecordError("score_cache")
		}
		cancel()
	}

	if d := e.gate.Evaluate(cs); d != nil {
		e.dispatch(d)
	}
	e.metrics.RecordLatency("tick", time.Since(start).Seconds())
	return live
}

func (e *Engine) dispatch(d *models.Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GatewayTimeout*4)
	defer cancel()
	e.disp.Dispatch(ctx, d)
}

// retain drops signals past the staleness window and trims the buffer to the
// configured cap, oldest first.
func (e *Engine) retain(signals []*models.Signal, now time.Time) []*models.Signal {
	out := signals[:0]
	for _, s := range signals {
		if !s.Stale(now, e.agg.cfg.StalenessWindow) {
			out = append(out, s)
		}
	}
	if len(out) > e.cfg.BufferLimit {
		out = out[len(out)-e.cfg.BufferLimit:]
	}
	return out
}

func (e *Engine) mirrorLoop() {
	defer e.wg.Done()
	if e.cache == nil {
		return
	}
	ticker := time.NewTicker(e.cfg.MirrorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.corr.EachWindow(func(pairKey string, interleaved []float64) {
				ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GatewayTimeout)
				if err := e.cache.MirrorWindow(ctx, pairKey, interleaved); err != nil {
					e.metrics.RecordError("window_mirror")
				}
				cancel()
			})
		}
	}
}
