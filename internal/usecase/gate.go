package usecase

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// AutoTrading is the runtime master switch for order execution. It never
// changes gate behavior, only whether decisions reach the execution gateway.
type AutoTrading struct {
	enabled atomic.Bool
}

// NewAutoTrading creates the switch with an initial state.
func NewAutoTrading(enabled bool) *AutoTrading {
	t := &AutoTrading{}
	t.enabled.Store(enabled)
	return t
}

// Enabled reports the current state.
func (t *AutoTrading) Enabled() bool { return t.enabled.Load() }

// Set flips the switch.
func (t *AutoTrading) Set(v bool) { t.enabled.Store(v) }

// GateState is the per-asset decision state.
type GateState int

const (
	StateIdle GateState = iota
	StateEvaluating
	StateDecided
	StateCooldown
)

func (s GateState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateDecided:
		return "decided"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// GateConfig sets thresholds and the cooldown window. SellThreshold must be
// below BuyThreshold; the band between them is neutral.
type GateConfig struct {
	BuyThreshold  float64
	SellThreshold float64
	Cooldown      time.Duration
}

type assetGate struct {
	state         GateState
	cooldownUntil time.Time
}

// Gate applies thresholds, cooldown, and the auto-trading policy to composite
// scores. It guarantees no two directional decisions for one asset land
// closer together than the cooldown.
type Gate struct {
	cfg     GateConfig
	auto    *AutoTrading
	metrics drepo.Metrics
	l       *applogger.Logger

	mu     sync.Mutex
	assets map[string]*assetGate
	nowFn  func() time.Time
}

// NewGate creates a decision gate.
func NewGate(cfg GateConfig, auto *AutoTrading, metrics drepo.Metrics, l *applogger.Logger) *Gate {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	return &Gate{
		cfg:     cfg,
		auto:    auto,
		metrics: metrics,
		l:       l,
		assets:  make(map[string]*assetGate),
		nowFn:   time.Now,
	}
}

// Evaluate runs the state machine for one composite score. It returns nil
// while the asset is cooling down; otherwise a HOLD or directional decision.
func (g *Gate) Evaluate(cs *models.CompositeScore) *models.Decision {
	now := g.nowFn()

	g.mu.Lock()
	ag, ok := g.assets[cs.AssetID]
	if !ok {
		ag = &assetGate{state: StateIdle}
		g.assets[cs.AssetID] = ag
	}
	if ag.state == StateCooldown {
		if now.Before(ag.cooldownUntil) {
			g.mu.Unlock()
			return nil
		}
		ag.state = StateIdle
	}
	ag.state = StateEvaluating

	var action models.Action
	var threshold float64
	switch {
	case cs.Score >= g.cfg.BuyThreshold:
		action, threshold = models.ActionBuy, g.cfg.BuyThreshold
	case cs.Score <= g.cfg.SellThreshold:
		action, threshold = models.ActionSell, g.cfg.SellThreshold
	case cs.Score >= 0:
		action, threshold = models.ActionHold, g.cfg.BuyThreshold
	default:
		action, threshold = models.ActionHold, g.cfg.SellThreshold
	}

	if action.Directional() {
		ag.state = StateDecided
		ag.cooldownUntil = now.Add(g.cfg.Cooldown)
		ag.state = StateCooldown
	} else {
		// HOLD is not subject to cooldown
		ag.state = StateIdle
	}
	g.mu.Unlock()

	d := g.buildDecision(cs, action, threshold, now)
	if action.Directional() {
		g.l.Info("gate: directional decision",
			applogger.String("asset", d.AssetID),
			applogger.String("action", string(d.Action)),
			applogger.Any("score", d.Score),
			applogger.Bool("auto_trading", d.AutoTradingEnabled),
		)
	}
	if g.metrics != nil {
		g.metrics.RecordDecision(string(action))
	}
	return d
}

// HoldFailOpen returns a HOLD decision without touching the state machine.
// Used when an aggregation tick is abandoned and the asset fails open.
func (g *Gate) HoldFailOpen(assetID string) *models.Decision {
	now := g.nowFn()
	d := &models.Decision{
		ID:                 uuid.NewString(),
		AssetID:            assetID,
		Action:             models.ActionHold,
		Score:              0,
		ThresholdUsed:      g.cfg.BuyThreshold,
		AutoTradingEnabled: g.auto.Enabled(),
		Timestamp:          now,
	}
	if g.metrics != nil {
		g.metrics.RecordDecision(string(models.ActionHold))
	}
	return d
}

// State returns the current gate state for an asset.
func (g *Gate) State(assetID string) GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	ag, ok := g.assets[assetID]
	if !ok {
		return StateIdle
	}
	if ag.state == StateCooldown && !g.nowFn().Before(ag.cooldownUntil) {
		return StateIdle
	}
	return ag.state
}

func (g *Gate) buildDecision(cs *models.CompositeScore, action models.Action, threshold float64, now time.Time) *models.Decision {
	return &models.Decision{
		ID:                 uuid.NewString(),
		AssetID:            cs.AssetID,
		Action:             action,
		Score:              cs.Score,
		ThresholdUsed:      threshold,
		AutoTradingEnabled: g.auto.Enabled(),
		KindShares:         cs.KindShares,
		Timestamp:          now,
	}
}
