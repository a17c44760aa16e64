package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/domain/models"
)

func newGate(t *testing.T, cfg GateConfig, auto bool) (*Gate, *time.Time) {
	t.Helper()
	g := NewGate(cfg, NewAutoTrading(auto), nil, newTestLogger(t))
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	g.nowFn = func() time.Time { return now }
	return g, &now
}

func score(asset string, v float64) *models.CompositeScore {
	return &models.CompositeScore{AssetID: asset, Score: v, ComputedAt: time.Now()}
}

func TestGateBuyAboveThreshold(t *testing.T) {
	g, _ := newGate(t, GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3}, true)

	d := g.Evaluate(score("BTC", 0.40))
	require.NotNil(t, d)
	assert.Equal(t, models.ActionBuy, d.Action)
	assert.Equal(t, 0.3, d.ThresholdUsed)
	assert.True(t, d.AutoTradingEnabled)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, StateCooldown, g.State("BTC"))
}

func TestGateSellBelowThreshold(t *testing.T) {
	g, _ := newGate(t, GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3}, true)

	d := g.Evaluate(score("BTC", -0.55))
	require.NotNil(t, d)
	assert.Equal(t, models.ActionSell, d.Action)
	assert.Equal(t, -0.3, d.ThresholdUsed)
}

func TestGateNeutralBandHoldsWithoutCooldown(t *testing.T) {
	g, _ := newGate(t, GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3}, true)

	d := g.Evaluate(score("BTC", 0.1))
	require.NotNil(t, d)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Equal(t, 0.3, d.ThresholdUsed, "a positive hold reports the buy side it failed to clear")
	assert.Equal(t, StateIdle, g.State("BTC"), "HOLD never starts a cooldown")

	d = g.Evaluate(score("BTC", -0.1))
	require.NotNil(t, d)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Equal(t, -0.3, d.ThresholdUsed)
	assert.Equal(t, StateIdle, g.State("BTC"))
}

func TestGateExactThresholdFires(t *testing.T) {
	g, _ := newGate(t, GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3}, true)

	d := g.Evaluate(score("BTC", 0.3))
	require.NotNil(t, d)
	assert.Equal(t, models.ActionBuy, d.Action)
}

func TestGateCooldownSuppressesFlapping(t *testing.T) {
	g, now := newGate(t, GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3, Cooldown: 15 * time.Minute}, true)

	require.NotNil(t, g.Evaluate(score("BTC", 0.5)))
	assert.Equal(t, StateCooldown, g.State("BTC"))

	// an opposite-direction score inside the cooldown produces nothing
	*now = now.Add(time.Minute)
	assert.Nil(t, g.Evaluate(score("BTC", -0.8)))
	assert.Nil(t, g.Evaluate(score("BTC", 0.9)))

	// once the window passes the gate is live again
	*now = now.Add(15 * time.Minute)
	assert.Equal(t, StateIdle, g.State("BTC"))
	d := g.Evaluate(score("BTC", -0.8))
	require.NotNil(t, d)
	assert.Equal(t, models.ActionSell, d.Action)
}

func TestGateCooldownIsPerAsset(t *testing.T) {
	g, _ := newGate(t, GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3, Cooldown: 15 * time.Minute}, true)

	require.NotNil(t, g.Evaluate(score("BTC", 0.5)))
	d := g.Evaluate(score("ETH", 0.5))
	require.NotNil(t, d, "ETH is unaffected by the BTC cooldown")
	assert.Equal(t, models.ActionBuy, d.Action)
}

func TestGateAutoTradingFlagSnapshot(t *testing.T) {
	auto := NewAutoTrading(false)
	g := NewGate(GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3}, auto, nil, newTestLogger(t))

	d := g.Evaluate(score("BTC", 0.5))
	require.NotNil(t, d)
	assert.Equal(t, models.ActionBuy, d.Action, "the switch never changes the verdict")
	assert.False(t, d.AutoTradingEnabled)

	auto.Set(true)
	d = g.Evaluate(score("ETH", 0.5))
	require.NotNil(t, d)
	assert.True(t, d.AutoTradingEnabled)
}

func TestGateHoldFailOpen(t *testing.T) {
	g, _ := newGate(t, GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3, Cooldown: 15 * time.Minute}, true)

	require.NotNil(t, g.Evaluate(score("BTC", 0.5)))
	before := g.State("BTC")

	d := g.HoldFailOpen("BTC")
	require.NotNil(t, d)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Zero(t, d.Score)
	assert.Equal(t, before, g.State("BTC"), "fail-open hold leaves the state machine untouched")

	// unknown assets fail open too, without creating state
	d = g.HoldFailOpen("XRP")
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Equal(t, StateIdle, g.State("XRP"))
}

func TestGateStateUnknownAssetIsIdle(t *testing.T) {
	g, _ := newGate(t, GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3}, true)
	assert.Equal(t, StateIdle, g.State("NOPE"))
}

func TestGateDecisionRecordsMetrics(t *testing.T) {
	m := &stubMetrics{}
	g := NewGate(GateConfig{BuyThreshold: 0.3, SellThreshold: -0.3}, NewAutoTrading(true), m, newTestLogger(t))

	g.Evaluate(score("BTC", 0.5))
	g.Evaluate(score("ETH", 0.1))
	assert.Equal(t, 1, m.decisions[string(models.ActionBuy)])
	assert.Equal(t, 1, m.decisions[string(models.ActionHold)])
}

func TestGateStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "evaluating", StateEvaluating.String())
	assert.Equal(t, "decided", StateDecided.String())
	assert.Equal(t, "cooldown", StateCooldown.String())
}
