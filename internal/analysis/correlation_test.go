package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/pkg/formulas"
)

func TestPairKeyCanonical(t *testing.T) {
	assert.Equal(t, "BTC|ETH", PairKey("BTC", "ETH"))
	assert.Equal(t, "BTC|ETH", PairKey("ETH", "BTC"))
}

func TestCoefficientUndefinedBelowTwoSamples(t *testing.T) {
	e := NewCorrelationEngine(WithWindowSize(8))
	e.AddSample("BTC", 1.0)
	e.AddSample("ETH", 2.0)

	_, ok := e.Coefficient("BTC", "ETH")
	assert.False(t, ok, "one paired sample is not enough")

	e.AddSample("BTC", 1.5)
	e.AddSample("ETH", 2.5)
	_, ok = e.Coefficient("BTC", "ETH")
	assert.True(t, ok)
}

func TestCoefficientUndefinedOnZeroVariance(t *testing.T) {
	e := NewCorrelationEngine(WithWindowSize(8))
	for i := 0; i < 5; i++ {
		e.AddSample("BTC", 3.0) // constant series
		e.AddSample("ETH", float64(i))
	}
	_, ok := e.Coefficient("BTC", "ETH")
	assert.False(t, ok, "zero variance must be undefined, not zero")
}

func TestSelfPairIsOne(t *testing.T) {
	e := NewCorrelationEngine()
	r, ok := e.Coefficient("BTC", "BTC")
	require.True(t, ok)
	assert.Equal(t, 1.0, r)
}

// The incremental accumulators must agree with a batch recomputation over the
// retained window, including after the ring buffer wraps.
func TestIncrementalMatchesBatch(t *testing.T) {
	const window = 16
	e := NewCorrelationEngine(WithWindowSize(window))

	// deterministic but non-trivial series
	x, y := 0.1, 0.9
	for i := 0; i < 3*window; i++ {
		x = math.Sin(float64(i)*0.7) + 0.05*float64(i%5)
		y = 0.6*x + math.Cos(float64(i)*1.3)
		e.AddSample("BTC", x)
		e.AddSample("ETH", y)

		got, ok := e.Coefficient("BTC", "ETH")
		if !ok {
			continue
		}
		var want float64
		e.EachWindow(func(pairKey string, interleaved []float64) {
			if pairKey != PairKey("BTC", "ETH") {
				return
			}
			xs := make([]float64, 0, len(interleaved)/2)
			ys := make([]float64, 0, len(interleaved)/2)
			for j := 0; j+1 < len(interleaved); j += 2 {
				xs = append(xs, interleaved[j])
				ys = append(ys, interleaved[j+1])
			}
			want = formulas.Correlation(xs, ys)
		})
		assert.InDelta(t, want, got, 1e-9, "iteration %d", i)
	}
}

func TestCoefficientClampedToUnitInterval(t *testing.T) {
	e := NewCorrelationEngine(WithWindowSize(32))
	for i := 0; i < 32; i++ {
		v := float64(i)
		e.AddSample("BTC", v)
		e.AddSample("ETH", 2*v+1) // perfectly linear
	}
	r, ok := e.Coefficient("BTC", "ETH")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)
	assert.LessOrEqual(t, r, 1.0)
}

// Workers feed the engine sequentially inside one tick; observations from the
// same round must land at the same window index, not lag-pair with the
// partner's previous round.
func TestSameRoundSamplesPairTogether(t *testing.T) {
	e := NewCorrelationEngine(WithWindowSize(8))
	for i := 0; i < 6; i++ {
		e.AddSample("BTC", float64(i))
		e.AddSample("ETH", float64(i))
	}
	r, ok := e.Coefficient("BTC", "ETH")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	m := e.Matrix()
	require.Len(t, m, 1)
	assert.Equal(t, 6, m[0].SampleCount, "one paired sample per completed round")
}

func TestInstrumentCapEvictsLeastRecentlyUpdated(t *testing.T) {
	e := NewCorrelationEngine(WithWindowSize(8), WithInstrumentLimit(3))
	now := time.Unix(1700000000, 0)
	e.nowFn = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	e.AddSample("A", 1)
	e.AddSample("B", 2)
	e.AddSample("C", 3)
	require.Equal(t, 3, e.TrackedInstruments())

	// refresh A so B becomes the oldest
	e.AddSample("A", 1.5)
	e.AddSample("D", 4)

	assert.Equal(t, 3, e.TrackedInstruments())
	assert.NotContains(t, e.Partners("A"), "B", "least recently updated instrument must be evicted")
	assert.Contains(t, e.Partners("A"), "D")

	// pairs involving the evicted instrument are gone
	_, ok := e.Coefficient("A", "B")
	assert.False(t, ok)
}

func TestSetInstrumentLimitShrinks(t *testing.T) {
	e := NewCorrelationEngine(WithInstrumentLimit(8))
	now := time.Unix(1700000000, 0)
	e.nowFn = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		e.AddSample(id, 1)
	}
	e.SetInstrumentLimit(2)
	assert.Equal(t, 2, e.TrackedInstruments())
	assert.Equal(t, 2, e.InstrumentLimit())
}

func TestMatrixIsStable(t *testing.T) {
	e := NewCorrelationEngine(WithWindowSize(8))
	for i := 0; i < 4; i++ {
		e.AddSample("BTC", float64(i))
		e.AddSample("ETH", float64(i*2))
		e.AddSample("SOL", float64(3-i))
	}
	m := e.Matrix()
	require.Len(t, m, 3)
	for i := 1; i < len(m); i++ {
		prev, cur := m[i-1], m[i]
		assert.True(t, prev.AssetID < cur.AssetID ||
			(prev.AssetID == cur.AssetID && prev.InstrumentID < cur.InstrumentID))
	}
}
