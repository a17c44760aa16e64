package bus

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/domain/models"
)

type countingMetrics struct {
	signals    int
	duplicates int
	drops      int
}

func (m *countingMetrics) RecordSignal(string, string)   { m.signals++ }
func (m *countingMetrics) RecordDuplicate(string)        { m.duplicates++ }
func (m *countingMetrics) RecordOverflowDrop(string)     { m.drops++ }
func (m *countingMetrics) RecordStale(string)            {}
func (m *countingMetrics) RecordDecision(string)         {}
func (m *countingMetrics) RecordTickAbandoned(string)    {}
func (m *countingMetrics) RecordError(string)            {}
func (m *countingMetrics) RecordLatency(string, float64) {}
func (m *countingMetrics) RecordScore(string, float64)   {}

func testSignal(asset string, seq int) *models.Signal {
	return &models.Signal{
		Source:     "whale-watcher",
		AssetID:    asset,
		Kind:       models.KindWhaleTrade,
		Value:      0.5,
		Confidence: 1,
		Timestamp:  time.Unix(1700000000, int64(seq)),
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	m := &countingMetrics{}
	b := New(m)
	sub := b.Subscribe("BTC")

	s := testSignal("BTC", 1)
	require.True(t, b.Publish(s))
	require.False(t, b.Publish(s), "same fingerprint must be dropped")
	require.False(t, b.Publish(s))

	got := sub.Drain()
	assert.Len(t, got, 1)
	assert.Equal(t, 1, m.signals)
	assert.Equal(t, 2, m.duplicates)
}

func TestPublishPreservesArrivalOrder(t *testing.T) {
	b := New(&countingMetrics{})
	sub := b.Subscribe("ETH")

	for i := 0; i < 10; i++ {
		require.True(t, b.Publish(testSignal("ETH", i)))
	}

	got := sub.Drain()
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp) || got[i].Timestamp.Equal(got[i-1].Timestamp),
			"delivery order must match arrival order")
	}
	assert.Equal(t, 0, sub.Len())
}

func TestOverflowDropsOldest(t *testing.T) {
	m := &countingMetrics{}
	b := New(m, WithQueueSize(3))
	sub := b.Subscribe("SOL")

	for i := 0; i < 5; i++ {
		b.Publish(testSignal("SOL", i))
	}

	got := sub.Drain()
	require.Len(t, got, 3)
	// the two oldest were evicted
	assert.Equal(t, int64(2), got[0].Timestamp.UnixNano()%1e9)
	assert.Equal(t, int64(4), got[2].Timestamp.UnixNano()%1e9)
	assert.Equal(t, 2, m.drops)
}

func TestPublishRoutesByAsset(t *testing.T) {
	b := New(&countingMetrics{})
	btc := b.Subscribe("BTC")
	eth := b.Subscribe("ETH")

	b.Publish(testSignal("BTC", 1))
	b.Publish(testSignal("ETH", 2))
	b.Publish(testSignal("ETH", 3))

	assert.Equal(t, 1, btc.Len())
	assert.Equal(t, 2, eth.Len())
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, b.Assets())
}

func TestFingerprintExpiresAfterRotation(t *testing.T) {
	b := New(&countingMetrics{}, WithFingerprintTTL(time.Minute))
	now := time.Unix(1700000000, 0)
	b.nowFn = func() time.Time { return now }
	b.fpRotated = now
	b.Subscribe("BTC")

	s := testSignal("BTC", 1)
	require.True(t, b.Publish(s))
	require.False(t, b.Publish(s))

	// one rotation later the fingerprint is still in the previous generation
	now = now.Add(time.Minute)
	require.False(t, b.Publish(s))

	// two rotations later it is forgotten
	now = now.Add(2 * time.Minute)
	require.True(t, b.Publish(s))
}

func TestSubscriberWake(t *testing.T) {
	b := New(&countingMetrics{})
	sub := b.Subscribe("BTC")

	b.Publish(testSignal("BTC", 1))
	select {
	case <-sub.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected wake notification")
	}
}

func TestManySubscribersSeeSameStream(t *testing.T) {
	b := New(&countingMetrics{})
	subs := make([]*Subscription, 4)
	for i := range subs {
		subs[i] = b.Subscribe("BTC")
	}
	for i := 0; i < 8; i++ {
		b.Publish(testSignal("BTC", i))
	}
	for i, sub := range subs {
		assert.Equal(t, 8, sub.Len(), fmt.Sprintf("subscriber %d", i))
	}
}
