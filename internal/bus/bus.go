package bus

import (
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
)

// Option configures Bus.
type Option func(*Bus)

// WithQueueSize sets the bounded per-subscriber queue size.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithFingerprintTTL sets how long a signal fingerprint stays in the dedup cache.
func WithFingerprintTTL(ttl time.Duration) Option {
	return func(b *Bus) {
		if ttl > 0 {
			b.fpTTL = ttl
		}
	}
}

// Bus merges concurrent watcher outputs into per-asset ordered, deduplicated
// signal streams. Producers never block: each subscriber has a bounded queue
// and the oldest unread signal is dropped on overflow.
type Bus struct {
	mu        sync.Mutex
	subs      map[string][]*Subscription // asset id -> subscribers
	queueSize int
	metrics   drepo.Metrics

	// Dedup cache, two rotating generations so eviction is O(1) amortized.
	fpTTL     time.Duration
	fpCur     map[string]struct{}
	fpPrev    map[string]struct{}
	fpRotated time.Time
	nowFn     func() time.Time
}

// New creates an event bus.
func New(metrics drepo.Metrics, opts ...Option) *Bus {
	b := &Bus{
		subs:      make(map[string][]*Subscription),
		queueSize: 256,
		metrics:   metrics,
		fpTTL:     5 * time.Minute,
		fpCur:     make(map[string]struct{}),
		fpPrev:    make(map[string]struct{}),
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.fpRotated = b.nowFn()
	return b
}

// Publish accepts a normalized signal and fans it out to the asset's
// subscribers in arrival order. Duplicate fingerprints are dropped
// idempotently. Returns true when the signal was accepted.
func (b *Bus) Publish(s *models.Signal) bool {
	if s == nil {
		return false
	}
	fp := s.Fingerprint()

	b.mu.Lock()
	if b.seen(fp) {
		b.mu.Unlock()
		if b.metrics != nil {
			b.metrics.RecordDuplicate(s.Source)
		}
		return false
	}
	b.remember(fp)
	subs := b.subs[s.AssetID]
	for _, sub := range subs {
		sub.push(s)
	}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordSignal(s.Source, string(s.Kind))
	}
	for _, sub := range subs {
		sub.notify()
	}
	return true
}

// Subscribe registers a new per-asset subscriber. Each subscriber owns its
// queue, so a restarted consumer simply subscribes again.
func (b *Bus) Subscribe(assetID string) *Subscription {
	sub := &Subscription{
		bus:     b,
		assetID: assetID,
		queue:   make([]*models.Signal, 0, 16),
		wake:    make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.subs[assetID] = append(b.subs[assetID], sub)
	b.mu.Unlock()
	return sub
}

// Assets returns the asset ids with at least one subscriber.
func (b *Bus) Assets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.subs))
	for id := range b.subs {
		out = append(out, id)
	}
	return out
}

// seen/remember maintain the rotating fingerprint generations. Both run under
// b.mu. A fingerprint survives between one and two TTL periods, which is
// enough: anything older is already past the staleness window.
func (b *Bus) seen(fp string) bool {
	now := b.nowFn()
	if now.Sub(b.fpRotated) >= b.fpTTL {
		b.fpPrev = b.fpCur
		b.fpCur = make(map[string]struct{}, len(b.fpPrev))
		b.fpRotated = now
	}
	if _, ok := b.fpCur[fp]; ok {
		return true
	}
	_, ok := b.fpPrev[fp]
	return ok
}

func (b *Bus) remember(fp string) {
	b.fpCur[fp] = struct{}{}
}

// Subscription is one consumer's view of an asset's ordered signal stream.
type Subscription struct {
	bus     *Bus
	assetID string

	mu    sync.Mutex
	queue []*models.Signal
	wake  chan struct{}
}

// AssetID returns the subscribed asset.
func (s *Subscription) AssetID() string { return s.assetID }

// Wait returns a channel that receives when new signals are queued.
func (s *Subscription) Wait() <-chan struct{} { return s.wake }

// Drain returns the currently queued delivery cycle in arrival order and
// empties the queue. The returned batch is finite even under a hot producer.
func (s *Subscription) Drain() []*models.Signal {
	s.mu.Lock()
	out := s.queue
	s.queue = make([]*models.Signal, 0, 16)
	s.mu.Unlock()
	return out
}

// Len returns the number of queued signals.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Subscription) push(sig *models.Signal) {
	s.mu.Lock()
	if len(s.queue) >= s.bus.queueSize {
		// drop the oldest unread signal rather than block the producer
		copy(s.queue, s.queue[1:])
		s.queue = s.queue[:len(s.queue)-1]
		if s.bus.metrics != nil {
			s.bus.metrics.RecordOverflowDrop(s.assetID)
		}
	}
	s.queue = append(s.queue, sig)
	s.mu.Unlock()
}

func (s *Subscription) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
