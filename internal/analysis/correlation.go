package analysis

import (
	"math"
	"sort"
	"sync"
	"time"
)

// PairKey builds the canonical key for an unordered instrument pair.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// pairStat keeps a rolling window of paired samples and the incremental
// accumulators needed to recompute Pearson in O(1) per new sample. Arrivals
// for the two sides are matched by round: a paired sample is emitted once
// both sides have reported since the last emission, so observations from the
// same tick land at the same window index.
type pairStat struct {
	xs, ys []float64
	head   int
	n      int

	sumX, sumY   float64
	sumXX, sumYY float64
	sumXY        float64

	pendX, pendY       float64
	hasPendX, hasPendY bool
}

func newPairStat(window int) *pairStat {
	return &pairStat{xs: make([]float64, window), ys: make([]float64, window)}
}

// offer stages one side of the current round. If the same side reports twice
// before the other completes the round, the newer value wins.
func (p *pairStat) offer(isX bool, v float64) {
	if isX {
		p.pendX, p.hasPendX = v, true
	} else {
		p.pendY, p.hasPendY = v, true
	}
	if p.hasPendX && p.hasPendY {
		p.push(p.pendX, p.pendY)
		p.hasPendX, p.hasPendY = false, false
	}
}

func (p *pairStat) push(x, y float64) {
	if p.n == len(p.xs) {
		ox, oy := p.xs[p.head], p.ys[p.head]
		p.sumX -= ox
		p.sumY -= oy
		p.sumXX -= ox * ox
		p.sumYY -= oy * oy
		p.sumXY -= ox * oy
		p.head = (p.head + 1) % len(p.xs)
		p.n--
	}
	idx := (p.head + p.n) % len(p.xs)
	p.xs[idx], p.ys[idx] = x, y
	p.n++
	p.sumX += x
	p.sumY += y
	p.sumXX += x * x
	p.sumYY += y * y
	p.sumXY += x * y
}

// coefficient returns the Pearson coefficient clamped to [-1,1]. ok is false
// while fewer than two samples are held or a side has zero variance; callers
// must treat that as undefined, not as zero.
func (p *pairStat) coefficient() (float64, bool) {
	if p.n < 2 {
		return 0, false
	}
	n := float64(p.n)
	cov := n*p.sumXY - p.sumX*p.sumY
	varX := n*p.sumXX - p.sumX*p.sumX
	varY := n*p.sumYY - p.sumY*p.sumY
	if varX <= 0 || varY <= 0 {
		return 0, false
	}
	r := cov / math.Sqrt(varX*varY)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}

// window returns the paired samples in insertion order.
func (p *pairStat) window() (xs, ys []float64) {
	xs = make([]float64, 0, p.n)
	ys = make([]float64, 0, p.n)
	for i := 0; i < p.n; i++ {
		idx := (p.head + i) % len(p.xs)
		xs = append(xs, p.xs[idx])
		ys = append(ys, p.ys[idx])
	}
	return xs, ys
}

type instrument struct {
	latest    float64
	hasLatest bool
	updatedAt time.Time
}

// PairCorrelation is one entry of the correlation matrix view.
type PairCorrelation struct {
	AssetID      string
	InstrumentID string
	Coefficient  float64
	Defined      bool
	WindowSize   int
	SampleCount  int
}

// CorrelationOption configures the engine.
type CorrelationOption func(*CorrelationEngine)

// WithWindowSize sets the rolling sample window per pair.
func WithWindowSize(n int) CorrelationOption {
	return func(e *CorrelationEngine) {
		if n >= 2 {
			e.window = n
		}
	}
}

// WithInstrumentLimit caps the number of concurrently tracked instruments.
func WithInstrumentLimit(n int) CorrelationOption {
	return func(e *CorrelationEngine) {
		if n >= 2 {
			e.limit = n
		}
	}
}

// CorrelationEngine maintains rolling pairwise correlation statistics for a
// bounded set of instruments. The least recently updated instrument is
// evicted when a new one would exceed the cap.
type CorrelationEngine struct {
	mu     sync.RWMutex
	window int
	limit  int

	instruments map[string]*instrument
	pairs       map[string]*pairStat
	nowFn       func() time.Time
}

// NewCorrelationEngine creates an engine with the given options.
func NewCorrelationEngine(opts ...CorrelationOption) *CorrelationEngine {
	e := &CorrelationEngine{
		window:      64,
		limit:       16,
		instruments: make(map[string]*instrument),
		pairs:       make(map[string]*pairStat),
		nowFn:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddSample records a new observation for an instrument. The observation is
// staged with every tracked partner; each pair accumulates one sample per
// round, once both sides have reported, so co-arriving observations always
// pair at the same index.
func (e *CorrelationEngine) AddSample(assetID string, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instruments[assetID]
	if !ok {
		if len(e.instruments) >= e.limit {
			e.evictOldestLocked()
		}
		inst = &instrument{}
		e.instruments[assetID] = inst
	}
	inst.updatedAt = e.nowFn()

	for other, oi := range e.instruments {
		if other == assetID {
			continue
		}
		key := PairKey(assetID, other)
		ps, ok := e.pairs[key]
		if !ok {
			ps = newPairStat(e.window)
			e.pairs[key] = ps
			// a fresh pair opens its first round with the partner's
			// current value
			if oi.hasLatest {
				ps.offer(other < assetID, oi.latest)
			}
		}
		ps.offer(assetID < other, value)
	}

	inst.latest = value
	inst.hasLatest = true
}

// Coefficient returns the correlation for a pair. Self pairs are 1.0 by
// definition. ok is false when the coefficient is undefined.
func (e *CorrelationEngine) Coefficient(a, b string) (float64, bool) {
	if a == b {
		return 1.0, true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	ps, ok := e.pairs[PairKey(a, b)]
	if !ok {
		return 0, false
	}
	return ps.coefficient()
}

// Partners returns the instruments currently tracked alongside assetID.
func (e *CorrelationEngine) Partners(assetID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.instruments))
	for id := range e.instruments {
		if id != assetID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Matrix returns a stable view of all tracked pairs for the control surface.
func (e *CorrelationEngine) Matrix() []PairCorrelation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]PairCorrelation, 0, len(e.pairs))
	for key, ps := range e.pairs {
		a, b := splitPairKey(key)
		r, ok := ps.coefficient()
		out = append(out, PairCorrelation{
			AssetID:      a,
			InstrumentID: b,
			Coefficient:  r,
			Defined:      ok,
			WindowSize:   e.window,
			SampleCount:  ps.n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetID != out[j].AssetID {
			return out[i].AssetID < out[j].AssetID
		}
		return out[i].InstrumentID < out[j].InstrumentID
	})
	return out
}

// EachWindow visits every pair's sample window, interleaved x0,y0,x1,y1...
// Used to mirror windows into the cache gateway.
func (e *CorrelationEngine) EachWindow(fn func(pairKey string, interleaved []float64)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for key, ps := range e.pairs {
		xs, ys := ps.window()
		buf := make([]float64, 0, 2*len(xs))
		for i := range xs {
			buf = append(buf, xs[i], ys[i])
		}
		fn(key, buf)
	}
}

// SetInstrumentLimit adjusts the tracked-instrument cap at runtime, evicting
// least recently updated instruments as needed.
func (e *CorrelationEngine) SetInstrumentLimit(n int) {
	if n < 2 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limit = n
	for len(e.instruments) > e.limit {
		e.evictOldestLocked()
	}
}

// InstrumentLimit returns the current cap.
func (e *CorrelationEngine) InstrumentLimit() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limit
}

// TrackedInstruments returns the number of instruments currently held.
func (e *CorrelationEngine) TrackedInstruments() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.instruments)
}

func (e *CorrelationEngine) evictOldestLocked() {
	var victim string
	var oldest time.Time
	for id, inst := range e.instruments {
		if victim == "" || inst.updatedAt.Before(oldest) {
			victim = id
			oldest = inst.updatedAt
		}
	}
	if victim == "" {
		return
	}
	delete(e.instruments, victim)
	for key := range e.pairs {
		a, b := splitPairKey(key)
		if a == victim || b == victim {
			delete(e.pairs, key)
		}
	}
}

func splitPairKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
