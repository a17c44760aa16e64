package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/domain/models"
	mid "TradePulse/internal/middleware"
)

// fakeStream fails its first read session with an error and serves queued
// signals on every session after a reconnect.
type fakeStream struct {
	mu         sync.Mutex
	sessions   int
	reconnects int
	connected  bool
	queued     []*models.Signal
}

func (f *fakeStream) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeStream) Subscribe(context.Context) error { return nil }

func (f *fakeStream) Read(context.Context) (<-chan *models.Signal, <-chan error) {
	f.mu.Lock()
	session := f.sessions
	f.sessions++
	queued := f.queued
	f.mu.Unlock()

	sigCh := make(chan *models.Signal, 16)
	errCh := make(chan error, 1)
	if session == 0 {
		errCh <- errors.New("read: connection reset")
		close(sigCh)
		close(errCh)
		return sigCh, errCh
	}
	for _, s := range queued {
		sigCh <- s
	}
	return sigCh, errCh
}

func (f *fakeStream) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeStream) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

type captureProc struct {
	mu  sync.Mutex
	got []*models.Signal
}

func (p *captureProc) Process(_ context.Context, s *models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, s)
	return nil
}

func (p *captureProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func TestCollectorResumesAfterReadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &fakeStream{queued: []*models.Signal{
		sig("BTC", models.KindPriceMove, 0.4, 1, time.Now()),
	}}
	proc := &captureProc{}
	pipe := mid.NewRealtimePipeline(proc, &stubMetrics{}, mid.WithMaxRPS(1000))
	c := NewSignalCollector(stream, nil, &stubMetrics{}, pipe)

	require.NoError(t, c.Start(ctx))

	assert.Eventually(t, func() bool { return proc.count() == 1 },
		time.Second, 10*time.Millisecond,
		"signals from the reconnected session must flow again")
	assert.Equal(t, 1, stream.reconnectCount())
}

func TestCollectorStopsWhenStreamEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan *models.Signal)
	errCh := make(chan error)
	close(sigCh)
	close(errCh)

	proc := &captureProc{}
	pipe := mid.NewRealtimePipeline(proc, &stubMetrics{}, mid.WithMaxRPS(1000))
	c := NewSignalCollector(&fakeStream{}, nil, &stubMetrics{}, pipe)

	done := make(chan struct{})
	go func() {
		c.consume(ctx, sigCh, errCh)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume must return once both stream channels are closed")
	}
	assert.Zero(t, proc.count())
}
