package usecase

import (
	"context"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	mid "TradePulse/internal/middleware"
)

// SignalCollector reads the watcher stream and feeds signals to the engine,
// optionally through the realtime pipeline.
type SignalCollector struct {
	stream  drepo.SignalStream
	engine  *Engine
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
}

// NewSignalCollector creates a new SignalCollector instance.
func NewSignalCollector(stream drepo.SignalStream, engine *Engine, metrics drepo.Metrics, pipe *mid.RealtimePipeline) *SignalCollector {
	return &SignalCollector{stream: stream, engine: engine, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the watcher stream is connected.
func (c *SignalCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	sigCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, sigCh, errCh)
	return nil
}

func (c *SignalCollector) consume(ctx context.Context, sigCh <-chan *models.Signal, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				if sigCh == nil {
					return
				}
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
				// the stream's read session ended with the error;
				// a reconnected socket needs a fresh one
				sigCh, errCh = c.resume(ctx)
				if sigCh == nil {
					return
				}
			}
		case s, ok := <-sigCh:
			if !ok {
				sigCh = nil
				if errCh == nil {
					return
				}
				continue
			}
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.engine.Publish(s)
			}
		}
	}
}

// resume reconnects until it succeeds or the context ends, then opens a new
// read session. The stream client paces retries with its reconnect delay.
func (c *SignalCollector) resume(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream")
			continue
		}
		return c.stream.Read(ctx)
	}
}

// Shutdown stops pipeline and closes stream.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
