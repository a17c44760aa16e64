package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"

	"TradePulse/internal/service/ratelimit"
)

// KafkaSignalsHandler consumes normalized signal messages and feeds them into
// the engine. One handler serves one topic; the consumer dispatches by topic.
type KafkaSignalsHandler struct {
	topic   string
	engine  *Engine
	limiter *ratelimit.Limiter
	burst   float64
	rate    float64
	metrics drepo.Metrics
	l       *applogger.Logger
}

type IngestThrottle struct {
	Burst float64
	Rate  float64 // messages per second per source
}

func NewKafkaSignalsHandler(topic string, engine *Engine, throttle IngestThrottle, metrics drepo.Metrics, l *applogger.Logger) *KafkaSignalsHandler {
	h := &KafkaSignalsHandler{
		topic:   topic,
		engine:  engine,
		metrics: metrics,
		l:       l,
	}
	if throttle.Rate > 0 {
		h.limiter = ratelimit.New()
		h.burst = throttle.Burst
		h.rate = throttle.Rate
		if h.burst <= 0 {
			h.burst = throttle.Rate
		}
	}
	return h
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// incoming message schema: {source, asset_id, kind, value, confidence, ts, priority, payload}
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Source     string            `json:"source"`
		AssetID    string            `json:"asset_id"`
		Kind       string            `json:"kind"`
		Value      float64           `json:"value"`
		Confidence float64           `json:"confidence"`
		TS         int64             `json:"ts"`
		Priority   bool              `json:"priority"`
		PayloadTag string            `json:"payload_tag"`
		Payload    map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.TS > 1e11 { // ms
		m.TS = m.TS / 1000
	}

	if h.limiter != nil && !h.limiter.Allow(m.Source, h.burst, h.rate) {
		h.metrics.RecordError("ingest_throttled")
		return nil
	}

	s := &models.Signal{
		Source:     m.Source,
		AssetID:    m.AssetID,
		Kind:       models.Kind(m.Kind),
		Value:      m.Value,
		Confidence: m.Confidence,
		Timestamp:  time.Unix(m.TS, 0).UTC(),
		Priority:   m.Priority,
		Payload:    models.Payload{Tag: m.PayloadTag, Fields: m.Payload},
	}
	if err := h.engine.Publish(s); err != nil {
		h.l.Debug("ingest: rejected signal",
			applogger.String("source", m.Source),
			applogger.String("asset", m.AssetID),
			applogger.Error(err),
		)
		return nil // malformed payloads are counted, not retried
	}
	// the bus counts the accepted signal
	h.metrics.RecordLatency("ingest_e2e", time.Since(s.Timestamp).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
