package models

import (
	"fmt"
	"time"
)

// Kind identifies the class of a market signal.
type Kind string

const (
	KindWhaleTrade     Kind = "whale_trade"
	KindLiquidityFlow  Kind = "liquidity_flow"
	KindNarrative      Kind = "narrative"
	KindSentiment      Kind = "sentiment"
	KindPriceMove      Kind = "price_move"
	KindDerivatives    Kind = "derivatives"
	KindListing        Kind = "listing"
	KindStablecoinRisk Kind = "stablecoin_risk"
	KindGasAnomaly     Kind = "gas_anomaly"
)

// Signal is one normalized, timestamped observation from a watcher about one asset.
// Value is normalized to [-1, 1]; positive is bullish. Immutable once created.
type Signal struct {
	Source     string
	AssetID    string
	Kind       Kind
	Value      float64
	Confidence float64
	Timestamp  time.Time
	Priority   bool
	Payload    Payload
}

// Payload carries the source-specific detail of a signal as a tagged variant.
type Payload struct {
	Tag    string
	Fields map[string]string
}

// Fingerprint uniquely identifies a signal for deduplication.
func (s *Signal) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%d", s.Source, s.AssetID, s.Kind, s.Timestamp.UnixNano())
}

// Stale reports whether the signal is older than the staleness window at now.
func (s *Signal) Stale(now time.Time, window time.Duration) bool {
	return now.Sub(s.Timestamp) > window
}

// Validate checks the normalized-record contract at the ingestion boundary.
func (s *Signal) Validate() error {
	if s == nil {
		return fmt.Errorf("signal is nil")
	}
	if s.AssetID == "" {
		return fmt.Errorf("asset_id empty")
	}
	if s.Source == "" {
		return fmt.Errorf("source empty")
	}
	if s.Kind == "" {
		return fmt.Errorf("kind empty")
	}
	if s.Value < -1 || s.Value > 1 {
		return fmt.Errorf("value %f out of [-1,1]", s.Value)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %f out of [0,1]", s.Confidence)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp unset")
	}
	return nil
}
