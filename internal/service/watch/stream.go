package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a SignalStream backed by a watcher WebSocket feed.
// Watcher services push normalized signal frames over one multiplexed socket.
type Client struct {
	apiKey         string
	websocketURL   string
	assets         []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a watcher SignalStream.
func New(apiKey, websocketURL string, assets []string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) drepo.SignalStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		assets:         assets,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("watch connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.l.Info("watch: connected")
	return nil
}

// Subscribe subscribes to configured assets.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("watch not connected")
	}
	for _, a := range c.assets {
		msg := map[string]string{"type": "subscribe", "asset": a}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", a, err)
		}
		c.l.Info("watch: subscribed", applogger.String("asset", a))
	}
	return nil
}

type wsSignal struct {
	Source     string            `json:"source"`
	Asset      string            `json:"asset"`
	Kind       string            `json:"kind"`
	Value      float64           `json:"value"`
	Confidence float64           `json:"confidence"`
	T          int64             `json:"t"` // ms
	Priority   bool              `json:"priority"`
	PayloadTag string            `json:"payload_tag"`
	Payload    map[string]string `json:"payload"`
}

type wsMessage struct {
	Type string     `json:"type"`
	Data []wsSignal `json:"data"`
}

// Read streams Signal events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	signals := make(chan *models.Signal, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(signals)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("watch conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("watch read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-signal frames
					continue
				}
				if m.Type != "signal" {
					continue
				}
				for _, d := range m.Data {
					s := &models.Signal{
						Source:     d.Source,
						AssetID:    d.Asset,
						Kind:       models.Kind(d.Kind),
						Value:      d.Value,
						Confidence: d.Confidence,
						Timestamp:  time.UnixMilli(d.T).UTC(),
						Priority:   d.Priority,
						Payload:    models.Payload{Tag: d.PayloadTag, Fields: d.Payload},
					}
					select {
					case signals <- s:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return signals, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
