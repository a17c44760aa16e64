package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/domain/repository"
	pkghttp "TradePulse/pkg/http"
	applogger "TradePulse/pkg/logger"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// HTTPOrderExecutor submits orders to an execution service. In paper mode it
// only logs the order it would have placed.
type HTTPOrderExecutor struct {
	client *pkghttp.Client
	url    string
	apiKey string
	mode   string
	l      *applogger.Logger
}

// NewHTTPOrderExecutor creates the execution gateway. Unknown modes fall back
// to paper.
func NewHTTPOrderExecutor(url, apiKey, mode string, timeout time.Duration, l *applogger.Logger) repository.OrderExecutor {
	if mode != ModeLive {
		mode = ModePaper
	}
	return &HTTPOrderExecutor{
		client: pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		url:    url,
		apiKey: apiKey,
		mode:   mode,
		l:      l,
	}
}

func (e *HTTPOrderExecutor) Mode() string { return e.mode }

func (e *HTTPOrderExecutor) SubmitOrder(ctx context.Context, d *models.Decision) error {
	if !d.Action.Directional() {
		return fmt.Errorf("non-directional action %s", d.Action)
	}
	if e.mode == ModePaper {
		e.l.Info("executor: paper order",
			applogger.String("asset", d.AssetID),
			applogger.String("action", string(d.Action)),
			applogger.Float64("score", d.Score),
		)
		return nil
	}
	err := e.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: http.MethodPost,
		URL:    e.url + "/orders",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-API-Key":    e.apiKey,
		},
		Body: map[string]interface{}{
			"decision_id": d.ID,
			"asset_id":    d.AssetID,
			"side":        string(d.Action),
			"score":       d.Score,
			"ts":          d.Timestamp.UnixMilli(),
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	return nil
}
