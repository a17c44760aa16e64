package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/domain/repository"
	pkghttp "TradePulse/pkg/http"
)

// WebhookAlerter posts every emitted decision to a configured webhook.
// Delivery is best-effort; the caller decides how to treat failures.
type WebhookAlerter struct {
	client *pkghttp.Client
	url    string
	token  string
}

// NewWebhookAlerter creates the alert gateway.
func NewWebhookAlerter(url, token string, timeout time.Duration) repository.Alerter {
	return &WebhookAlerter{
		client: pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		url:    url,
		token:  token,
	}
}

func (a *WebhookAlerter) Notify(ctx context.Context, d *models.Decision) error {
	if a.url == "" {
		return nil
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if a.token != "" {
		headers["Authorization"] = "Bearer " + a.token
	}
	err := a.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  http.MethodPost,
		URL:     a.url,
		Headers: headers,
		Body: map[string]interface{}{
			"id":           d.ID,
			"asset_id":     d.AssetID,
			"action":       string(d.Action),
			"score":        d.Score,
			"threshold":    d.ThresholdUsed,
			"auto_trading": d.AutoTradingEnabled,
			"ts":           d.Timestamp.UnixMilli(),
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("webhook notify: %w", err)
	}
	return nil
}
