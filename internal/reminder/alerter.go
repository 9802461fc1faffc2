package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/plannetic/compliance-cli/internal/config"
	"github.com/plannetic/compliance-cli/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertReviewsOverdue  AlertType = "reviews_overdue"
	AlertReviewsUpcoming AlertType = "reviews_upcoming"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns a review Snapshot into alerts and delivers them to the
// configured webhook. Delivery is rate limited so a long backlog of
// reminders cannot flood the receiving system.
type Alerter struct {
	cfg     config.ReminderConfig
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given reminder config.
func NewAlerter(cfg config.ReminderConfig) *Alerter {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
}

// Evaluate returns the alerts a snapshot warrants.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if len(snap.Overdue) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertReviewsOverdue,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d compliance review(s) overdue as of %s",
				len(snap.Overdue), snap.AsOf.Format("2006-01-02"),
			),
			Details: map[string]any{
				"count": len(snap.Overdue),
				"items": snap.Overdue,
			},
			Timestamp: now,
		})
	}

	if len(snap.Upcoming) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertReviewsUpcoming,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d compliance review(s) due within %d days",
				len(snap.Upcoming), snap.LeadDays,
			),
			Details: map[string]any{
				"count":     len(snap.Upcoming),
				"lead_days": snap.LeadDays,
				"items":     snap.Upcoming,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.limiter.Wait(ctx); err != nil {
			zap.L().Warn("reminder: rate limiter interrupted", zap.Error(err))
			return sent
		}
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("reminder: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("reminder: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL, retrying
// transient delivery failures with backoff.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "reminder: marshal alert")
	}

	retry := a.retry
	retry.OnRetry = resilience.RetryLogger("reminder.webhook")

	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "reminder: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "reminder: webhook request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 400 {
			statusErr := eris.Errorf("reminder: webhook returned status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return statusErr
		}
		return nil
	})
}
