package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/plannetic/compliance-cli/internal/config"
)

// Checker runs periodic reminder checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.ReminderConfig
}

// NewChecker creates a background reminder checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.ReminderConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	log := zap.L().With(zap.String("component", "reminder.checker"))
	log.Info("starting reminder checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reminder checker stopped")
			return
		case <-ticker.C:
			if _, err := c.CheckOnce(ctx); err != nil {
				log.Error("reminder: check failed", zap.Error(err))
			}
		}
	}
}

// CheckOnce collects a snapshot, evaluates it and delivers any alerts.
// Returns the number of alerts sent.
func (c *Checker) CheckOnce(ctx context.Context) (int, error) {
	snap, err := c.collector.Collect(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("reminder: no alerts triggered")
		return 0, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("reminder: check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return sent, nil
}
