package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/config"
)

const (
	defaultCheckInterval = 5 * time.Minute

	// realertAfter is how long an alert that keeps firing stays quiet in
	// the chat after it was delivered.
	realertAfter = 6 * time.Hour
)

// Checker evaluates job health on a ticker and forwards new alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	// delivered maps alert keys to when they last reached the chat.
	delivered map[string]time.Time
	now       func() time.Time
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		delivered: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Run checks once immediately and then on every tick until ctx is
// cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: checker started",
		zap.Duration("interval", interval),
		zap.Strings("watched_jobs", c.cfg.WatchedJobs),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if ctx.Err() == nil {
			c.Check(ctx)
		}
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

func alertKey(a Alert) string {
	return string(a.Type) + "/" + a.Job
}

// Check collects one snapshot and returns how many alerts fire. Alerts
// delivered within realertAfter are not sent again; an alert that stops
// firing is forgotten so its next occurrence is sent right away.
func (c *Checker) Check(ctx context.Context) int {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		zap.L().Error("monitoring: collect failed", zap.Error(err))
		return 0
	}

	alerts := c.alerter.Evaluate(snap)
	now := c.now()
	firing := make(map[string]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		key := alertKey(a)
		firing[key] = true
		if last, ok := c.delivered[key]; ok && now.Sub(last) < realertAfter {
			continue
		}
		fresh = append(fresh, a)
	}
	for key := range c.delivered {
		if !firing[key] {
			delete(c.delivered, key)
		}
	}

	sent := 0
	for _, a := range fresh {
		if c.alerter.SendAlerts(ctx, []Alert{a}) == 1 || c.alerter.sender == nil {
			c.delivered[alertKey(a)] = now
			sent++
		}
	}
	if len(alerts) > 0 {
		zap.L().Info("monitoring: check complete",
			zap.Int("firing", len(alerts)),
			zap.Int("suppressed", len(alerts)-len(fresh)),
			zap.Int("sent", sent),
		)
	}
	return len(alerts)
}
