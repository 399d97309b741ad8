package monitoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertJobFailureRate AlertType = "job_failure_rate"
	AlertJobStale       AlertType = "job_stale"
	AlertDeadLetters    AlertType = "dead_letters"
)

// minFinished is the number of finished runs below which the failure rate
// is not judged.
const minFinished = 3

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType `json:"type"`
	Job       string    `json:"job,omitempty"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender delivers alert text to the team chat.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Alerter evaluates a Snapshot against configured thresholds.
type Alerter struct {
	cfg    config.MonitoringConfig
	sender Sender
}

// NewAlerter creates an Alerter. A nil sender only logs alerts.
func NewAlerter(cfg config.MonitoringConfig, sender Sender) *Alerter {
	return &Alerter{cfg: cfg, sender: sender}
}

// Evaluate checks the snapshot against thresholds and returns any alerts,
// ordered by job name.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt

	jobs := make([]string, 0, len(snap.Jobs))
	for j := range snap.Jobs {
		jobs = append(jobs, j)
	}
	sort.Strings(jobs)

	for _, job := range jobs {
		s := snap.Jobs[job]
		if s.Complete+s.Failed >= minFinished && s.FailRate() > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertJobFailureRate,
				Job:      job,
				Severity: "high",
				Message: fmt.Sprintf("Job %s failed %d of %d runs in the last %dh (%.0f%%). Last error: %s",
					job, s.Failed, s.Complete+s.Failed, snap.LookbackHours, s.FailRate()*100, s.LastError),
				Timestamp: now,
			})
		}
	}

	if a.cfg.StaleAfterHours > 0 {
		limit := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		for _, job := range a.cfg.WatchedJobs {
			s := snap.Jobs[job]
			if s.LastSuccess != nil && now.Sub(*s.LastSuccess) <= limit {
				continue
			}
			last := "never"
			if s.LastSuccess != nil {
				last = s.LastSuccess.Format(time.RFC3339)
			}
			alerts = append(alerts, Alert{
				Type:      AlertJobStale,
				Job:       job,
				Severity:  "medium",
				Message:   fmt.Sprintf("Job %s has not completed for over %dh (last success: %s)", job, a.cfg.StaleAfterHours, last),
				Timestamp: now,
			})
		}
	}

	if a.cfg.DeadLetterThreshold > 0 && snap.DeadLetters > a.cfg.DeadLetterThreshold {
		alerts = append(alerts, Alert{
			Type:      AlertDeadLetters,
			Severity:  "high",
			Message:   fmt.Sprintf("%d purchase postbacks are waiting for replay (threshold %d)", snap.DeadLetters, a.cfg.DeadLetterThreshold),
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the chat. Returns the number of alerts
// successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	sent := 0
	for _, alert := range alerts {
		zap.L().Warn("monitoring: alert",
			zap.String("type", string(alert.Type)),
			zap.String("job", alert.Job),
			zap.String("message", alert.Message),
		)
		if a.sender == nil {
			continue
		}
		if err := a.sender.Send(ctx, "⚠ "+alert.Message); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}
