package resilience

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// DeadLetter is an outbound call that failed after retries, kept for a
// later replay.
type DeadLetter struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	Error        string          `json:"error"`
	ErrorType    string          `json:"error_type"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	NextRetryAt  time.Time       `json:"next_retry_at"`
	CreatedAt    time.Time       `json:"created_at"`
	LastFailedAt time.Time       `json:"last_failed_at"`
}

// NewDeadLetter records payload of kind as failed with err.
func NewDeadLetter(kind string, payload any, err error, maxAttempts int, now time.Time) (DeadLetter, error) {
	raw, mErr := json.Marshal(payload)
	if mErr != nil {
		return DeadLetter{}, eris.Wrapf(mErr, "resilience: marshal %s payload", kind)
	}
	return DeadLetter{
		ID:           uuid.NewString(),
		Kind:         kind,
		Payload:      raw,
		Error:        err.Error(),
		ErrorType:    Classify(err),
		Attempts:     1,
		MaxAttempts:  maxAttempts,
		NextRetryAt:  now.Add(DefaultRetryPolicy().MaxBackoff),
		CreatedAt:    now,
		LastFailedAt: now,
	}, nil
}

// CanRetry reports whether the entry may be replayed again. Permanent
// failures are not replayed.
func (d DeadLetter) CanRetry() bool {
	return d.ErrorType == "transient" && d.Attempts < d.MaxAttempts
}

// Failed records another failed replay, pushing the next retry out
// exponentially.
func (d *DeadLetter) Failed(err error, p RetryPolicy, now time.Time) {
	d.Attempts++
	d.Error = err.Error()
	d.ErrorType = Classify(err)
	d.LastFailedAt = now
	d.NextRetryAt = now.Add(p.Delay(d.Attempts))
}
