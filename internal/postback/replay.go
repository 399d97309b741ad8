package postback

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/resilience"
)

// DeadLetterStore is the queue Replay drains.
type DeadLetterStore interface {
	DeadLetters
	DueDeadLetters(ctx context.Context, kind string, now time.Time, limit int) ([]resilience.DeadLetter, error)
	UpdateDeadLetter(ctx context.Context, d resilience.DeadLetter) error
	RemoveDeadLetter(ctx context.Context, id string) error
}

// ReplayResult counts the outcome of a replay pass.
type ReplayResult struct {
	Sent      int
	Failed    int
	Abandoned int
}

// Replay resends due dead-lettered postbacks. Delivered entries are removed;
// failed ones are rescheduled until they run out of attempts.
func (c *Client) Replay(ctx context.Context, st DeadLetterStore, limit int) (ReplayResult, error) {
	var res ReplayResult
	due, err := st.DueDeadLetters(ctx, Kind, c.now(), limit)
	if err != nil {
		return res, eris.Wrap(err, "postback: list dead letters")
	}

	for i := range due {
		d := due[i]
		if !d.CanRetry() {
			res.Abandoned++
			continue
		}
		var pb Purchase
		if err := json.Unmarshal(d.Payload, &pb); err != nil {
			return res, eris.Wrapf(err, "postback: decode dead letter %s", d.ID)
		}

		if sendErr := c.Send(ctx, pb); sendErr != nil {
			d.Failed(sendErr, c.retry, c.now())
			if err := st.UpdateDeadLetter(ctx, d); err != nil {
				return res, eris.Wrapf(err, "postback: update dead letter %s", d.ID)
			}
			res.Failed++
			continue
		}
		if err := st.RemoveDeadLetter(ctx, d.ID); err != nil {
			return res, eris.Wrapf(err, "postback: remove dead letter %s", d.ID)
		}
		res.Sent++
	}

	zap.L().Info("postback: replayed dead letters",
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("abandoned", res.Abandoned),
	)
	return res, nil
}
