// Package postback notifies the partner network about purchases.
package postback

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/config"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/resilience"
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// Kind is the dead letter kind of failed purchase postbacks.
const Kind = "purchase_postback"

// Purchase is the query a purchase postback carries.
type Purchase struct {
	Email    string `json:"email"`
	ActionID string `json:"action_id"`
	Sum      int64  `json:"sum"`
	ClickID  string `json:"clickid"`
}

// FromPayment builds the postback of a payment. The click id is the
// utm_content of the payment's tracking URL.
func FromPayment(p model.Payment) Purchase {
	return Purchase{
		Email:    p.Email,
		ActionID: "neural-" + p.CRMID,
		Sum:      p.Profit,
		ClickID:  tracking.Parse(p.URL).Param("utm_content"),
	}
}

// DeadLetters stores postbacks that failed after retries.
type DeadLetters interface {
	EnqueueDeadLetter(ctx context.Context, d resilience.DeadLetter) error
}

// Client sends postbacks as GET requests.
type Client struct {
	endpoint string
	event    string
	http     *http.Client
	retry    resilience.RetryPolicy
	breaker  *resilience.Breaker
	dlq      DeadLetters
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithDeadLetters records postbacks that still fail after retries.
func WithDeadLetters(d DeadLetters) Option {
	return func(c *Client) { c.dlq = d }
}

// WithBreaker guards the endpoint with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// New creates a Client from configuration.
func New(cfg config.PostbackConfig, retry resilience.RetryPolicy, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry.OnRetry = resilience.LogRetry("postback", cfg.Event)
	c := &Client{
		endpoint: cfg.URL,
		event:    cfg.Event,
		http:     &http.Client{Timeout: timeout},
		retry:    retry,
		breaker:  resilience.NewBreaker(5, time.Minute),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Purchase sends the postback of p. A postback that still fails after
// retries is recorded as a dead letter when a queue is configured.
func (c *Client) Purchase(ctx context.Context, p model.Payment) error {
	pb := FromPayment(p)
	err := c.Send(ctx, pb)
	if err == nil || c.dlq == nil {
		return err
	}

	d, dErr := resilience.NewDeadLetter(Kind, pb, err, c.retry.MaxAttempts, c.now())
	if dErr != nil {
		return eris.Wrap(dErr, "postback: build dead letter")
	}
	if qErr := c.dlq.EnqueueDeadLetter(ctx, d); qErr != nil {
		zap.L().Error("postback: enqueue dead letter", zap.String("action_id", pb.ActionID), zap.Error(qErr))
	}
	return err
}

// Send delivers one postback with retries.
func (c *Client) Send(ctx context.Context, pb Purchase) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return eris.Wrap(err, "postback: parse endpoint")
	}
	q := u.Query()
	q.Set("event", c.event)
	q.Set("email", pb.Email)
	q.Set("action_id", pb.ActionID)
	q.Set("sum", strconv.FormatInt(pb.Sum, 10))
	q.Set("clickid", pb.ClickID)
	u.RawQuery = q.Encode()
	target := u.String()

	return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		return c.breaker.Call(ctx, func(ctx context.Context) error {
			return c.get(ctx, target)
		})
	})
}

func (c *Client) get(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return eris.Wrap(err, "postback: create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "postback: send")
	}
	defer resp.Body.Close() //nolint:errcheck
	return resilience.CheckStatus(resp.StatusCode, "postback")
}
