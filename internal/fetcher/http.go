package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadops-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBytes caps a downloaded export. Zero means 64 MiB.
	MaxBytes int64
	Retry    resilience.RetryPolicy
	Limiter  *rate.Limiter
}

// HTTPFetcher downloads published sheet exports with retry and rate
// limiting.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "leadops-cli/1.0"
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = 64 << 20
	}
	lim := opts.Limiter
	if lim == nil {
		lim = rate.NewLimiter(5, 5)
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: lim,
	}
}

// Download fetches url and returns the response body. 5xx and 429
// responses are retried.
func (f *HTTPFetcher) Download(ctx context.Context, url string) ([]byte, error) {
	p := f.opts.Retry
	p.OnRetry = resilience.LogRetry("fetcher", "download")

	data, err := resilience.RetryVal(ctx, p, func(ctx context.Context) ([]byte, error) {
		return f.get(ctx, url)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", url)
	}
	return data, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp.StatusCode, "download"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return nil, eris.Errorf("export larger than %d bytes", f.opts.MaxBytes)
	}
	return data, nil
}
