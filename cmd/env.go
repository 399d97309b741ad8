package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/artifact"
	"github.com/sells-group/leadops-cli/internal/fetcher"
	"github.com/sells-group/leadops-cli/internal/joblog"
	"github.com/sells-group/leadops-cli/internal/pipeline"
	"github.com/sells-group/leadops-cli/internal/postback"
	"github.com/sells-group/leadops-cli/internal/reconcile"
	"github.com/sells-group/leadops-cli/internal/resilience"
	"github.com/sells-group/leadops-cli/internal/store"
	"github.com/sells-group/leadops-cli/internal/taxonomy"
	"github.com/sells-group/leadops-cli/pkg/notion"
	"github.com/sells-group/leadops-cli/pkg/salesforce"
)

const (
	// notionRPS stays under the Notion API limit of 3 requests per second.
	notionRPS = 2.5

	breakerThreshold = 5
	breakerCooldown  = time.Minute
)

// env holds the initialized collaborators of one command invocation.
type env struct {
	Store     *store.PostgresStore
	Artifacts *artifact.Cache
	Pipeline  *pipeline.Pipeline
	Recorder  *joblog.Recorder
}

// Close releases all resources held by the env.
func (e *env) Close() {
	if e.Artifacts != nil {
		e.Artifacts.Close() //nolint:errcheck
	}
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

// Run executes fn as job under the job run recorder.
func (e *env) Run(ctx context.Context, job string, fn func(ctx context.Context) (int64, error)) error {
	return e.Recorder.Run(ctx, job, fn)
}

// initStore opens the Postgres store.
func initStore(ctx context.Context) (*store.PostgresStore, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is required")
	}
	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// initArtifacts opens and migrates the report artifact cache.
func initArtifacts(ctx context.Context) (*artifact.Cache, error) {
	cache, err := artifact.Open(cfg.Artifacts.Path)
	if err != nil {
		return nil, eris.Wrap(err, "init artifacts")
	}
	if err := cache.Migrate(ctx); err != nil {
		cache.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate artifacts")
	}
	return cache, nil
}

// initEnv validates the config for mode and wires the store, artifact
// cache, outbound clients and pipeline.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	e := &env{Store: st, Recorder: joblog.New(st)}

	cache, err := initArtifacts(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Artifacts = cache

	retry := resilience.PolicyFrom(cfg.Retry)
	opts := []pipeline.Option{pipeline.WithArtifacts(cache)}

	crm, err := initCRM(retry)
	if err != nil {
		e.Close()
		return nil, err
	}
	if crm != nil {
		opts = append(opts, pipeline.WithCRM(crm))
	}

	if cfg.Postback.Enabled {
		pb := postback.New(cfg.Postback, retry,
			postback.WithDeadLetters(st),
			postback.WithBreaker(resilience.NewBreaker(breakerThreshold, breakerCooldown)),
		)
		opts = append(opts, pipeline.WithPostbacks(pb))
	}

	var nc notion.Querier
	if cfg.Notion.Token != "" {
		nc = notion.NewClient(cfg.Notion.Token, notionRPS)
	}
	if src, err := taxonomy.NewGroupSource(cfg, nc); err != nil {
		zap.L().Debug("scoring group source unavailable", zap.Error(err))
	} else {
		opts = append(opts, pipeline.WithGroupSource(src))
	}

	sheets := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Retry: retry})
	e.Pipeline = pipeline.New(cfg, st, sheets, opts...)
	return e, nil
}

// initCRM connects to Salesforce when credentials are configured.
func initCRM(retry resilience.RetryPolicy) (reconcile.CRM, error) {
	sf := cfg.Salesforce
	if sf.ClientID == "" {
		return nil, nil
	}
	key, err := os.ReadFile(sf.KeyPath)
	if err != nil {
		return nil, eris.Wrapf(err, "read salesforce key %s", sf.KeyPath)
	}
	client, err := salesforce.Connect(salesforce.Creds{
		LoginURL:   sf.LoginURL,
		Username:   sf.Username,
		ClientID:   sf.ClientID,
		PrivateKey: string(key),
	}, salesforce.WithRateLimit(sf.RateLimit))
	if err != nil {
		return nil, eris.Wrap(err, "connect salesforce")
	}
	return reconcile.NewSalesforceCRM(client, retry), nil
}
