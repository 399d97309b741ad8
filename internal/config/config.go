package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Sheets     SheetsConfig     `yaml:"sheets" mapstructure:"sheets"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Dedup      DedupConfig      `yaml:"dedup" mapstructure:"dedup"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts" mapstructure:"artifacts"`
	Postback   PostbackConfig   `yaml:"postback" mapstructure:"postback"`
	Digest     DigestConfig     `yaml:"digest" mapstructure:"digest"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the report API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// SalesforceConfig holds CRM JWT auth settings.
type SalesforceConfig struct {
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// NotionConfig holds Notion API credentials and database IDs.
type NotionConfig struct {
	Token          string `yaml:"token" mapstructure:"token"`
	ScoringGroupDB string `yaml:"scoring_group_db" mapstructure:"scoring_group_db"`
}

// SheetsConfig locates the spreadsheet exports the batch jobs read.
type SheetsConfig struct {
	LedgerPath    string `yaml:"ledger_path" mapstructure:"ledger_path"`
	LedgerSheet   string `yaml:"ledger_sheet" mapstructure:"ledger_sheet"`
	LandingPath   string `yaml:"landing_path" mapstructure:"landing_path"`
	LandingSheet  string `yaml:"landing_sheet" mapstructure:"landing_sheet"`
	ChannelsSheet string `yaml:"channels_sheet" mapstructure:"channels_sheet"`
	ExpensesSheet string `yaml:"expenses_sheet" mapstructure:"expenses_sheet"`
}

// DaysBucket awards Points to leads at most MaxDays old.
type DaysBucket struct {
	MaxDays int `yaml:"max_days" mapstructure:"max_days"`
	Points  int `yaml:"points" mapstructure:"points"`
}

// ScoringConfig holds the lead scoring tables.
type ScoringConfig struct {
	Days             []DaysBucket   `yaml:"days" mapstructure:"days"`
	FloorPoints      int            `yaml:"floor_points" mapstructure:"floor_points"`
	Channels         map[string]int `yaml:"channels" mapstructure:"channels"`
	BaseOfferPenalty int            `yaml:"base_offer_penalty" mapstructure:"base_offer_penalty"`
	NoAnswersBonus   int            `yaml:"no_answers_bonus" mapstructure:"no_answers_bonus"`
	BaseOfferGroup   string         `yaml:"base_offer_group" mapstructure:"base_offer_group"`
	BatchSize        int            `yaml:"batch_size" mapstructure:"batch_size"`
	GroupsSource     string         `yaml:"groups_source" mapstructure:"groups_source"`
	GroupsFile       string         `yaml:"groups_file" mapstructure:"groups_file"`
}

// DedupConfig configures lead upload matching.
type DedupConfig struct {
	WindowHours     int    `yaml:"window_hours" mapstructure:"window_hours"`
	LookbackDays    int    `yaml:"lookback_days" mapstructure:"lookback_days"`
	AmbiguousPolicy string `yaml:"ambiguous_policy" mapstructure:"ambiguous_policy"`
}

// ReconcileConfig configures payment reconciliation.
type ReconcileConfig struct {
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Timezone  string `yaml:"timezone" mapstructure:"timezone"`
}

// ReportConfig configures report assembly.
type ReportConfig struct {
	StartDate string `yaml:"start_date" mapstructure:"start_date"`
	Weeks     int    `yaml:"weeks" mapstructure:"weeks"`
}

// ArtifactsConfig locates the precomputed report artifact cache.
type ArtifactsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostbackConfig configures purchase postbacks.
type PostbackConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Event       string `yaml:"event" mapstructure:"event"`
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DigestConfig configures the daily chat digest.
type DigestConfig struct {
	WebhookURL   string `yaml:"webhook_url" mapstructure:"webhook_url"`
	ChatID       string `yaml:"chat_id" mapstructure:"chat_id"`
	IntervalSecs int    `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// TemporalConfig configures the workflow worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// RetryConfig configures retries of outbound calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// MonitoringConfig configures the background health checker of serve.
type MonitoringConfig struct {
	Enabled              bool     `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs    int      `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int      `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64  `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DeadLetterThreshold  int      `yaml:"dead_letter_threshold" mapstructure:"dead_letter_threshold"`
	StaleAfterHours      int      `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	WatchedJobs          []string `yaml:"watched_jobs" mapstructure:"watched_jobs"`
}

// Load reads configuration from ./config.yaml, if present, and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and environment. An empty path
// falls back to an optional config.yaml in the working directory; a named
// file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("LEADOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 20)
	v.SetDefault("sheets.ledger_sheet", "Все оплаты")
	v.SetDefault("sheets.landing_sheet", "Лендинги платный трафик и база")
	v.SetDefault("sheets.channels_sheet", "Каналы")
	v.SetDefault("sheets.expenses_sheet", "Расходы")
	v.SetDefault("scoring.floor_points", -60)
	v.SetDefault("scoring.base_offer_penalty", -15)
	v.SetDefault("scoring.no_answers_bonus", 100)
	v.SetDefault("scoring.base_offer_group", "База оффер")
	v.SetDefault("scoring.batch_size", 1000)
	v.SetDefault("scoring.groups_source", "notion")
	v.SetDefault("scoring.channels", map[string]int{"youtube": 10, "tg": 5, "direct": 5})
	v.SetDefault("scoring.days", []map[string]int{
		{"max_days": 0, "points": 20},
		{"max_days": 1, "points": 15},
		{"max_days": 2, "points": 12},
		{"max_days": 3, "points": 6},
		{"max_days": 7, "points": 1},
		{"max_days": 14, "points": 0},
		{"max_days": 21, "points": -15},
		{"max_days": 28, "points": -25},
		{"max_days": 32, "points": -50},
	})
	v.SetDefault("dedup.window_hours", 16)
	v.SetDefault("dedup.lookback_days", 28)
	v.SetDefault("dedup.ambiguous_policy", "new")
	v.SetDefault("reconcile.batch_size", 1000)
	v.SetDefault("reconcile.timezone", "Europe/Moscow")
	v.SetDefault("report.start_date", "2023-08-03")
	v.SetDefault("report.weeks", 8)
	v.SetDefault("artifacts.path", "artifacts.db")
	v.SetDefault("postback.event", "leadgrab_purchase")
	v.SetDefault("postback.timeout_secs", 10)
	v.SetDefault("digest.interval_secs", 4)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "leadops")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.dead_letter_threshold", 20)
	v.SetDefault("monitoring.stale_after_hours", 6)
	v.SetDefault("monitoring.watched_jobs", []string{"payments_sync", "score", "payments_collect"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command mode needs are present.
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, key string) {
		if !ok {
			errs = append(errs, key+" is required")
		}
	}

	switch mode {
	case "store":
		require(c.Store.DatabaseURL != "", "store.database_url")
	case "sync":
		require(c.Store.DatabaseURL != "", "store.database_url")
		require(c.Sheets.LandingPath != "", "sheets.landing_path")
		if c.Scoring.GroupsSource == "notion" {
			require(c.Notion.Token != "", "notion.token")
			require(c.Notion.ScoringGroupDB != "", "notion.scoring_group_db")
		}
	case "payments":
		require(c.Store.DatabaseURL != "", "store.database_url")
		require(c.Sheets.LedgerPath != "", "sheets.ledger_path")
		require(c.Salesforce.ClientID != "", "salesforce.client_id")
		require(c.Salesforce.Username != "", "salesforce.username")
		require(c.Salesforce.KeyPath != "", "salesforce.key_path")
		if c.Postback.Enabled {
			require(c.Postback.URL != "", "postback.url")
		}
	case "score", "report":
		require(c.Store.DatabaseURL != "", "store.database_url")
	case "digest":
		require(c.Store.DatabaseURL != "", "store.database_url")
		require(c.Digest.WebhookURL != "", "digest.webhook_url")
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "worker":
		require(c.Temporal.HostPort != "", "temporal.host_port")
		require(c.Temporal.TaskQueue != "", "temporal.task_queue")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Scoring.BatchSize < 0 || c.Reconcile.BatchSize < 0 {
		errs = append(errs, "batch_size must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
