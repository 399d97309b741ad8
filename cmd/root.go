package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadops-cli",
	Short: "Lead and payment attribution back office",
	Long: `Keeps the lead funnel analytics current.

The batch commands sync the marketing reference sheets and the payment
ledger, deduplicate and score incoming leads, and post the daily digest.
The report commands print the cohort, funnel-channel and duplicate reports
from the stored leads and the attribution artifacts. "serve" exposes the
same reports over HTTP; "worker" runs the batch jobs on Temporal schedules.

Settings are read from ./config.yaml (or --config) and LEADOPS_* variables,
e.g. LEADOPS_STORE_DATABASE_URL.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "config file (default ./config.yaml)")
	f.String("log-level", "", "override log.level (debug, info, warn, error)")
	f.String("log-format", "", "override log.format (json, console)")
}

// setup loads the configuration for cmd and installs the global logger.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.InitLogger(c.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	cfg = c
	return nil
}

// loadConfig reads the file named by --config and applies the log flags
// on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	c, err := config.LoadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "load config")
	}
	if flags.Changed("log-level") {
		c.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		c.Log.Format, _ = flags.GetString("log-format")
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
