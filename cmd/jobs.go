package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/digest"
	"github.com/sells-group/leadops-cli/internal/joblog"
)

// job pairs a job run name with the pipeline method that runs it.
type job struct {
	name string
	fn   func(ctx context.Context) (int64, error)
}

// runJobs runs every job in order. A failed job does not stop the ones
// after it; all failures are returned together.
func runJobs(ctx context.Context, e *env, jobs ...job) error {
	var errs []error
	for _, j := range jobs {
		if err := e.Run(ctx, j.name, j.fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.name, err))
		}
	}
	return errors.Join(errs...)
}

// jobCommand builds a command that initializes an env for mode and runs
// the jobs selected from it.
func jobCommand(use, short, mode string, jobs func(e *env) []job) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := initEnv(ctx, mode)
			if err != nil {
				return err
			}
			defer e.Close()
			return runJobs(ctx, e, jobs(e)...)
		},
	}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database and artifact cache schemas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		cache, err := initArtifacts(ctx)
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		zap.L().Info("migrations applied", zap.String("artifacts", cfg.Artifacts.Path))
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync reference tables from the spreadsheet exports",
	Long:  "Inserts new traffic channels, paid landing pages, landing categories, scoring groups and ad expenses.",
}

func syncJobs(e *env) map[string]job {
	p := e.Pipeline
	return map[string]job{
		joblog.SyncChannels:   {joblog.SyncChannels, p.SyncChannels},
		joblog.SyncPaidURLs:   {joblog.SyncPaidURLs, p.SyncPaidURLs},
		joblog.SyncCategories: {joblog.SyncCategories, p.SyncCategoryURLs},
		joblog.SyncGroups:     {joblog.SyncGroups, p.SyncGroups},
		joblog.SyncExpenses:   {joblog.SyncExpenses, p.SyncExpenses},
	}
}

var syncChannelsCmd = jobCommand("channels", "Insert new traffic channels", "sync", func(e *env) []job {
	return []job{syncJobs(e)[joblog.SyncChannels]}
})

var syncLandingCmd = jobCommand("landing", "Insert new paid landing pages and landing categories", "sync", func(e *env) []job {
	j := syncJobs(e)
	return []job{j[joblog.SyncPaidURLs], j[joblog.SyncCategories]}
})

var syncGroupsCmd = jobCommand("groups", "Upsert scoring groups from the group source", "sync", func(e *env) []job {
	return []job{syncJobs(e)[joblog.SyncGroups]}
})

var syncExpensesCmd = jobCommand("expenses", "Replace ad expenses for the dates the expense sheet covers", "sync", func(e *env) []job {
	return []job{syncJobs(e)[joblog.SyncExpenses]}
})

var syncAllCmd = jobCommand("all", "Run every reference table sync", "sync", func(e *env) []job {
	j := syncJobs(e)
	return []job{
		j[joblog.SyncChannels],
		j[joblog.SyncPaidURLs],
		j[joblog.SyncCategories],
		j[joblog.SyncGroups],
		j[joblog.SyncExpenses],
	}
})

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Reconcile the payment ledger",
}

var paymentsSyncCmd = jobCommand("sync", "Rebuild the payment ledger from the ledger sheet and the CRM", "payments", func(e *env) []job {
	return []job{{joblog.PaymentsSync, e.Pipeline.PaymentsSync}}
})

var paymentsCollectCmd = jobCommand("collect", "Rebuild the payment channel artifact", "store", func(e *env) []job {
	return []job{{joblog.PaymentsCollect, e.Pipeline.PaymentsCollect}}
})

var paymentsReplayCmd = jobCommand("replay", "Resend due dead-lettered purchase postbacks", "store", func(e *env) []job {
	return []job{{joblog.PostbackReplay, e.Pipeline.PostbackReplay}}
})

var scoreCmd = jobCommand("score", "Score every new and distributed lead", "score", func(e *env) []job {
	return []job{{joblog.Score, e.Pipeline.Score}}
})

var digestCmd = jobCommand("digest", "Send the daily digest to the chat", "digest", func(e *env) []job {
	sender := digest.NewWebhook(cfg.Digest)
	return []job{{joblog.Digest, func(ctx context.Context) (int64, error) {
		return e.Pipeline.Digest(ctx, sender)
	}}}
})

func init() {
	syncCmd.AddCommand(syncChannelsCmd, syncLandingCmd, syncGroupsCmd, syncExpensesCmd, syncAllCmd)
	paymentsCmd.AddCommand(paymentsSyncCmd, paymentsCollectCmd, paymentsReplayCmd)
	rootCmd.AddCommand(migrateCmd, syncCmd, paymentsCmd, scoreCmd, digestCmd)
}
