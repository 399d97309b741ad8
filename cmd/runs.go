package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadops-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent job runs",
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

		job, _ := cmd.Flags().GetString("job")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListJobRuns(ctx, job, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().String("job", "", "only runs of this job")
	runsCmd.Flags().Int("limit", 20, "maximum number of runs")
	rootCmd.AddCommand(runsCmd)
}

func formatRunsList(w io.Writer, runs []model.JobRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tJOB\tSTATUS\tROWS\tSTARTED\tDURATION\tERROR")
	fmt.Fprintln(tw, "--\t---\t------\t----\t-------\t--------\t-----")

	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}

		dur := "-"
		if d := r.Duration(); d > 0 {
			dur = d.Round(time.Second).String()
		}

		errMsg := r.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			id,
			r.Job,
			r.Status,
			r.Rows,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			errMsg,
		)
	}
	tw.Flush()
}
