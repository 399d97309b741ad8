package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadops-cli/internal/artifact"
	"github.com/sells-group/leadops-cli/internal/joblog"
	"github.com/sells-group/leadops-cli/internal/report"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print attribution reports",
}

// -- report cohort --

var reportCohortCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Weekly payment cohorts since report.start_date",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "report")
		if err != nil {
			return err
		}
		defer e.Close()

		c, err := e.Pipeline.Cohort(ctx)
		if err != nil {
			return eris.Wrap(err, "report cohort")
		}
		if reportJSON {
			return writeJSON(os.Stdout, c)
		}
		formatCohort(os.Stdout, c)
		return nil
	},
}

// -- report funnel --

var reportFunnelCmd = &cobra.Command{
	Use:   "funnel",
	Short: "Profit by landing category and traffic channel",
	Long:  "Without --from and --to prints the stored report of the last complete week.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "report")
		if err != nil {
			return err
		}
		defer e.Close()

		fromS, _ := cmd.Flags().GetString("from")
		toS, _ := cmd.Flags().GetString("to")

		var rows []report.FunnelRow
		if fromS == "" && toS == "" {
			var built time.Time
			rows, built, err = e.Pipeline.CachedFunnel(ctx)
			switch {
			case errors.Is(err, artifact.ErrNotBuilt):
				fmt.Fprintln(os.Stderr, "Funnel report not built yet; run `leadops-cli report build`.")
				rows = report.FunnelPlaceholder()
			case err != nil:
				return eris.Wrap(err, "report funnel")
			default:
				fmt.Fprintf(os.Stderr, "Built at %s\n", built.Format(time.RFC3339))
			}
		} else {
			from, to, err := parseRange(fromS, toS)
			if err != nil {
				return err
			}
			categories, _ := cmd.Flags().GetStringSlice("categories")
			cumulative, _ := cmd.Flags().GetBool("cumulative")
			romi, _ := cmd.Flags().GetBool("romi")
			rows, err = e.Pipeline.Funnel(ctx, report.FunnelOptions{
				LeadFrom:   from,
				LeadTo:     to,
				Categories: categories,
				Cumulative: cumulative,
				ROMI:       romi,
			})
			if err != nil {
				return eris.Wrap(err, "report funnel")
			}
		}

		if reportJSON {
			return writeJSON(os.Stdout, rows)
		}
		formatFunnel(os.Stdout, rows)
		return nil
	},
}

// -- report duplicates --

var reportDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Duplicate paid-traffic leads by landing group and channel",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "report")
		if err != nil {
			return err
		}
		defer e.Close()

		fromS, _ := cmd.Flags().GetString("from")
		toS, _ := cmd.Flags().GetString("to")
		if fromS == "" {
			fromS = report.Day(time.Now()).AddDate(0, 0, -1).Format(time.DateOnly)
		}
		if toS == "" {
			toS = fromS
		}
		from, to, err := parseRange(fromS, toS)
		if err != nil {
			return err
		}
		events, _ := cmd.Flags().GetStringSlice("events")

		rows, err := e.Pipeline.Duplicates(ctx, report.DuplicateOptions{From: from, To: to, Events: events})
		if err != nil {
			return eris.Wrap(err, "report duplicates")
		}
		if reportJSON {
			return writeJSON(os.Stdout, rows)
		}
		formatDuplicates(os.Stdout, rows)
		return nil
	},
}

// -- report build --

var reportBuildCmd = jobCommand("build", "Store the funnel report of the last complete week", "report", func(e *env) []job {
	return []job{{joblog.FunnelArtifact, e.Pipeline.FunnelArtifact}}
})

// -- report artifacts --

var reportArtifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List stored report artifacts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, err := initArtifacts(cmd.Context())
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		infos, err := cache.List(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "report artifacts")
		}
		if len(infos) == 0 {
			fmt.Fprintln(os.Stderr, "No artifacts built.")
			return nil
		}
		formatArtifacts(os.Stdout, infos)
		return nil
	},
}

func init() {
	reportCmd.PersistentFlags().BoolVar(&reportJSON, "json", false, "print JSON instead of a table")

	reportFunnelCmd.Flags().String("from", "", "first lead date (YYYY-MM-DD)")
	reportFunnelCmd.Flags().String("to", "", "last lead date (YYYY-MM-DD)")
	reportFunnelCmd.Flags().StringSlice("categories", nil, "limit to these category codes")
	reportFunnelCmd.Flags().Bool("cumulative", false, "accumulate profit over the windows")
	reportFunnelCmd.Flags().Bool("romi", false, "print ROMI percent instead of profit")

	reportDuplicatesCmd.Flags().String("from", "", "first lead date (default yesterday)")
	reportDuplicatesCmd.Flags().String("to", "", "last lead date (default --from)")
	reportDuplicatesCmd.Flags().StringSlice("events", nil, "limit to these landing groups")

	reportCmd.AddCommand(reportCohortCmd, reportFunnelCmd, reportDuplicatesCmd, reportBuildCmd, reportArtifactsCmd)
	rootCmd.AddCommand(reportCmd)
}

// parseRange parses an inclusive YYYY-MM-DD date range. A missing end
// equals the start.
func parseRange(fromS, toS string) (time.Time, time.Time, error) {
	if fromS == "" {
		return time.Time{}, time.Time{}, eris.New("--from is required with --to")
	}
	from, err := time.Parse(time.DateOnly, fromS)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrapf(err, "parse --from %q", fromS)
	}
	if toS == "" {
		return from, from, nil
	}
	to, err := time.Parse(time.DateOnly, toS)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrapf(err, "parse --to %q", toS)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, eris.Errorf("--to %s is before --from %s", toS, fromS)
	}
	return from, to, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatCohort(w io.Writer, c report.Cohort) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"FROM", "TO", "LEADS", "SUM"}
	for k := range c.Weeks {
		header = append(header, fmt.Sprintf("W%d", k))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	fmt.Fprintln(tw, strings.Repeat("----\t", len(header)-1)+"----")

	for _, r := range c.Rows {
		line := []string{
			r.From.Format(time.DateOnly),
			r.To.Format(time.DateOnly),
			fmt.Sprintf("%d", r.Count),
			r.Sum.StringFixed(2),
		}
		for _, cell := range r.Cells {
			if !cell.Valid {
				line = append(line, "-")
				continue
			}
			line = append(line, cell.Decimal.StringFixed(2))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	tw.Flush()
}

func formatFunnel(w io.Writer, rows []report.FunnelRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"CATEGORY", "CHANNEL", "EXPENSES"}
	for _, n := range report.FunnelWindows {
		header = append(header, fmt.Sprintf("%dW", n))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	fmt.Fprintln(tw, strings.Repeat("----\t", len(header)-1)+"----")

	for _, r := range rows {
		channel := r.Channel
		if r.Subtotal {
			channel = "*"
		}
		line := []string{r.Category, channel, r.Expenses.StringFixed(2)}
		for _, v := range r.Windows {
			line = append(line, v.StringFixed(2))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	tw.Flush()
}

func formatDuplicates(w io.Writer, rows []report.DuplicateRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tCHANNEL\tLEADS\tDUPLICATES\tPERCENT")
	fmt.Fprintln(tw, "-----\t-------\t-----\t----------\t-------")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Event, r.Channel, r.Leads, r.Duplicates, r.Percent)
	}
	tw.Flush()
}

func formatArtifacts(w io.Writer, infos []artifact.Info) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROWS\tBUILT")
	fmt.Fprintln(tw, "----\t----\t-----")
	for _, i := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", i.Name, i.Rows, i.BuiltAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
