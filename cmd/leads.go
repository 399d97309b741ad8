package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadops-cli/internal/fetcher"
	"github.com/sells-group/leadops-cli/internal/joblog"
	"github.com/sells-group/leadops-cli/internal/pipeline"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage stored leads",
}

var leadsUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Insert the new leads of a form export",
	Long:  "Reads a CSV or XLSX form export, drops rows matching leads stored in the lookback window and inserts the rest.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer e.Close()

		sheet, _ := cmd.Flags().GetString("sheet")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		t, err := fetcher.LoadTable(ctx, nil, args[0], sheet)
		if err != nil {
			return eris.Wrapf(err, "leads upload: read %s", args[0])
		}

		var res pipeline.UploadResult
		upload := func(ctx context.Context) (int64, error) {
			var err error
			res, err = e.Pipeline.UploadLeads(ctx, t.Header, t.Rows, dryRun)
			return res.Inserted, err
		}
		if dryRun {
			_, err = upload(ctx)
		} else {
			err = e.Run(ctx, joblog.LeadsUpload, upload)
		}
		if err != nil {
			return err
		}

		formatUpload(os.Stdout, res, dryRun)
		return nil
	},
}

func init() {
	leadsUploadCmd.Flags().String("sheet", "", "worksheet name for XLSX exports (default first sheet)")
	leadsUploadCmd.Flags().Bool("dry-run", false, "report what would be inserted without writing")
	leadsCmd.AddCommand(leadsUploadCmd)
	rootCmd.AddCommand(leadsCmd)
}

func formatUpload(w io.Writer, res pipeline.UploadResult, dryRun bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rows:\t%d\n", res.Rows)
	fmt.Fprintf(tw, "New:\t%d\n", len(res.New))
	fmt.Fprintf(tw, "Existing:\t%d\n", res.Existing)
	fmt.Fprintf(tw, "Ambiguous:\t%d\n", res.Ambiguous)
	if dryRun {
		fmt.Fprintf(tw, "Inserted:\t-\t(dry run)\n")
	} else {
		fmt.Fprintf(tw, "Inserted:\t%d\n", res.Inserted)
	}
	tw.Flush()

	if len(res.LandingPages) > 0 {
		fmt.Fprintln(w, "\nLanding pages:")
		for _, p := range res.LandingPages {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}
