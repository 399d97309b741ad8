package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadops-cli/internal/artifact"
	"github.com/sells-group/leadops-cli/internal/joblog"
	"github.com/sells-group/leadops-cli/internal/model"
	"github.com/sells-group/leadops-cli/internal/pipeline"
	"github.com/sells-group/leadops-cli/internal/report"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "sync", "payments", "score", "digest", "leads", "report", "serve", "worker", "schedule", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadops-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "log-format"} {
		flag := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "root should have --%s flag", name)
		assert.Empty(t, flag.DefValue)
	}
	assert.True(t, rootCmd.SilenceUsage)
}

func globalFlagsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "leadops-cli"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("log-format", "", "")
	return cmd
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadops.yaml")
	yaml := "log:\n  level: warn\n  format: console\ntemporal:\n  task_queue: nightly\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cmd := globalFlagsCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--log-level", "debug"}))

	c, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "console", c.Log.Format, "unset flags keep the file value")
	assert.Equal(t, "nightly", c.Temporal.TaskQueue)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cmd := globalFlagsCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}))

	_, err := loadConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func subcommands(t *testing.T, names ...string) map[string]bool {
	t.Helper()
	cmd, _, err := rootCmd.Find(names)
	require.NoError(t, err)
	out := make(map[string]bool)
	for _, c := range cmd.Commands() {
		out[c.Name()] = true
	}
	return out
}

func TestSyncCommand_HasSubcommands(t *testing.T) {
	got := subcommands(t, "sync")
	for _, name := range []string{"channels", "landing", "groups", "expenses", "all"} {
		assert.True(t, got[name], "sync should have subcommand %q", name)
	}
}

func TestPaymentsCommand_HasSubcommands(t *testing.T) {
	got := subcommands(t, "payments")
	for _, name := range []string{"sync", "collect", "replay"} {
		assert.True(t, got[name], "payments should have subcommand %q", name)
	}
}

func TestReportCommand_HasSubcommands(t *testing.T) {
	got := subcommands(t, "report")
	for _, name := range []string{"cohort", "funnel", "duplicates", "build", "artifacts"} {
		assert.True(t, got[name], "report should have subcommand %q", name)
	}
	flag := reportCmd.PersistentFlags().Lookup("json")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestReportFunnelCommand_Flags(t *testing.T) {
	for _, name := range []string{"from", "to", "categories", "cumulative", "romi"} {
		assert.NotNil(t, reportFunnelCmd.Flags().Lookup(name), "report funnel should have --%s flag", name)
	}
}

func TestLeadsUploadCommand_Flags(t *testing.T) {
	flag := leadsUploadCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
	assert.NotNil(t, leadsUploadCmd.Flags().Lookup("sheet"))
	assert.Error(t, leadsUploadCmd.Args(leadsUploadCmd, nil))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestWorkerCommand_Flags(t *testing.T) {
	flag := workerCmd.Flags().Lookup("ensure-schedules")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
	assert.NotNil(t, runsCmd.Flags().Lookup("job"))
}

func TestRunJobs_ContinuesAfterFailure(t *testing.T) {
	e := &env{Recorder: joblog.New(nil)}
	var ran []string
	ok := func(name string) job {
		return job{name, func(context.Context) (int64, error) {
			ran = append(ran, name)
			return 1, nil
		}}
	}
	fail := job{joblog.SyncPaidURLs, func(context.Context) (int64, error) {
		ran = append(ran, joblog.SyncPaidURLs)
		return 0, errors.New("sheet missing")
	}}

	err := runJobs(context.Background(), e, ok(joblog.SyncChannels), fail, ok(joblog.SyncCategories))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_paid_urls: sheet missing")
	assert.Equal(t, []string{joblog.SyncChannels, joblog.SyncPaidURLs, joblog.SyncCategories}, ran)

	assert.NoError(t, runJobs(context.Background(), e, ok(joblog.Score)))
}

func TestParseRange(t *testing.T) {
	from, to, err := parseRange("2024-01-04", "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), to)

	from, to, err = parseRange("2024-01-04", "")
	require.NoError(t, err)
	assert.Equal(t, from, to)

	_, _, err = parseRange("", "2024-01-10")
	assert.Error(t, err)
	_, _, err = parseRange("04.01.2024", "")
	assert.Error(t, err)
	_, _, err = parseRange("2024-01-10", "2024-01-04")
	assert.Error(t, err)
}

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	done := started.Add(90 * time.Second)
	runs := []model.JobRun{
		{
			ID:          "0123456789abcdef",
			Job:         joblog.PaymentsSync,
			Status:      model.JobStatusComplete,
			Rows:        412,
			StartedAt:   started,
			CompletedAt: &done,
		},
		{
			ID:        "fedcba98",
			Job:       joblog.Score,
			Status:    model.JobStatusRunning,
			StartedAt: started,
		},
		{
			ID:          "aaaa",
			Job:         joblog.Digest,
			Status:      model.JobStatusFailed,
			Error:       strings.Repeat("x", 80),
			StartedAt:   started,
			CompletedAt: &done,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")

	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "JOB")
	assert.Contains(t, lines[2], "01234567")
	assert.NotContains(t, lines[2], "0123456789")
	assert.Contains(t, lines[2], "payments_sync")
	assert.Contains(t, lines[2], "1m30s")
	assert.Contains(t, lines[3], "running")
	assert.Contains(t, lines[3], " - ")
	assert.Contains(t, lines[4], strings.Repeat("x", 57)+"...")
}

func TestFormatCohort(t *testing.T) {
	c := report.Cohort{
		Weeks: 2,
		Rows: []report.CohortRow{
			{
				From:  time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
				To:    time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				Count: 10,
				Sum:   decimal.NewFromInt(1500),
				Cells: []decimal.NullDecimal{
					decimal.NewNullDecimal(decimal.NewFromInt(1000)),
					decimal.NewNullDecimal(decimal.NewFromInt(500)),
				},
			},
			{
				From:  time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
				To:    time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
				Count: 3,
				Sum:   decimal.Zero,
				Cells: []decimal.NullDecimal{
					decimal.NewNullDecimal(decimal.Zero),
					{},
				},
			},
		},
	}

	var buf bytes.Buffer
	formatCohort(&buf, c)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "W0")
	assert.Contains(t, lines[0], "W1")
	assert.Contains(t, lines[2], "2024-01-04")
	assert.Contains(t, lines[2], "1500.00")
	assert.Contains(t, lines[2], "500.00")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[3]), "-"))
}

func TestFormatFunnel(t *testing.T) {
	rows := []report.FunnelRow{
		{
			Category: "AI",
			Subtotal: true,
			Expenses: decimal.NewFromInt(100),
			Windows:  []decimal.Decimal{decimal.NewFromInt(50), decimal.NewFromInt(80), decimal.NewFromInt(120), decimal.NewFromInt(200)},
		},
		{
			Category: "AI",
			Channel:  "YouTube",
			Expenses: decimal.NewFromInt(100),
			Windows:  []decimal.Decimal{decimal.NewFromInt(50), decimal.NewFromInt(80), decimal.NewFromInt(120), decimal.NewFromInt(200)},
		},
	}

	var buf bytes.Buffer
	formatFunnel(&buf, rows)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 4)
	for _, h := range []string{"CATEGORY", "1W", "2W", "4W", "8W"} {
		assert.Contains(t, lines[0], h)
	}
	assert.Contains(t, lines[2], "*")
	assert.Contains(t, lines[3], "YouTube")
	assert.Contains(t, lines[3], "200.00")

	buf.Reset()
	formatFunnel(&buf, report.FunnelPlaceholder())
	assert.Contains(t, buf.String(), report.NoDataLabel)
}

func TestFormatDuplicates(t *testing.T) {
	rows := []report.DuplicateRow{
		{Event: report.TotalLabel, Leads: 20, Duplicates: 5, Percent: "25%"},
		{Event: "Intensive", Channel: "VK", Leads: 20, Duplicates: 5, Percent: "25%"},
	}

	var buf bytes.Buffer
	formatDuplicates(&buf, rows)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "DUPLICATES")
	assert.Contains(t, lines[2], report.TotalLabel)
	assert.Contains(t, lines[3], "VK")
	assert.Contains(t, lines[3], "25%")
}

func TestFormatArtifacts(t *testing.T) {
	infos := []artifact.Info{
		{Name: artifact.FunnelReport, Rows: 12, BuiltAt: time.Date(2024, 1, 12, 10, 5, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	formatArtifacts(&buf, infos)
	assert.Contains(t, buf.String(), artifact.FunnelReport)
	assert.Contains(t, buf.String(), "2024-01-12 10:05")
}

func TestFormatUpload(t *testing.T) {
	res := pipeline.UploadResult{
		Rows:         5,
		Inserted:     2,
		Existing:     2,
		Ambiguous:    1,
		LandingPages: []string{"https://ai.example.com/intensive"},
		New:          make([]model.Lead, 2),
	}

	var buf bytes.Buffer
	formatUpload(&buf, res, false)
	out := buf.String()
	assert.Contains(t, out, "Rows:")
	assert.Contains(t, out, "Inserted:")
	assert.Contains(t, out, "https://ai.example.com/intensive")
	assert.NotContains(t, out, "dry run")

	buf.Reset()
	formatUpload(&buf, res, true)
	assert.Contains(t, buf.String(), "(dry run)")
}
