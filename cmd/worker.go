package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/schedule"
)

var workerEnsureSchedules bool

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dial temporal %s", cfg.Temporal.HostPort)
	}
	return c, nil
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduled workflows",
	Long:  "Registers the RemoteSources and ProcessingData workflows and their job activities and polls the task queue until interrupted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		e, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer e.Close()

		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		if workerEnsureSchedules {
			if _, err := schedule.Ensure(ctx, c.ScheduleClient(), cfg.Temporal.TaskQueue); err != nil {
				return err
			}
		}

		w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
		schedule.Register(w, schedule.NewActivities(e.Pipeline, e.Recorder))

		zap.L().Info("starting worker",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "worker run")
		}
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Create the workflow schedules that do not exist yet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("worker"); err != nil {
			return err
		}
		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := schedule.Ensure(cmd.Context(), c.ScheduleClient(), cfg.Temporal.TaskQueue)
		if err != nil {
			return err
		}
		fmt.Printf("Created %d schedule(s).\n", n)
		return nil
	},
}

func init() {
	workerCmd.Flags().BoolVar(&workerEnsureSchedules, "ensure-schedules", true, "create missing schedules before polling")
	rootCmd.AddCommand(workerCmd, scheduleCmd)
}
