package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// Interval is how often each workflow runs. ProcessingData is offset so it
// reads what RemoteSources wrote.
const (
	Interval             = 2 * time.Hour
	ProcessingDataOffset = time.Hour
)

// Creator creates Temporal schedules. client.ScheduleClient satisfies it.
type Creator interface {
	Create(ctx context.Context, options client.ScheduleOptions) (client.ScheduleHandle, error)
}

// Options returns the schedule definitions of both workflows.
func Options(taskQueue string) []client.ScheduleOptions {
	def := func(name string, offset time.Duration) client.ScheduleOptions {
		return client.ScheduleOptions{
			ID: "leadops-" + name,
			Spec: client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: Interval, Offset: offset}},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        "leadops-" + name,
				Workflow:  name,
				TaskQueue: taskQueue,
			},
		}
	}
	return []client.ScheduleOptions{
		def(RemoteSources, 0),
		def(ProcessingData, ProcessingDataOffset),
	}
}

// Ensure creates the schedules that do not exist yet. It returns how many
// were created.
func Ensure(ctx context.Context, c Creator, taskQueue string) (int, error) {
	created := 0
	for _, opts := range Options(taskQueue) {
		_, err := c.Create(ctx, opts)
		if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
			zap.L().Info("schedule: already exists", zap.String("id", opts.ID))
			continue
		}
		if err != nil {
			return created, eris.Wrapf(err, "schedule: create %s", opts.ID)
		}
		zap.L().Info("schedule: created", zap.String("id", opts.ID))
		created++
	}
	return created, nil
}
