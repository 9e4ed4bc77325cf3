package service

import (
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// ScheduledJob is something that registers its recurring work on a scheduler.
type ScheduledJob interface {
	Schedule(s gocron.Scheduler) error
}

// ScheduledFunc adapts a function to ScheduledJob.
type ScheduledFunc func(s gocron.Scheduler) error

func (f ScheduledFunc) Schedule(s gocron.Scheduler) error {
	return f(s)
}

// NewScheduler creates a scheduler with every job registered on it. The
// caller starts it.
func NewScheduler(logger *zap.Logger, jobs ...ScheduledJob) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if err := j.Schedule(scheduler); err != nil {
			_ = scheduler.Shutdown()
			return nil, err
		}
	}
	logger.Info("scheduler ready", zap.Int("jobs", len(scheduler.Jobs())))
	return scheduler, nil
}
