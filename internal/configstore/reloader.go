package configstore

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// ScheduleReload checks the configuration file for external edits every
// interval. A run that is still going when the next one is due is skipped.
func (dao *GoConfigDao) ScheduleReload(s gocron.Scheduler, interval time.Duration) error {
	_, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			changed, err := dao.Reload()
			if err != nil {
				dao.logger.Error("reloading configuration", zap.Error(err))
				return
			}
			if changed {
				dao.logger.Info("configuration reloaded", zap.String("md5", dao.MD5()))
			}
		}),
		gocron.WithName("config-reload"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
