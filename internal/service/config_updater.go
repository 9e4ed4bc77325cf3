package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/configstore"
	"github.com/haatos/simple-cd/internal/cruise"
)

// ConfigDao is the part of configstore.GoConfigDao the services use.
type ConfigDao interface {
	UpdateConfig(cmd configstore.EntityConfigUpdateCommand, user cruise.Username) error
	CurrentConfig() *cruise.CruiseConfig
	MergedConfigForEdit() *cruise.CruiseConfig
}

// ConfigUpdater runs update commands through the config dao and records
// failures on the command's result.
type ConfigUpdater struct {
	dao    ConfigDao
	logger *zap.Logger
}

func NewConfigUpdater(dao ConfigDao, logger *zap.Logger) *ConfigUpdater {
	return &ConfigUpdater{dao: dao, logger: logger}
}

func (u *ConfigUpdater) CurrentConfig() *cruise.CruiseConfig {
	return u.dao.CurrentConfig()
}

// MergedConfigForEdit returns the configuration as written, with partials
// merged in and nothing preprocessed.
func (u *ConfigUpdater) MergedConfigForEdit() *cruise.CruiseConfig {
	return u.dao.MergedConfigForEdit()
}

// Update saves cmd as user. On success result gets successMessage.
func (u *ConfigUpdater) Update(
	cmd configstore.EntityConfigUpdateCommand,
	user cruise.Username,
	result *command.Result,
	successMessage string,
) {
	err := u.dao.UpdateConfig(cmd, user)
	if err == nil {
		result.Reset()
		result.SetMessage(successMessage)
		return
	}

	var (
		checkFailed configstore.ConfigUpdateCheckFailedError
		invalid     *cruise.InvalidConfigError
		changed     *configstore.ConfigFileHasChangedError
		badRequest  *command.BadRequestError
	)
	switch {
	case errors.As(err, &checkFailed):
		// CanContinue already recorded the reason.
		if result.IsSuccessful() {
			result.UnprocessableEntity("Save failed. The update was rejected.")
		}
	case errors.As(err, &invalid):
		if result.IsSuccessful() {
			result.UnprocessableEntity(fmt.Sprintf(
				"Validations failed. Error(s): [%s]. Please correct and resubmit.",
				strings.Join(invalid.Errors, ", "),
			))
		}
	case errors.As(err, &changed):
		result.Stale("Save failed. The configuration file has been modified by someone else. Please update your copy of the config with the changes and try again.")
	case errors.As(err, &badRequest):
		result.BadRequest(badRequest.Message)
	default:
		u.logger.Error("saving configuration", zap.String("user", user.Name), zap.Error(err))
		result.InternalServerError("Save failed. " + err.Error())
	}
}
