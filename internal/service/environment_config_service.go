package service

import (
	"strings"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/store"
)

type EnvironmentConfigService struct {
	updater *ConfigUpdater
}

func NewEnvironmentConfigService(u *ConfigUpdater) *EnvironmentConfigService {
	return &EnvironmentConfigService{updater: u}
}

// List returns the environments merged with the ones defined in config repos.
func (s *EnvironmentConfigService) List() []cruise.EnvironmentConfig {
	return s.updater.CurrentConfig().Environments
}

// Get returns a copy of the merged environment with its digest.
func (s *EnvironmentConfigService) Get(name string) (*cruise.EnvironmentConfig, string, error) {
	for _, env := range s.List() {
		if !strings.EqualFold(env.Name, name) {
			continue
		}
		digest, err := cruise.Digest(&env)
		if err != nil {
			return nil, "", err
		}
		return &env, digest, nil
	}
	return nil, "", store.RecordNotFoundError{Entity: "environment", ID: name}
}

func (s *EnvironmentConfigService) Create(user cruise.Username, env *cruise.EnvironmentConfig) *command.Result {
	result := command.NewResult()
	cmd := command.NewEnvironmentCreateCommand(command.NewBase(user, result, ""), env)
	s.updater.Update(cmd, user, result, createdMessage("environment", env.Name))
	return result
}

func (s *EnvironmentConfigService) Update(
	user cruise.Username,
	name, digest string,
	env *cruise.EnvironmentConfig,
) *command.Result {
	result := command.NewResult()
	cmd := command.NewEnvironmentUpdateCommand(command.NewBase(user, result, digest), name, env)
	s.updater.Update(cmd, user, result, updatedMessage("environment", name))
	return result
}

func (s *EnvironmentConfigService) Patch(user cruise.Username, name string, patch command.EnvironmentPatch) *command.Result {
	result := command.NewResult()
	cmd := command.NewEnvironmentPatchCommand(command.NewBase(user, result, ""), name, patch)
	s.updater.Update(cmd, user, result, updatedMessage("environment", name))
	return result
}

func (s *EnvironmentConfigService) Delete(user cruise.Username, name string) *command.Result {
	result := command.NewResult()
	cmd := command.NewEnvironmentDeleteCommand(command.NewBase(user, result, ""), name)
	s.updater.Update(cmd, user, result, deletedMessage("environment", name))
	return result
}
