package service

import (
	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
)

type SecurityAdminsService struct {
	updater *ConfigUpdater
}

func NewSecurityAdminsService(u *ConfigUpdater) *SecurityAdminsService {
	return &SecurityAdminsService{updater: u}
}

func (s *SecurityAdminsService) Get() (*cruise.AdminsConfig, string, error) {
	admins := s.updater.CurrentConfig().Server.Security.Admins
	digest, err := cruise.Digest(&admins)
	if err != nil {
		return nil, "", err
	}
	return &admins, digest, nil
}

func (s *SecurityAdminsService) Update(user cruise.Username, digest string, admins *cruise.AdminsConfig) *command.Result {
	result := command.NewResult()
	cmd := command.NewAdminsUpdateCommand(command.NewBase(user, result, digest), admins)
	s.updater.Update(cmd, user, result, "System administrators were updated successfully.")
	return result
}
