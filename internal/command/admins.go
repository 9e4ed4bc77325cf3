package command

import "github.com/haatos/simple-cd/internal/cruise"

// AdminsUpdateCommand replaces the system admin users and roles.
type AdminsUpdateCommand struct {
	Base
	admins *cruise.AdminsConfig
}

func NewAdminsUpdateCommand(base Base, admins *cruise.AdminsConfig) *AdminsUpdateCommand {
	return &AdminsUpdateCommand{Base: base, admins: admins}
}

func (cmd *AdminsUpdateCommand) CanContinue(c *cruise.CruiseConfig) bool {
	if !cmd.isUserAdmin(c, kindAdmins, "admins") {
		return false
	}
	return cmd.isFreshEntity(kindAdmins, "admins", &c.Server.Security.Admins)
}

func (cmd *AdminsUpdateCommand) Update(modified *cruise.CruiseConfig) error {
	modified.Server.Security.Admins = cruise.AdminsConfig{
		Users: cmd.admins.Users,
		Roles: cmd.admins.Roles,
	}
	return nil
}

func (cmd *AdminsUpdateCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	return cmd.validate(preprocessed, &preprocessed.Server.Security.Admins, cmd.admins, kindAdmins, "admins")
}

func (cmd *AdminsUpdateCommand) ClearErrors() {
	cruise.ClearAllErrors(cmd.admins)
}
