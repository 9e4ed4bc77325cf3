package cruise

import "strings"

// Username identifies the user performing a config change.
type Username struct {
	Name string
}

var Anonymous = Username{Name: "anonymous"}

func NewUsername(name string) Username {
	if strings.TrimSpace(name) == "" {
		return Anonymous
	}
	return Username{Name: name}
}

func (c *CruiseConfig) IsSecurityEnabled() bool {
	return len(c.Server.Security.AuthConfigs) > 0
}

// RolesOf returns the names of roles listing the user as a member.
func (c *CruiseConfig) RolesOf(user Username) []string {
	out := make([]string, 0)
	for _, r := range c.Server.Security.Roles {
		if containsFold(r.Users, user.Name) {
			out = append(out, r.Name)
		}
	}
	return out
}

func (c *CruiseConfig) allows(a AdminsConfig, user Username) bool {
	if containsFold(a.Users, user.Name) {
		return true
	}
	for _, role := range c.RolesOf(user) {
		if containsFold(a.Roles, role) {
			return true
		}
	}
	return false
}

// IsAdministrator reports whether user is a system admin. Every user is an
// admin when security is off or no admins are configured.
func (c *CruiseConfig) IsAdministrator(user Username) bool {
	if !c.IsSecurityEnabled() || c.Server.Security.Admins.IsEmpty() {
		return true
	}
	return c.allows(c.Server.Security.Admins, user)
}

func (c *CruiseConfig) IsGroupAdministrator(group string, user Username) bool {
	if c.IsAdministrator(user) {
		return true
	}
	g := c.FindGroup(group)
	if g == nil {
		return false
	}
	return c.allows(g.Authorization.Admins, user)
}

func (c *CruiseConfig) IsAdministratorOfAnyGroup(user Username) bool {
	if c.IsAdministrator(user) {
		return true
	}
	for _, g := range c.Groups {
		if c.allows(g.Authorization.Admins, user) {
			return true
		}
	}
	return false
}

func (c *CruiseConfig) IsTemplateAdministrator(template string, user Username) bool {
	if c.IsAdministrator(user) {
		return true
	}
	t := c.FindTemplate(template)
	if t == nil {
		return false
	}
	return c.allows(t.Authorization.Admins, user)
}

func (c *CruiseConfig) CanViewPipeline(pipeline string, user Username) bool {
	g := c.FindGroupOfPipeline(pipeline)
	if g == nil {
		return false
	}
	if c.IsGroupAdministrator(g.Name, user) {
		return true
	}
	a := g.Authorization
	if a.Viewers.IsEmpty() && a.Operators.IsEmpty() && a.Admins.IsEmpty() {
		return true
	}
	return c.allows(a.Viewers, user) || c.allows(a.Operators, user)
}
