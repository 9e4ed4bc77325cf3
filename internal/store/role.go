package store

const (
	Operator  Role = 10
	Admin     Role = 1_000
	Superuser Role = 10_000
)

type Role int64

func (r Role) ToString() string {
	switch r {
	case Superuser:
		return "superuser"
	case Admin:
		return "admin"
	default:
		return "operator"
	}
}

// ParseRole reads a role by its name. Superuser cannot be parsed, it is
// only ever given to the user created on first start.
func ParseRole(name string) (Role, bool) {
	switch name {
	case "operator":
		return Operator, true
	case "admin":
		return Admin, true
	default:
		return 0, false
	}
}

func ListNewUserRoles() []Role {
	return []Role{
		Operator,
		Admin,
	}
}
