package store

import (
	"database/sql"
	"time"
)

// User is a signed-in account of the server. Its Username is the name
// config authorization checks run against.
type User struct {
	UserID            int64  `json:"-"`
	UserRoleID        Role   `json:"user_role_id"`
	Username          string `json:"username"`
	PasswordHash      string
	PasswordChangedOn *time.Time `json:"password_changed_on"`

	// session
	SessionExpires sql.NullTime `json:"session_expires"`
}

// HasRole reports whether u holds role or one above it. A nil user holds
// no role.
func (u *User) HasRole(role Role) bool {
	return u != nil && u.UserRoleID >= role
}

func (u *User) IsAdmin() bool {
	return u.HasRole(Admin)
}

func (u *User) IsSuperuser() bool {
	return u != nil && u.UserRoleID == Superuser
}

// MustChangePassword is true until the user replaces the password they
// were created with.
func (u *User) MustChangePassword() bool {
	return u.PasswordChangedOn == nil || u.PasswordChangedOn.IsZero()
}

// SessionActive reports whether the session u was read by is still valid
// at now.
func (u *User) SessionActive(now time.Time) bool {
	return u.SessionExpires.Valid && !u.SessionExpires.Time.Before(now)
}

// AuthSession ties a session cookie to a user until it expires.
type AuthSession struct {
	AuthSessionID      string
	AuthSessionUserID  int64
	AuthSessionExpires time.Time
}
