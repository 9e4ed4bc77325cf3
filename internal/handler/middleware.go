package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/store"
)

// IsSignedIn lets through any authenticated user.
func IsSignedIn(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if getCtxUser(c) == nil {
			return newError(nil, http.StatusUnauthorized, "Authentication required.")
		}
		return next(c)
	}
}

// IsAuthenticated lets through authenticated users who have set their own
// password.
func IsAuthenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := getCtxUser(c)
		if user == nil {
			return newError(nil, http.StatusUnauthorized, "Authentication required.")
		}
		if user.MustChangePassword() {
			return newError(nil, http.StatusForbidden, "Password must be changed before continuing.")
		}
		return next(c)
	}
}

func RoleMiddleware(requiredRole store.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := getCtxUser(c)
			if !u.HasRole(requiredRole) {
				return newError(nil, http.StatusForbidden, "invalid permissions")
			}
			return next(c)
		}
	}
}
