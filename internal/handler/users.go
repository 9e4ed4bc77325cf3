package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
)

type UserCookieServicer interface {
	RemoveSessionCookie(echo.Context)
}

type UserServicer interface {
	GetUserByID(ctx context.Context, userID int64) (*store.User, error)
	ListUsers(ctx context.Context) ([]*store.User, error)
	CreateUser(ctx context.Context, role store.Role, username, password string) (*store.User, error)
	ChangeUserPassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	ResetUserPassword(ctx context.Context, userID int64, newPassword string) error
	DeleteUser(ctx context.Context, userID int64) error
	UpdateUserRole(ctx context.Context, userID int64, role store.Role) error
}

func SetupUserRoutes(g *echo.Group, h *UserHandler) {
	usersGroup := g.Group("/api/users", IsAuthenticated)
	usersGroup.GET("", h.GetUsers, RoleMiddleware(store.Admin))
	usersGroup.POST("", h.PostUsers, RoleMiddleware(store.Admin))
	usersGroup.GET("/roles", h.GetRoles, RoleMiddleware(store.Admin))
	usersGroup.GET("/current", h.GetCurrentUser)
	usersGroup.DELETE("/:user_id", h.DeleteUser, RoleMiddleware(store.Admin))
	usersGroup.PATCH("/:user_id/password", h.PatchUserPassword)
	usersGroup.PATCH("/:user_id/reset-password", h.PatchResetUserPassword, RoleMiddleware(store.Admin))
	usersGroup.PATCH("/:user_id/role", h.PatchUserRole, RoleMiddleware(store.Superuser))
}

type UserHandler struct {
	userService   UserServicer
	cookieService UserCookieServicer
}

func NewUserHandler(userService UserServicer, cookieService UserCookieServicer) *UserHandler {
	return &UserHandler{userService, cookieService}
}

type UserParams struct {
	Role            string `json:"role"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type PatchUserParams struct {
	UserID int64  `param:"user_id" json:"-"`
	Role   string `json:"role"`
}

type PatchUserPasswordParams struct {
	UserID          int64  `param:"user_id" json:"-"`
	OldPassword     string `json:"old_password"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.userService.ListUsers(c.Request().Context())
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list users")
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	return c.JSON(http.StatusOK, listResponse[userResponse]{Embedded: out})
}

func (h *UserHandler) GetRoles(c echo.Context) error {
	roles := store.ListNewUserRoles()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.ToString())
	}
	return c.JSON(http.StatusOK, names)
}

func (h *UserHandler) GetCurrentUser(c echo.Context) error {
	return c.JSON(http.StatusOK, newUserResponse(getCtxUser(c)))
}

func (h *UserHandler) PostUsers(c echo.Context) error {
	up := new(UserParams)
	if err := c.Bind(up); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user data")
	}
	if up.Username == "" || up.Password == "" {
		return newError(nil, http.StatusBadRequest, "username and password are required")
	}
	if up.Password != up.PasswordConfirm {
		return newError(nil, http.StatusBadRequest, "passwords do not match")
	}
	role, ok := store.ParseRole(up.Role)
	if !ok {
		return newError(nil, http.StatusBadRequest, fmt.Sprintf("invalid role '%s'", up.Role))
	}

	u, err := h.userService.CreateUser(c.Request().Context(), role, up.Username, up.Password)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(
				err,
				http.StatusConflict,
				fmt.Sprintf("A user with username '%s' already exists", up.Username),
			)
		}
		return newError(err, http.StatusInternalServerError, "Unable to create user")
	}
	return c.JSON(http.StatusCreated, newUserResponse(u))
}

// PatchUserPassword changes the requesting user's own password and ends
// the current session.
func (h *UserHandler) PatchUserPassword(c echo.Context) error {
	ctxUser := getCtxUser(c)

	pup := new(PatchUserPasswordParams)
	if err := c.Bind(pup); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user data")
	}
	if pup.Password != pup.PasswordConfirm {
		return newError(nil, http.StatusBadRequest, "passwords do not match")
	}
	if pup.UserID != ctxUser.UserID {
		return newError(nil, http.StatusForbidden, "unable to change another user's password")
	}

	if err := h.userService.ChangeUserPassword(
		c.Request().Context(),
		pup.UserID,
		pup.OldPassword,
		pup.Password,
	); err != nil {
		return passwordError(err, "unable to change user's password")
	}

	h.cookieService.RemoveSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) PatchResetUserPassword(c echo.Context) error {
	pup := new(PatchUserPasswordParams)
	if err := c.Bind(pup); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user data")
	}
	if pup.Password != pup.PasswordConfirm {
		return newError(nil, http.StatusBadRequest, "passwords do not match")
	}

	u, err := h.userService.GetUserByID(c.Request().Context(), pup.UserID)
	if err != nil {
		return storeError(err, "unable to read user")
	}
	if err := h.userService.ResetUserPassword(c.Request().Context(), pup.UserID, pup.Password); err != nil {
		return passwordError(err, "unable to reset user's password")
	}
	return c.JSON(http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Password reset for '%s'", u.Username),
	})
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	pu := new(PatchUserParams)
	if err := c.Bind(pu); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user data")
	}

	user, err := h.userService.GetUserByID(c.Request().Context(), pu.UserID)
	if err != nil {
		return storeError(err, "unable to read user")
	}
	if user.IsSuperuser() {
		return newError(nil, http.StatusForbidden, "cannot delete superuser")
	}

	if err := h.userService.DeleteUser(c.Request().Context(), user.UserID); err != nil {
		return storeError(err, "unable to delete user")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) PatchUserRole(c echo.Context) error {
	pu := new(PatchUserParams)
	if err := c.Bind(pu); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user data")
	}
	role, ok := store.ParseRole(pu.Role)
	if !ok {
		return newError(nil, http.StatusBadRequest, fmt.Sprintf("invalid role '%s'", pu.Role))
	}

	u, err := h.userService.GetUserByID(c.Request().Context(), pu.UserID)
	if err != nil {
		return storeError(err, "unable to read user")
	}
	if u.IsSuperuser() {
		return newError(nil, http.StatusForbidden, "cannot change the role of a superuser")
	}
	if err := h.userService.UpdateUserRole(c.Request().Context(), pu.UserID, role); err != nil {
		return storeError(err, "unable to update user role")
	}
	return c.JSON(http.StatusOK, messageResponse{
		Message: fmt.Sprintf("user '%s' role updated to '%s'", u.Username, role.ToString()),
	})
}

func passwordError(err error, msg string) error {
	if errors.Is(err, service.ErrSuperuserPassword) {
		return newError(err, http.StatusForbidden, err.Error())
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return newError(err, http.StatusBadRequest, "old password is incorrect")
	}
	return storeError(err, msg)
}
