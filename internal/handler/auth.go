package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/store"
)

type AuthCookieServicer interface {
	GetSessionID(echo.Context) (string, error)
	SetSessionCookie(echo.Context, string) error
	RemoveSessionCookie(echo.Context)
}

type UserAuthServicer interface {
	CreateAuthSession(ctx context.Context, userID int64) (*store.AuthSession, error)
	EndAuthSessions(ctx context.Context, userID int64) error
	GetUserByID(ctx context.Context, userID int64) (*store.User, error)
	GetUserBySessionID(ctx context.Context, sessionID string) (*store.User, error)
	GetUserByUsernameAndPassword(ctx context.Context, username, password string) (*store.User, error)
	ChangeUserPassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
}

type TokenAuthenticator interface {
	Authenticate(ctx context.Context, value string) (*store.AccessToken, error)
}

func SetupAuthRoutes(g *echo.Group, h *AuthHandler) {
	g.POST("/auth/login", h.PostLogin)
	g.POST("/auth/logout", h.PostLogout, IsAuthenticated)
	g.POST("/auth/set-password", h.PostSetPassword, IsSignedIn)
}

type AuthHandler struct {
	userService   UserAuthServicer
	cookieService AuthCookieServicer
	tokens        TokenAuthenticator
	logger        *zap.Logger
}

func NewAuthHandler(
	userService UserAuthServicer,
	cookieService AuthCookieServicer,
	tokens TokenAuthenticator,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{userService, cookieService, tokens, logger}
}

// SessionMiddleware puts the requesting user in the context. Bearer
// tokens and basic auth are tried before the session cookie. A request
// with bad credentials is rejected, one without any continues anonymous.
func (h *AuthHandler) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		switch {
		case strings.HasPrefix(header, "Bearer "):
			token, err := h.tokens.Authenticate(ctx, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return newError(err, http.StatusUnauthorized, "Invalid access token.")
			}
			u, err := h.userService.GetUserByID(ctx, token.UserID)
			if err != nil {
				return newError(err, http.StatusUnauthorized, "Invalid access token.")
			}
			setCtxUser(c, u)
		case strings.HasPrefix(header, "Basic "):
			username, password, ok := c.Request().BasicAuth()
			if !ok {
				return newError(nil, http.StatusUnauthorized, "Invalid basic authentication credentials.")
			}
			u, err := h.userService.GetUserByUsernameAndPassword(ctx, username, password)
			if err != nil {
				return newError(err, http.StatusUnauthorized, "Invalid basic authentication credentials.")
			}
			setCtxUser(c, u)
		default:
			sessionID, err := h.cookieService.GetSessionID(c)
			if err != nil {
				break
			}
			u, err := h.userService.GetUserBySessionID(ctx, sessionID)
			if err != nil {
				h.cookieService.RemoveSessionCookie(c)
				break
			}
			setCtxUser(c, u)
		}
		return next(c)
	}
}

type LoginParams struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type userResponse struct {
	UserID                 int64  `json:"id"`
	Username               string `json:"username"`
	Role                   string `json:"role"`
	PasswordChangeRequired bool   `json:"password_change_required"`
}

func newUserResponse(u *store.User) userResponse {
	return userResponse{
		UserID:                 u.UserID,
		Username:               u.Username,
		Role:                   u.UserRoleID.ToString(),
		PasswordChangeRequired: u.MustChangePassword(),
	}
}

func (h *AuthHandler) PostLogin(c echo.Context) error {
	lp := new(LoginParams)
	if err := c.Bind(lp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid login data")
	}
	ctx := c.Request().Context()
	u, err := h.userService.GetUserByUsernameAndPassword(ctx, lp.Username, lp.Password)
	if err != nil {
		return newError(err, http.StatusUnauthorized, "invalid username or password")
	}
	s, err := h.userService.CreateAuthSession(ctx, u.UserID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to create session")
	}
	if err := h.cookieService.SetSessionCookie(c, s.AuthSessionID); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to set session cookie")
	}
	h.logger.Info("user signed in", zap.String("username", u.Username))
	return c.JSON(http.StatusOK, newUserResponse(u))
}

func (h *AuthHandler) PostLogout(c echo.Context) error {
	u := getCtxUser(c)
	if err := h.userService.EndAuthSessions(c.Request().Context(), u.UserID); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to end sessions")
	}
	h.cookieService.RemoveSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

type SetPasswordParams struct {
	OldPassword     string `json:"old_password"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (h *AuthHandler) PostSetPassword(c echo.Context) error {
	sp := new(SetPasswordParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid password data")
	}
	if sp.Password == "" || sp.Password != sp.PasswordConfirm {
		return newError(nil, http.StatusBadRequest, "passwords do not match")
	}
	u := getCtxUser(c)
	if err := h.userService.ChangeUserPassword(
		c.Request().Context(), u.UserID, sp.OldPassword, sp.Password,
	); err != nil {
		return newError(err, http.StatusBadRequest, "unable to set password")
	}
	return c.NoContent(http.StatusNoContent)
}
