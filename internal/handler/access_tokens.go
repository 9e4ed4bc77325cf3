package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/store"
)

type AccessTokenServicer interface {
	CreateAccessToken(ctx context.Context, userID int64, description string) (*store.AccessToken, string, error)
	RevokeAccessToken(ctx context.Context, userID, id int64) error
	ListAccessTokens(ctx context.Context, userID int64) ([]*store.AccessToken, error)
}

func SetupAccessTokenRoutes(g *echo.Group, h *AccessTokenHandler) {
	tokens := g.Group("/api/current_user/access_tokens", IsAuthenticated)
	tokens.GET("", h.GetAccessTokens)
	tokens.POST("", h.PostAccessToken)
	tokens.POST("/:id/revoke", h.PostRevokeAccessToken)
}

type AccessTokenHandler struct {
	tokenService AccessTokenServicer
}

func NewAccessTokenHandler(s AccessTokenServicer) *AccessTokenHandler {
	return &AccessTokenHandler{tokenService: s}
}

type AccessTokenParams struct {
	ID          int64  `param:"id" json:"-"`
	Description string `json:"description"`
}

type createdAccessTokenResponse struct {
	*store.AccessToken
	Token string `json:"token"`
}

func (h *AccessTokenHandler) GetAccessTokens(c echo.Context) error {
	u := getCtxUser(c)
	tokens, err := h.tokenService.ListAccessTokens(c.Request().Context(), u.UserID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list access tokens")
	}
	return c.JSON(http.StatusOK, listResponse[*store.AccessToken]{Embedded: tokens})
}

// PostAccessToken creates a token. Its value is only ever returned here.
func (h *AccessTokenHandler) PostAccessToken(c echo.Context) error {
	ap := new(AccessTokenParams)
	if err := c.Bind(ap); err != nil {
		return newError(err, http.StatusBadRequest, "invalid access token data")
	}
	if ap.Description == "" {
		return newError(nil, http.StatusBadRequest, "description is required")
	}
	u := getCtxUser(c)
	token, value, err := h.tokenService.CreateAccessToken(c.Request().Context(), u.UserID, ap.Description)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to create access token")
	}
	return c.JSON(http.StatusCreated, createdAccessTokenResponse{AccessToken: token, Token: value})
}

func (h *AccessTokenHandler) PostRevokeAccessToken(c echo.Context) error {
	ap := new(AccessTokenParams)
	if err := c.Bind(ap); err != nil {
		return newError(err, http.StatusBadRequest, "invalid access token id")
	}
	u := getCtxUser(c)
	if err := h.tokenService.RevokeAccessToken(c.Request().Context(), u.UserID, ap.ID); err != nil {
		return storeError(err, "unable to revoke access token")
	}
	return c.NoContent(http.StatusNoContent)
}
