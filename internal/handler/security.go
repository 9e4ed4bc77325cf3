package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
)

type SecurityAdminsServicer interface {
	Get() (*cruise.AdminsConfig, string, error)
	Update(user cruise.Username, digest string, admins *cruise.AdminsConfig) *command.Result
}

type SecurityAdminsHandler struct {
	adminsService SecurityAdminsServicer
}

func NewSecurityAdminsHandler(s SecurityAdminsServicer) *SecurityAdminsHandler {
	return &SecurityAdminsHandler{adminsService: s}
}

func SetupSecurityAdminsRoutes(g *echo.Group, s SecurityAdminsServicer, m ...echo.MiddlewareFunc) {
	h := NewSecurityAdminsHandler(s)
	ag := g.Group("/api/admin/security/system_admins", m...)
	ag.GET("", h.GetAdmins)
	ag.PUT("", h.PutAdmins)
}

func (h *SecurityAdminsHandler) GetAdmins(c echo.Context) error {
	admins, digest, err := h.adminsService.Get()
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to read system admins")
	}
	return renderEntity(c, admins, digest)
}

func (h *SecurityAdminsHandler) PutAdmins(c echo.Context) error {
	digest, err := requireIfMatch(c)
	if err != nil {
		return err
	}
	admins := new(cruise.AdminsConfig)
	if err := c.Bind(admins); err != nil {
		return newError(err, http.StatusBadRequest, "invalid system admins data")
	}
	result := h.adminsService.Update(ctxUsername(c), digest, admins)
	if !result.IsSuccessful() {
		return renderResult(c, result, admins)
	}
	return h.GetAdmins(c)
}
