package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
)

type PackageDefinitionServicer interface {
	EntityServicer[cruise.PackageDefinition]
	CreateInRepository(user cruise.Username, repoID string, p *cruise.PackageDefinition) *command.Result
}

// SetupPackageRoutes registers the package definition routes. A new
// package names its repository in package_repo.
func SetupPackageRoutes(g *echo.Group, s PackageDefinitionServicer, m ...echo.MiddlewareFunc) {
	h := NewEntityHandler[cruise.PackageDefinition](s)
	pg := g.Group("/api/admin/packages", m...)
	pg.GET("", h.List)
	pg.POST("", func(c echo.Context) error { return postPackage(c, s, h) })
	pg.GET("/:id", h.Get)
	pg.PUT("/:id", h.Update)
	pg.DELETE("/:id", h.Delete)
}

type PackageDefinitionRequest struct {
	cruise.PackageDefinition
	PackageRepo struct {
		ID string `json:"id"`
	} `json:"package_repo"`
}

func postPackage(c echo.Context, s PackageDefinitionServicer, h *EntityHandler[cruise.PackageDefinition]) error {
	pr := new(PackageDefinitionRequest)
	if err := c.Bind(pr); err != nil {
		return newError(err, http.StatusBadRequest, "invalid package data")
	}
	p := &pr.PackageDefinition
	result := s.CreateInRepository(ctxUsername(c), pr.PackageRepo.ID, p)
	return h.respond(c, result, p, p.ID)
}
