package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
)

type EnvironmentConfigServicer interface {
	List() []cruise.EnvironmentConfig
	Get(name string) (*cruise.EnvironmentConfig, string, error)
	Create(user cruise.Username, env *cruise.EnvironmentConfig) *command.Result
	Update(user cruise.Username, name, digest string, env *cruise.EnvironmentConfig) *command.Result
	Patch(user cruise.Username, name string, patch command.EnvironmentPatch) *command.Result
	Delete(user cruise.Username, name string) *command.Result
}

type EnvironmentHandler struct {
	environmentService EnvironmentConfigServicer
}

func NewEnvironmentHandler(s EnvironmentConfigServicer) *EnvironmentHandler {
	return &EnvironmentHandler{environmentService: s}
}

func SetupEnvironmentRoutes(g *echo.Group, s EnvironmentConfigServicer, m ...echo.MiddlewareFunc) {
	h := NewEnvironmentHandler(s)
	eg := g.Group("/api/admin/environments", m...)
	eg.GET("", h.GetEnvironments)
	eg.POST("", h.PostEnvironment)
	eg.GET("/:name", h.GetEnvironment)
	eg.PUT("/:name", h.PutEnvironment)
	eg.PATCH("/:name", h.PatchEnvironment)
	eg.DELETE("/:name", h.DeleteEnvironment)
}

func (h *EnvironmentHandler) GetEnvironments(c echo.Context) error {
	envs := h.environmentService.List()
	if envs == nil {
		envs = []cruise.EnvironmentConfig{}
	}
	return c.JSON(http.StatusOK, listResponse[cruise.EnvironmentConfig]{Embedded: envs})
}

func (h *EnvironmentHandler) GetEnvironment(c echo.Context) error {
	env, digest, err := h.environmentService.Get(c.Param("name"))
	if err != nil {
		return storeError(err, "unable to read environment")
	}
	return renderEntity(c, env, digest)
}

func (h *EnvironmentHandler) PostEnvironment(c echo.Context) error {
	env := new(cruise.EnvironmentConfig)
	if err := c.Bind(env); err != nil {
		return newError(err, http.StatusBadRequest, "invalid environment data")
	}
	result := h.environmentService.Create(ctxUsername(c), env)
	return h.respond(c, result, env, env.Name)
}

func (h *EnvironmentHandler) PutEnvironment(c echo.Context) error {
	digest, err := requireIfMatch(c)
	if err != nil {
		return err
	}
	env := new(cruise.EnvironmentConfig)
	if err := c.Bind(env); err != nil {
		return newError(err, http.StatusBadRequest, "invalid environment data")
	}
	result := h.environmentService.Update(ctxUsername(c), c.Param("name"), digest, env)
	return h.respond(c, result, env, env.Name)
}

// EnvironmentPatchParams lists the pipelines, agents and variables to add
// to and remove from an environment.
type EnvironmentPatchParams struct {
	Pipelines struct {
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	} `json:"pipelines"`
	Agents struct {
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	} `json:"agents"`
	EnvironmentVariables struct {
		Add    []cruise.EnvironmentVariable `json:"add"`
		Remove []string                     `json:"remove"`
	} `json:"environment_variables"`
}

func (p EnvironmentPatchParams) patch() command.EnvironmentPatch {
	return command.EnvironmentPatch{
		PipelinesToAdd:    p.Pipelines.Add,
		PipelinesToRemove: p.Pipelines.Remove,
		AgentsToAdd:       p.Agents.Add,
		AgentsToRemove:    p.Agents.Remove,
		VariablesToAdd:    p.EnvironmentVariables.Add,
		VariablesToRemove: p.EnvironmentVariables.Remove,
	}
}

func (h *EnvironmentHandler) PatchEnvironment(c echo.Context) error {
	pp := new(EnvironmentPatchParams)
	if err := c.Bind(pp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid environment patch")
	}
	name := c.Param("name")
	result := h.environmentService.Patch(ctxUsername(c), name, pp.patch())
	return h.respond(c, result, nil, name)
}

func (h *EnvironmentHandler) DeleteEnvironment(c echo.Context) error {
	result := h.environmentService.Delete(ctxUsername(c), c.Param("name"))
	return renderResult(c, result, nil)
}

func (h *EnvironmentHandler) respond(
	c echo.Context,
	result *command.Result,
	env *cruise.EnvironmentConfig,
	name string,
) error {
	if !result.IsSuccessful() {
		if env == nil {
			return renderResult(c, result, nil)
		}
		return renderResult(c, result, env)
	}
	saved, digest, err := h.environmentService.Get(name)
	if err != nil {
		return renderResult(c, result, nil)
	}
	setETag(c, digest)
	return c.JSON(http.StatusOK, saved)
}
