package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
)

type PipelineConfigServicer interface {
	Get(name string) (*cruise.PipelineConfig, string, string, error)
	List(user cruise.Username) map[string][]string
	Create(user cruise.Username, group string, p *cruise.PipelineConfig) *command.Result
	Update(user cruise.Username, name, group, digest string, p *cruise.PipelineConfig) *command.Result
	Delete(user cruise.Username, name string) *command.Result
	ExtractTemplate(user cruise.Username, pipeline, template string) *command.Result
}

type PipelineConfigHandler struct {
	pipelineService PipelineConfigServicer
}

func NewPipelineConfigHandler(s PipelineConfigServicer) *PipelineConfigHandler {
	return &PipelineConfigHandler{pipelineService: s}
}

func SetupPipelineConfigRoutes(g *echo.Group, s PipelineConfigServicer) {
	h := NewPipelineConfigHandler(s)
	pg := g.Group("/api/admin/pipelines")
	pg.GET("", h.GetPipelines)
	pg.POST("", h.PostPipeline)
	pg.GET("/:name", h.GetPipeline)
	pg.PUT("/:name", h.PutPipeline)
	pg.DELETE("/:name", h.DeletePipeline)
	pg.POST("/:name/extract_template", h.PostExtractTemplate)
}

// PipelineRequest is a pipeline with the group it belongs to.
type PipelineRequest struct {
	Group    string                `json:"group"`
	Pipeline cruise.PipelineConfig `json:"pipeline"`
}

type pipelineResponse struct {
	Group    string                 `json:"group"`
	Pipeline *cruise.PipelineConfig `json:"pipeline"`
}

func (h *PipelineConfigHandler) GetPipelines(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pipelineService.List(ctxUsername(c)))
}

func (h *PipelineConfigHandler) GetPipeline(c echo.Context) error {
	p, group, digest, err := h.pipelineService.Get(c.Param("name"))
	if err != nil {
		return storeError(err, "unable to read pipeline")
	}
	return renderEntity(c, pipelineResponse{Group: group, Pipeline: p}, digest)
}

func (h *PipelineConfigHandler) PostPipeline(c echo.Context) error {
	pr := new(PipelineRequest)
	if err := c.Bind(pr); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline data")
	}
	result := h.pipelineService.Create(ctxUsername(c), pr.Group, &pr.Pipeline)
	return h.respond(c, result, &pr.Pipeline)
}

func (h *PipelineConfigHandler) PutPipeline(c echo.Context) error {
	digest, err := requireIfMatch(c)
	if err != nil {
		return err
	}
	pr := new(PipelineRequest)
	if err := c.Bind(pr); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline data")
	}
	result := h.pipelineService.Update(ctxUsername(c), c.Param("name"), pr.Group, digest, &pr.Pipeline)
	return h.respond(c, result, &pr.Pipeline)
}

func (h *PipelineConfigHandler) DeletePipeline(c echo.Context) error {
	result := h.pipelineService.Delete(ctxUsername(c), c.Param("name"))
	return renderResult(c, result, nil)
}

type ExtractTemplateParams struct {
	Template string `json:"template_name"`
}

func (h *PipelineConfigHandler) PostExtractTemplate(c echo.Context) error {
	ep := new(ExtractTemplateParams)
	if err := c.Bind(ep); err != nil {
		return newError(err, http.StatusBadRequest, "invalid template data")
	}
	result := h.pipelineService.ExtractTemplate(ctxUsername(c), c.Param("name"), ep.Template)
	return renderResult(c, result, nil)
}

func (h *PipelineConfigHandler) respond(c echo.Context, result *command.Result, p *cruise.PipelineConfig) error {
	if !result.IsSuccessful() {
		return renderResult(c, result, p)
	}
	saved, group, digest, err := h.pipelineService.Get(p.Name)
	if err != nil {
		return renderResult(c, result, nil)
	}
	setETag(c, digest)
	return c.JSON(http.StatusOK, pipelineResponse{Group: group, Pipeline: saved})
}
