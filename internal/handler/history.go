package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
)

const defaultPageSize = 10

type HistoryServicer interface {
	PipelineHistory(ctx context.Context, name string, limit, offset int) (*service.PipelineHistory, error)
	PipelineInstance(ctx context.Context, name string, counter int64) (*store.Pipeline, error)
	StageHistory(ctx context.Context, pipeline, stage string, pageSize, offset int) (*store.StageHistoryPage, error)
	StageInstance(ctx context.Context, id store.StageIdentifier) (*store.Stage, error)
	JobHistory(ctx context.Context, pipeline, stage, job string, pageSize, offset int) (*service.JobHistory, error)
	JobInstance(ctx context.Context, id store.JobIdentifier) (*store.JobInstance, error)
	Pause(ctx context.Context, pipeline, cause, by string) error
	Unpause(ctx context.Context, pipeline string) error
}

type HistoryHandler struct {
	historyService HistoryServicer
	pageSize       int
}

func NewHistoryHandler(s HistoryServicer, pageSize int) *HistoryHandler {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &HistoryHandler{historyService: s, pageSize: pageSize}
}

func SetupHistoryRoutes(g *echo.Group, h *HistoryHandler, operate echo.MiddlewareFunc) {
	g.GET("/api/pipelines/:pipeline/history", h.GetPipelineHistory)
	g.GET("/api/pipelines/:pipeline/:pipeline_counter", h.GetPipelineInstance)
	g.POST("/api/pipelines/:pipeline/pause", h.PostPause, operate)
	g.POST("/api/pipelines/:pipeline/unpause", h.PostUnpause, operate)
	g.GET("/api/stages/:pipeline/:stage/history", h.GetStageHistory)
	g.GET("/api/stages/:pipeline/:pipeline_counter/:stage/:stage_counter", h.GetStageInstance)
	g.GET("/api/jobs/:pipeline/:stage/:job/history", h.GetJobHistory)
	g.GET("/api/jobs/:pipeline/:pipeline_counter/:stage/:stage_counter/:job", h.GetJobInstance)
}

type HistoryParams struct {
	Pipeline        string `param:"pipeline" json:"-"`
	PipelineCounter int64  `param:"pipeline_counter" json:"-"`
	Stage           string `param:"stage" json:"-"`
	StageCounter    int64  `param:"stage_counter" json:"-"`
	Job             string `param:"job" json:"-"`
	PageSize        int    `query:"page_size"`
	Offset          int    `query:"offset"`
}

func (h *HistoryHandler) bind(c echo.Context) (*HistoryParams, error) {
	hp := new(HistoryParams)
	if err := c.Bind(hp); err != nil {
		return nil, newError(err, http.StatusBadRequest, "invalid history parameters")
	}
	if hp.PageSize <= 0 || hp.PageSize > 100 {
		hp.PageSize = h.pageSize
	}
	if hp.Offset < 0 {
		hp.Offset = 0
	}
	return hp, nil
}

func (h *HistoryHandler) GetPipelineHistory(c echo.Context) error {
	hp, err := h.bind(c)
	if err != nil {
		return err
	}
	history, err := h.historyService.PipelineHistory(c.Request().Context(), hp.Pipeline, hp.PageSize, hp.Offset)
	if err != nil {
		return storeError(err, "unable to read pipeline history")
	}
	return c.JSON(http.StatusOK, history)
}

func (h *HistoryHandler) GetPipelineInstance(c echo.Context) error {
	hp, err := h.bind(c)
	if err != nil {
		return err
	}
	p, err := h.historyService.PipelineInstance(c.Request().Context(), hp.Pipeline, hp.PipelineCounter)
	if err != nil {
		return storeError(err, "unable to read pipeline instance")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *HistoryHandler) GetStageHistory(c echo.Context) error {
	hp, err := h.bind(c)
	if err != nil {
		return err
	}
	page, err := h.historyService.StageHistory(c.Request().Context(), hp.Pipeline, hp.Stage, hp.PageSize, hp.Offset)
	if err != nil {
		return storeError(err, "unable to read stage history")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *HistoryHandler) GetStageInstance(c echo.Context) error {
	hp, err := h.bind(c)
	if err != nil {
		return err
	}
	stage, err := h.historyService.StageInstance(c.Request().Context(), store.StageIdentifier{
		PipelineName:    hp.Pipeline,
		PipelineCounter: hp.PipelineCounter,
		StageName:       hp.Stage,
		StageCounter:    hp.StageCounter,
	})
	if err != nil {
		return storeError(err, "unable to read stage instance")
	}
	return c.JSON(http.StatusOK, stage)
}

func (h *HistoryHandler) GetJobHistory(c echo.Context) error {
	hp, err := h.bind(c)
	if err != nil {
		return err
	}
	history, err := h.historyService.JobHistory(
		c.Request().Context(), hp.Pipeline, hp.Stage, hp.Job, hp.PageSize, hp.Offset,
	)
	if err != nil {
		return storeError(err, "unable to read job history")
	}
	return c.JSON(http.StatusOK, history)
}

func (h *HistoryHandler) GetJobInstance(c echo.Context) error {
	hp, err := h.bind(c)
	if err != nil {
		return err
	}
	job, err := h.historyService.JobInstance(c.Request().Context(), store.JobIdentifier{
		PipelineName:    hp.Pipeline,
		PipelineCounter: hp.PipelineCounter,
		StageName:       hp.Stage,
		StageCounter:    hp.StageCounter,
		BuildName:       hp.Job,
	})
	if err != nil {
		return storeError(err, "unable to read job instance")
	}
	return c.JSON(http.StatusOK, job)
}

type PauseParams struct {
	Pipeline string `param:"pipeline" json:"-"`
	Cause    string `json:"pause_cause"`
}

func (h *HistoryHandler) PostPause(c echo.Context) error {
	pp := new(PauseParams)
	if err := c.Bind(pp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pause data")
	}
	if err := h.historyService.Pause(c.Request().Context(), pp.Pipeline, pp.Cause, ctxUsername(c).Name); err != nil {
		return storeError(err, "unable to pause pipeline")
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Pipeline '" + pp.Pipeline + "' paused successfully."})
}

func (h *HistoryHandler) PostUnpause(c echo.Context) error {
	pipeline := c.Param("pipeline")
	if err := h.historyService.Unpause(c.Request().Context(), pipeline); err != nil {
		return storeError(err, "unable to unpause pipeline")
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Pipeline '" + pipeline + "' unpaused successfully."})
}
