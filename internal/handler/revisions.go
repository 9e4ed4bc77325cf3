package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/configstore"
)

type RevisionServicer interface {
	Revisions(limit, offset int) ([]configstore.Revision, error)
	ConfigAt(md5 string) ([]byte, error)
	Diff(fromMD5, toMD5 string) (string, error)
}

func SetupRevisionRoutes(g *echo.Group, h *RevisionHandler, m ...echo.MiddlewareFunc) {
	cg := g.Group("/api/config", m...)
	cg.GET("/revisions", h.GetRevisions)
	cg.GET("/revisions/:md5", h.GetRevision)
	cg.GET("/diff/:from/:to", h.GetDiff)
}

type RevisionHandler struct {
	versions RevisionServicer
}

func NewRevisionHandler(v RevisionServicer) *RevisionHandler {
	return &RevisionHandler{versions: v}
}

type RevisionParams struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (h *RevisionHandler) GetRevisions(c echo.Context) error {
	rp := new(RevisionParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid paging parameters")
	}
	if rp.Limit <= 0 {
		rp.Limit = defaultPageSize
	}
	revisions, err := h.versions.Revisions(rp.Limit, max(rp.Offset, 0))
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list config revisions")
	}
	return c.JSON(http.StatusOK, listResponse[configstore.Revision]{Embedded: revisions})
}

func (h *RevisionHandler) GetRevision(c echo.Context) error {
	content, err := h.versions.ConfigAt(c.Param("md5"))
	if err != nil {
		return revisionError(err)
	}
	return c.Blob(http.StatusOK, "application/yaml", content)
}

func (h *RevisionHandler) GetDiff(c echo.Context) error {
	diff, err := h.versions.Diff(c.Param("from"), c.Param("to"))
	if err != nil {
		return revisionError(err)
	}
	return c.String(http.StatusOK, diff)
}

func revisionError(err error) error {
	var notFound *configstore.RevisionNotFoundError
	if errors.As(err, &notFound) {
		return newError(err, http.StatusNotFound, notFound.Error())
	}
	return newError(err, http.StatusInternalServerError, "unable to read config revision")
}
