package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
)

// EntityServicer reads and edits one kind of configuration entity.
type EntityServicer[T any] interface {
	List() []T
	Get(id string) (*T, string, error)
	Key(e *T) string
	Create(user cruise.Username, e *T) *command.Result
	Update(user cruise.Username, id, digest string, e *T) *command.Result
	Delete(user cruise.Username, id string) *command.Result
}

type EntityHandler[T any] struct {
	service EntityServicer[T]
}

func NewEntityHandler[T any](s EntityServicer[T]) *EntityHandler[T] {
	return &EntityHandler[T]{service: s}
}

// SetupEntityRoutes registers list, get, create, update and delete under
// path. Entities are addressed by the :id parameter.
func SetupEntityRoutes[T any](g *echo.Group, path string, s EntityServicer[T], m ...echo.MiddlewareFunc) {
	h := NewEntityHandler(s)
	eg := g.Group(path, m...)
	eg.GET("", h.List)
	eg.POST("", h.Create)
	eg.GET("/:id", h.Get)
	eg.PUT("/:id", h.Update)
	eg.DELETE("/:id", h.Delete)
}

type listResponse[T any] struct {
	Embedded []T `json:"_embedded"`
}

func (h *EntityHandler[T]) List(c echo.Context) error {
	items := h.service.List()
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, listResponse[T]{Embedded: items})
}

func (h *EntityHandler[T]) Get(c echo.Context) error {
	e, digest, err := h.service.Get(c.Param("id"))
	if err != nil {
		return storeError(err, "unable to read entity")
	}
	return renderEntity(c, e, digest)
}

func (h *EntityHandler[T]) Create(c echo.Context) error {
	e := new(T)
	if err := c.Bind(e); err != nil {
		return newError(err, http.StatusBadRequest, "invalid entity data")
	}
	result := h.service.Create(ctxUsername(c), e)
	return h.respond(c, result, e, h.service.Key(e))
}

func (h *EntityHandler[T]) Update(c echo.Context) error {
	digest, err := requireIfMatch(c)
	if err != nil {
		return err
	}
	e := new(T)
	if err := c.Bind(e); err != nil {
		return newError(err, http.StatusBadRequest, "invalid entity data")
	}
	id := c.Param("id")
	result := h.service.Update(ctxUsername(c), id, digest, e)
	return h.respond(c, result, e, h.service.Key(e))
}

func (h *EntityHandler[T]) Delete(c echo.Context) error {
	result := h.service.Delete(ctxUsername(c), c.Param("id"))
	return renderResult(c, result, nil)
}

// respond writes the saved entity with its new digest, or the failed
// result with the errors found on e.
func (h *EntityHandler[T]) respond(c echo.Context, result *command.Result, e *T, id string) error {
	if !result.IsSuccessful() {
		v, _ := any(e).(cruise.Validatable)
		return renderResult(c, result, v)
	}
	saved, digest, err := h.service.Get(id)
	if err != nil {
		return renderResult(c, result, nil)
	}
	setETag(c, digest)
	return c.JSON(http.StatusOK, saved)
}
