package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/store"
)

type mockEntityService[T any] struct {
	mock.Mock
	key func(*T) string
}

func (m *mockEntityService[T]) List() []T {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]T)
}

func (m *mockEntityService[T]) Get(id string) (*T, string, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*T), args.String(1), args.Error(2)
}

func (m *mockEntityService[T]) Key(e *T) string {
	return m.key(e)
}

func (m *mockEntityService[T]) Create(user cruise.Username, e *T) *command.Result {
	return m.Called(user, e).Get(0).(*command.Result)
}

func (m *mockEntityService[T]) Update(user cruise.Username, id, digest string, e *T) *command.Result {
	return m.Called(user, id, digest, e).Get(0).(*command.Result)
}

func (m *mockEntityService[T]) Delete(user cruise.Username, id string) *command.Result {
	return m.Called(user, id).Get(0).(*command.Result)
}

func newMockProfileService() *mockEntityService[cruise.ElasticProfile] {
	return &mockEntityService[cruise.ElasticProfile]{
		key: func(p *cruise.ElasticProfile) string { return p.ID },
	}
}

func successResult(msg string) *command.Result {
	r := command.NewResult()
	r.SetMessage(msg)
	return r
}

func TestEntityHandler_List(t *testing.T) {
	t.Run("success - empty list is rendered as an empty array", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("List").Return(nil)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).List(c)

		// assert
		assert.NoError(t, err)
		assert.JSONEq(t, `{"_embedded":[]}`, rec.Body.String())
	})
}

func TestEntityHandler_Get(t *testing.T) {
	t.Run("success - entity rendered with etag", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Get", "docker").Return(&cruise.ElasticProfile{ID: "docker", ClusterProfileID: "k8s"}, "abc123", nil)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.SetParamNames("id")
		c.SetParamValues("docker")

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Get(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, `"abc123"`, rec.Header().Get(internal.ETagHeader))
		assert.Contains(t, rec.Body.String(), `"cluster_profile_id":"k8s"`)
	})
	t.Run("success - matching if-none-match is not modified", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Get", "docker").Return(&cruise.ElasticProfile{ID: "docker"}, "abc123", nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(internal.IfNoneMatchHeader, `"abc123"`)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("docker")

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Get(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
	t.Run("failure - entity not found", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Get", "missing").Return(nil, "", store.RecordNotFoundError{Entity: "elastic profile", ID: "missing"})
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("missing")

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Get(c)

		// assert
		assert.Equal(t, http.StatusNotFound, httpStatus(t, err))
	})
}

func TestEntityHandler_Create(t *testing.T) {
	t.Run("success - saved entity returned with new etag", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Create", mock.Anything, mock.MatchedBy(func(p *cruise.ElasticProfile) bool {
			return p.ID == "docker"
		})).Return(successResult("created"))
		s.On("Get", "docker").Return(&cruise.ElasticProfile{ID: "docker", ClusterProfileID: "k8s"}, "d1", nil)
		req := jsonRequest(http.MethodPost, "/", map[string]string{"id": "docker", "cluster_profile_id": "k8s"})
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Create(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `"d1"`, rec.Header().Get(internal.ETagHeader))
	})
	t.Run("failure - validation errors are rendered with 422", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*cruise.ElasticProfile).AddError("cluster_profile_id", "No cluster profile 'gone' exists.")
		}).Return(func() *command.Result {
			r := command.NewResult()
			r.UnprocessableEntity("Validations failed for elastic profile 'docker'.")
			return r
		}())
		req := jsonRequest(http.MethodPost, "/", map[string]string{"id": "docker", "cluster_profile_id": "gone"})
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Create(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "No cluster profile 'gone' exists.")
		s.AssertNotCalled(t, "Get", "docker")
	})
	t.Run("failure - anonymous user is forbidden", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Create", cruise.Anonymous, mock.Anything).Return(func() *command.Result {
			r := command.NewResult()
			r.Forbidden("Unauthorized to edit.")
			return r
		}())
		req := jsonRequest(http.MethodPost, "/", map[string]string{"id": "docker"})
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Create(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestEntityHandler_Update(t *testing.T) {
	t.Run("success - if-match digest is passed on", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Update", mock.Anything, "docker", "d1", mock.Anything).Return(successResult("updated"))
		s.On("Get", "docker").Return(&cruise.ElasticProfile{ID: "docker"}, "d2", nil)
		req := jsonRequest(http.MethodPut, "/", map[string]string{"id": "docker"})
		req.Header.Set(internal.IfMatchHeader, `"d1"`)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("docker")

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Update(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, `"d2"`, rec.Header().Get(internal.ETagHeader))
		s.AssertExpectations(t)
	})
	t.Run("failure - missing if-match", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		req := jsonRequest(http.MethodPut, "/", map[string]string{"id": "docker"})
		c := echo.New().NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("docker")

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Update(c)

		// assert
		assert.Equal(t, http.StatusPreconditionRequired, httpStatus(t, err))
		s.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
	t.Run("failure - stale digest", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Update", mock.Anything, "docker", "old", mock.Anything).Return(func() *command.Result {
			r := command.NewResult()
			r.Stale("Someone has modified the configuration for elastic profile 'docker'.")
			return r
		}())
		req := jsonRequest(http.MethodPut, "/", map[string]string{"id": "docker"})
		req.Header.Set(internal.IfMatchHeader, `"old"`)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("docker")

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Update(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
		assert.Contains(t, rec.Body.String(), "Someone has modified the configuration")
	})
}

func TestEntityHandler_Delete(t *testing.T) {
	t.Run("failure - referenced entity cannot be deleted", func(t *testing.T) {
		// arrange
		s := newMockProfileService()
		s.On("Delete", mock.Anything, "docker").Return(func() *command.Result {
			r := command.NewResult()
			r.UnprocessableEntity("The elastic profile 'docker' is being referenced by pipeline(s): deploy.")
			return r
		}())
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
		c.SetParamNames("id")
		c.SetParamValues("docker")

		// act
		err := NewEntityHandler[cruise.ElasticProfile](s).Delete(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "is being referenced by")
	})
}
