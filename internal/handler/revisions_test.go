package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/configstore"
)

func newTestRevisionHandler(t *testing.T) (*RevisionHandler, []configstore.Revision) {
	t.Helper()
	vr, err := configstore.NewVersionRepository(memory.NewStorage(), memfs.New(), zap.NewNop())
	require.NoError(t, err)
	first, err := vr.Commit([]byte("groups: []\n"), "md5-first", "alice", 1)
	require.NoError(t, err)
	second, err := vr.Commit([]byte("groups:\n  - name: first\n"), "md5-second", "bob", 1)
	require.NoError(t, err)
	return NewRevisionHandler(vr), []configstore.Revision{first, second}
}

func TestRevisionHandler_GetRevisions(t *testing.T) {
	t.Run("success - revisions listed newest first", func(t *testing.T) {
		// arrange
		h, _ := newTestRevisionHandler(t)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		// act
		err := h.GetRevisions(c)

		// assert
		assert.NoError(t, err)
		body := rec.Body.String()
		assert.Less(t, strings.Index(body, "md5-second"), strings.Index(body, "md5-first"))
	})
}

func TestRevisionHandler_GetRevision(t *testing.T) {
	t.Run("success - content at revision", func(t *testing.T) {
		// arrange
		h, _ := newTestRevisionHandler(t)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.SetParamNames("md5")
		c.SetParamValues("md5-first")

		// act
		err := h.GetRevision(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "groups: []\n", rec.Body.String())
	})
	t.Run("failure - unknown md5", func(t *testing.T) {
		// arrange
		h, _ := newTestRevisionHandler(t)
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("md5")
		c.SetParamValues("nope")

		// act
		err := h.GetRevision(c)

		// assert
		assert.Equal(t, http.StatusNotFound, httpStatus(t, err))
	})
}

func TestRevisionHandler_GetDiff(t *testing.T) {
	t.Run("success - unified diff between revisions", func(t *testing.T) {
		// arrange
		h, _ := newTestRevisionHandler(t)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.SetParamNames("from", "to")
		c.SetParamValues("md5-first", "md5-second")

		// act
		err := h.GetDiff(c)

		// assert
		assert.NoError(t, err)
		assert.Contains(t, rec.Body.String(), "+  - name: first")
	})
}
