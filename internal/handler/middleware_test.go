package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestMiddleware_IsAuthenticated(t *testing.T) {
	t.Run("success - user is authenticated", func(t *testing.T) {
		// arrange
		user := generateUser(store.Admin, util.AsPtr(time.Now().UTC().Add(-30*time.Second)), nil)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		setCtxUser(c, user)

		// act
		err := IsAuthenticated(okHandler)(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "ok", rec.Body.String())
	})
	t.Run("failure - no user", func(t *testing.T) {
		// arrange
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

		// act
		err := IsAuthenticated(okHandler)(c)

		// assert
		assert.Equal(t, http.StatusUnauthorized, httpStatus(t, err))
	})
	t.Run("failure - user has not changed password", func(t *testing.T) {
		// arrange
		user := generateUser(store.Admin, nil, nil)
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		setCtxUser(c, user)

		// act
		err := IsAuthenticated(okHandler)(c)

		// assert
		assert.Equal(t, http.StatusForbidden, httpStatus(t, err))
	})
}

func TestMiddleware_IsSignedIn(t *testing.T) {
	t.Run("success - password change pending is allowed", func(t *testing.T) {
		// arrange
		user := generateUser(store.Operator, nil, nil)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		setCtxUser(c, user)

		// act
		err := IsSignedIn(okHandler)(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("failure - no user", func(t *testing.T) {
		// arrange
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

		// act
		err := IsSignedIn(okHandler)(c)

		// assert
		assert.Equal(t, http.StatusUnauthorized, httpStatus(t, err))
	})
}

func TestMiddleware_RoleMiddleware(t *testing.T) {
	cases := []struct {
		name     string
		role     store.Role
		required store.Role
		allowed  bool
	}{
		{"success - admin is allowed admin routes", store.Admin, store.Admin, true},
		{"success - superuser is allowed admin routes", store.Superuser, store.Admin, true},
		{"failure - operator is not allowed admin routes", store.Operator, store.Admin, false},
		{"failure - admin is not allowed superuser routes", store.Admin, store.Superuser, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			user := generateUser(tc.role, util.AsPtr(time.Now().UTC()), nil)
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			setCtxUser(c, user)

			// act
			err := RoleMiddleware(tc.required)(okHandler)(c)

			// assert
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, http.StatusForbidden, httpStatus(t, err))
			}
		})
	}
}
