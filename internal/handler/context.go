package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
)

const ctxUserKey = "user"

func getCtxUser(c echo.Context) *store.User {
	if u, ok := c.Get(ctxUserKey).(*store.User); ok {
		return u
	}
	return nil
}

func setCtxUser(c echo.Context, u *store.User) {
	c.Set(ctxUserKey, u)
}

// ctxUsername is the name config changes are authorized and recorded as.
func ctxUsername(c echo.Context) cruise.Username {
	return service.ConfigUsername(getCtxUser(c))
}
