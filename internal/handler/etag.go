package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal"
)

func setETag(c echo.Context, digest string) {
	c.Response().Header().Set(internal.ETagHeader, `"`+digest+`"`)
}

// ifMatch returns the digest the client based its change on.
func ifMatch(c echo.Context) string {
	return unquote(c.Request().Header.Get(internal.IfMatchHeader))
}

// notModified reports whether the client already has digest.
func notModified(c echo.Context, digest string) bool {
	return unquote(c.Request().Header.Get(internal.IfNoneMatchHeader)) == digest && digest != ""
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

// renderEntity writes entity with its digest as ETag.
func renderEntity(c echo.Context, entity any, digest string) error {
	if notModified(c, digest) {
		return c.NoContent(http.StatusNotModified)
	}
	setETag(c, digest)
	return c.JSON(http.StatusOK, entity)
}

// requireIfMatch rejects updates that do not say what they are based on.
func requireIfMatch(c echo.Context) (string, error) {
	digest := ifMatch(c)
	if digest == "" {
		return "", newError(nil, http.StatusPreconditionRequired, "Missing If-Match header.")
	}
	return digest, nil
}
