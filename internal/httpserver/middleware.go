package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/crabnebula-dev/gitbutler/internal/platform/correlation"
)

// correlationMiddleware tags the request context with the caller's
// correlation ID, or a fresh one, and echoes it in the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlation.Header)
		if id == "" || len(id) > 64 {
			id = correlation.NewID()
		}
		c.Response().Header().Set(correlation.Header, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
