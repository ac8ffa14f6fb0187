package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Headers sets the headers shared by all the responses.
func Headers(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
			h.Set("X-Mediastore-Version", version)
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")

			return next(c)
		}
	}
}
