package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/webserver/weberror"
)

// NewHTTPErrorHandler is a middleware that formats rendered errors.
func NewHTTPErrorHandler(log logger.Logger) func(err error, c echo.Context) {
	log = log.WithPrefix("[http]")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			// Failure during a stream, the status is already sent.
			log.Errorf("%s %s: %s", c.Request().Method, c.Request().URL.Path, err)
			return
		}

		var rendered error
		switch e := err.(type) {
		case *echo.HTTPError:
			rendered = weberror.New(e.Code, http.StatusText(e.Code))
		case *weberror.Error:
			rendered = e
		default:
			rendered = weberror.New(http.StatusInternalServerError, err.Error())
		}

		code := weberror.StatusCode(rendered)
		if code >= http.StatusInternalServerError {
			log.Error(err)
		} else {
			log.Debug(err)
		}

		if err2 := c.JSON(code, rendered); err2 != nil {
			log.Errorf("HTTPErrorHandler: %s", err2)
		}
	}
}
