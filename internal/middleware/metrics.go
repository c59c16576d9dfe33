package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/metrics"
)

// Metrics returns middleware that records request counts and latency.
// Requests are labelled with the matched route template (c.Path()), never
// the raw URL, so IDs in paths do not explode label cardinality.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			// Errors are rendered by the central handler after this returns;
			// record the status it will use.
			status := c.Response().Status
			if err != nil {
				status = StatusOf(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// StatusOf returns the HTTP status an error will be rendered with: the code
// of an echo.HTTPError (routing, body limit) or of an AppError, else 500.
func StatusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperror.SafeCode(err)
}
