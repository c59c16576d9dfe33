package middleware

import (
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// APIPrefix is the path prefix of the JSON API.
const APIPrefix = "/api/"

// IsAPI reports whether the request targets the JSON API. The error handler
// uses it to choose between a JSON body and the HTML error page.
func IsAPI(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/api" || strings.HasPrefix(p, APIPrefix)
}

// Render writes a Templ component to the response with the given status code.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(statusCode)
	return component.Render(c.Request().Context(), c.Response().Writer)
}
