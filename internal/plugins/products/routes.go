package products

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up product routes on the API group. uploadMW wraps the
// endpoints that accept files (request size cap, rate limit).
func RegisterRoutes(api *echo.Group, h *Handler, uploadMW ...echo.MiddlewareFunc) {
	api.GET("/products", h.List)
	api.POST("/products", h.Create, uploadMW...)
	api.GET("/products/:id", h.Show)
	api.PUT("/products/:id", h.Update, uploadMW...)
	api.DELETE("/products/:id", h.Delete)
}
