package media

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up media routes. Static uploads are public; item
// operations hang off the product API group.
func RegisterRoutes(e *echo.Echo, api *echo.Group, h *Handler) {
	e.GET("/uploads/*", h.ServeUpload)
	e.HEAD("/uploads/*", h.ServeUpload)

	api.GET("/products/:id/media/:mediaID", h.Get)
	api.DELETE("/products/:id/media/:mediaID", h.Delete)
	api.POST("/products/:id/media/:mediaID/reprocess", h.Reprocess)
}
