package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/wedding-planner/internal/handler"
)

// RegisterRequirements registers /api/requirements.
func RegisterRequirements(e *echo.Echo, h *handler.RequirementHandler, auth, limit echo.MiddlewareFunc) {
	g := e.Group("/api/requirements", auth, limit, echomw.BodyLimit("1M"))

	g.GET("/stats", h.Stats)
	g.PATCH("/bulk-status", h.BulkStatus)
	g.GET("/status/:status", h.ListByStatus)

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PATCH("/:id/status", h.ToggleStatus)
}
