package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/wedding-planner/internal/handler"
)

// RegisterGuests registers /api/guests.  Fixed paths go before /:id.
func RegisterGuests(e *echo.Echo, h *handler.GuestHandler, auth, limit echo.MiddlewareFunc) {
	g := e.Group("/api/guests", auth, limit, echomw.BodyLimit("1M"))

	g.GET("/stats", h.Stats)
	g.PATCH("/bulk-invitation", h.BulkInvitation)

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PATCH("/:id/invitation", h.ToggleInvitation)
}
