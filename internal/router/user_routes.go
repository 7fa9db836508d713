package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/wedding-planner/internal/handler"
)

// RegisterUsers registers account endpoints under /api/users.  Register,
// login, refresh and logout work without an access token; the rest
// require one.
func RegisterUsers(e *echo.Echo, h *handler.UserHandler, auth, limit echo.MiddlewareFunc) {
	pub := e.Group("/api/users", limit, echomw.BodyLimit("1M"))
	pub.POST("/register", h.Register)
	pub.POST("/login", h.Login)
	pub.POST("/refresh", h.Refresh)
	pub.POST("/logout", h.Logout)

	// audio uploads need the larger limit
	g := e.Group("/api/users", auth, limit, echomw.BodyLimit("26M"))
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.DELETE("/profile", h.DeleteAccount)
	g.PUT("/change-password", h.ChangePassword)
	g.GET("/export-data", h.ExportData)
	g.POST("/transcribe", h.Transcribe)
}
