package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/wedding-planner/internal/handler"
)

// RegisterExpenses registers /api/expenses with its item and document
// sub-resources.  bodyLimit must allow a full multipart upload.
func RegisterExpenses(e *echo.Echo, h *handler.ExpenseHandler, bodyLimit string, auth, limit echo.MiddlewareFunc) {
	g := e.Group("/api/expenses", auth, limit, echomw.BodyLimit(bodyLimit))

	g.GET("/stats", h.Stats)
	g.GET("/chart-data", h.ChartData)

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)

	// ---- Items ----
	g.POST("/:id/items", h.AddItem)
	g.PUT("/:id/items/:itemId", h.UpdateItem)
	g.DELETE("/:id/items/:itemId", h.RemoveItem)

	// ---- Documents ----
	g.POST("/:id/documents", h.AttachDocuments)
	g.GET("/:id/documents/:docId", h.DownloadDocument)
	g.DELETE("/:id/documents/:docId", h.RemoveDocument)
}
