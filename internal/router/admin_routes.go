package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-ordering/internal/handler"
	"github.com/iliyamo/canteen-ordering/internal/middleware"
)

// AdminHandlers groups the handlers mounted under /v1/admin.
type AdminHandlers struct {
	Menu  *handler.MenuHandler
	Slots *handler.SlotHandler
	Admin *handler.AdminHandler
}

// RegisterAdmin registers canteen staff endpoints.  Every route requires the
// ADMIN role.
func RegisterAdmin(e *echo.Echo, h AdminHandlers, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.PUT("/menu/:date", h.Menu.Upsert)

	g.GET("/slot-template", h.Slots.Template)
	g.PUT("/slot-template", h.Slots.ReplaceTemplate)
	g.POST("/slots/materialize", h.Slots.Materialize)
	g.PATCH("/slots/:id/status", h.Slots.SetStatus)

	g.GET("/orders", h.Admin.Orders)
	g.GET("/dues", h.Admin.DuesList)
	g.POST("/dues/:userId/clear", h.Admin.ClearDues)
}
