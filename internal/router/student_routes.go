package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/canteen-ordering/internal/handler"
	"github.com/iliyamo/canteen-ordering/internal/middleware"
)

// RegisterStudent registers the ordering endpoints.  All routes require a
// valid JWT and the STUDENT role.  Placing an order is additionally rate
// limited and honours the Idempotency-Key header.
func RegisterStudent(e *echo.Echo, h *handler.OrderHandler, jwtSecret string, rateLimit, idempotency echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("STUDENT"),
	)
	// Rate limiting runs first so rejected requests never take the
	// idempotency lock.
	g.POST("/orders", h.Place, rateLimit, idempotency)
	g.GET("/my-orders", h.Mine)
	g.GET("/orders/:id/qr", h.QR)
}
