package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/handler"
	"github.com/iliyamo/canteen-ordering/internal/middleware"
)

// New builds the Echo instance with the global middleware chain: panic
// recovery, request ids, CORS and one structured log line per request.
func New(log *zap.Logger, origins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Cache", "Idempotent-Replay", "Retry-After", "X-RateLimit-Remaining"},
	})

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echo.WrapMiddleware(c.Handler))
	e.Use(middleware.RequestLogger(log))
	return e
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers authentication routes.  Login, refresh and logout
// need no session; /v1/me requires a valid access token of either role.
// Login shares the order rate limiter to slow down password guessing.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, rateLimit)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole("STUDENT", "ADMIN"))
}

// RegisterPublic registers the unauthenticated menu and slot listings.  The
// cache middleware is a no-op when Redis is unavailable.
func RegisterPublic(e *echo.Echo, m *handler.MenuHandler, s *handler.SlotHandler, cache *middleware.ResponseCache) {
	cached := cache.Middleware()
	e.GET("/v1/menu/today", m.Today, cached)
	e.GET("/v1/menu/:date", m.ByDate, cached)
	e.GET("/v1/slots", s.List, cached)
}
