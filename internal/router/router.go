// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/bekzatkhan/supply-accountability/internal/handler"
	"github.com/bekzatkhan/supply-accountability/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, conn *handler.ConnectivityHandler) {
	e.GET("/healthz", handler.Health)
	// Connectivity tells clients whether the ledger is writable right
	// now; polled by the UI to surface an offline banner.
	e.GET("/v1/connectivity", conn.Connectivity)
}

// RegisterAuth registers authentication routes. Unauthenticated
// operations live under /v1/auth, protected ones under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts a refresh_token body without requiring a JWT, so
	// it stays outside the protected group.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}
