package router

import (
	"github.com/labstack/echo/v4"

	"github.com/bekzatkhan/supply-accountability/internal/handler"
	"github.com/bekzatkhan/supply-accountability/internal/middleware"
)

// RegisterHolder registers holder-facing endpoints under /v1. Holders
// see their own receipts and can self-verify items during an active
// session. Authorities are also accepted so they can exercise the
// holder views when assisting in person.
func RegisterHolder(e *echo.Echo, rc *handler.ReceiptHandler, vf *handler.VerificationHandler, ev *handler.EventsHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := append([]echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("HOLDER", "AUTHORITY"),
	}, extra...)
	g := e.Group("/v1", mw...)

	g.GET("/my-receipts", rc.ListMine)
	g.POST("/verify", vf.Verify)
	// Websocket stream of item state changes; never cached.
	g.GET("/events", ev.Stream)
}
