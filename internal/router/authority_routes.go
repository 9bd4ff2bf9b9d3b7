package router

import (
	"github.com/labstack/echo/v4"

	"github.com/bekzatkhan/supply-accountability/internal/handler"
	"github.com/bekzatkhan/supply-accountability/internal/middleware"
)

// RegisterAuthority registers AUTHORITY-scoped endpoints under /v1.
// All routes require a valid JWT and the AUTHORITY role. The optional
// extra middlewares (response cache, rate limiting) are applied to the
// whole group.
func RegisterAuthority(e *echo.Echo, eq *handler.EquipmentHandler, rc *handler.ReceiptHandler, se *handler.SessionHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := append([]echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("AUTHORITY"),
	}, extra...)
	g := e.Group("/v1", mw...)

	// ---- Equipment ledger ----
	g.POST("/equipment", eq.Create)
	g.GET("/equipment", eq.List)
	g.GET("/equipment/:id", eq.Get)
	g.POST("/equipment/:id/assign", eq.Assign)
	g.POST("/equipment/:id/unassign", eq.Unassign)

	// ---- Equipment groups ----
	g.POST("/groups", eq.CreateGroup)
	g.GET("/groups/:id/members", eq.GroupMembers)
	g.POST("/groups/:id/assign", eq.AssignGroup)
	g.POST("/groups/:id/unassign", eq.UnassignGroup)

	// ---- Custody receipts ----
	g.POST("/receipts", rc.Issue)
	g.POST("/receipts/drafts", rc.Generate)
	g.GET("/receipts/:id", rc.Get)
	g.POST("/receipts/:id/finalize", rc.Finalize)
	g.POST("/receipts/:id/return", rc.Return)

	// ---- Accountability sessions ----
	g.POST("/sessions", se.Start)
	g.GET("/sessions/:id", se.Get)
	g.POST("/sessions/:id/items/:item_id/account", se.MarkAccounted)
	g.POST("/sessions/:id/items/:item_id/confirm", se.Confirm)
	g.POST("/sessions/:id/items/:item_id/reject", se.Reject)
	g.POST("/sessions/:id/complete", se.Complete)
	g.POST("/sessions/:id/cancel", se.Cancel)
}
