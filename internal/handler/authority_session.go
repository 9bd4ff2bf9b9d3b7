package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/bekzatkhan/supply-accountability/internal/accountability"
	"github.com/bekzatkhan/supply-accountability/internal/middleware"
	"github.com/bekzatkhan/supply-accountability/internal/model"
)

// SessionHandler serves the accountability session endpoints. Only the
// authority that opened a session may drive it; the engine enforces
// that on every call.
type SessionHandler struct {
	Engine      *accountability.Engine
	Cache       *redis.Client
	CachePrefix string
}

func NewSessionHandler(engine *accountability.Engine, rdb *redis.Client, cachePrefix string) *SessionHandler {
	return &SessionHandler{Engine: engine, Cache: rdb, CachePrefix: cachePrefix}
}

type startSessionReq struct {
	ScopeID string   `json:"scope_id"`
	ItemIDs []uint64 `json:"item_ids"`
}

// Start opens a session for a scope, snapshotting the named items.
// One active session per scope at a time.
func (h *SessionHandler) Start(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req startSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.ScopeID = strings.TrimSpace(req.ScopeID)
	if req.ScopeID == "" || len(req.ItemIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scope_id and item_ids required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	s, err := h.Engine.Start(ctx, req.ScopeID, uid, req.ItemIDs)
	if err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusCreated, s)
}

// Get returns a session with its item snapshots.
func (h *SessionHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, items, err := h.Engine.Get(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": s, "items": items})
}

// itemTransition factors the shared shape of the per-item session
// calls: parse ids, run the transition, invalidate, return the item.
func (h *SessionHandler) itemTransition(c echo.Context, fn func(ctx context.Context, actorID, sessionID, itemID uint64) (*model.AccountabilityItem, error)) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	itemID, err := pathID(c, "item_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	item, err := fn(ctx, uid, sessionID, itemID)
	if err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusOK, item)
}

// MarkAccounted records a direct sighting of an item by the authority.
func (h *SessionHandler) MarkAccounted(c echo.Context) error {
	return h.itemTransition(c, h.Engine.MarkAccounted)
}

// Confirm accepts a holder's pending self-service verification.
func (h *SessionHandler) Confirm(c echo.Context) error {
	return h.itemTransition(c, h.Engine.ConfirmVerification)
}

// Reject sends a pending verification back to NOT_ACCOUNTED_FOR.
func (h *SessionHandler) Reject(c echo.Context) error {
	return h.itemTransition(c, h.Engine.RejectVerification)
}

// Complete closes the session and returns the aggregated summary.
// Blocked while any verification is still pending.
func (h *SessionHandler) Complete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	summary, err := h.Engine.Complete(ctx, uid, id)
	if err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusOK, summary)
}

// Cancel abandons an active session without a summary.
func (h *SessionHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.Cancel(ctx, uid, id); err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.NoContent(http.StatusNoContent)
}
