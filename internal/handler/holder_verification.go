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
)

// VerificationHandler serves the holder's self-service verification
// endpoint. The holder types the serial of an item in their custody;
// the engine matches it against the active session for that item and
// parks it as VERIFICATION_PENDING until the authority confirms.
type VerificationHandler struct {
	Engine      *accountability.Engine
	Cache       *redis.Client
	CachePrefix string
}

func NewVerificationHandler(engine *accountability.Engine, rdb *redis.Client, cachePrefix string) *VerificationHandler {
	return &VerificationHandler{Engine: engine, Cache: rdb, CachePrefix: cachePrefix}
}

type verifyReq struct {
	SerialNumber string `json:"serial_number"`
}

// Verify submits a serial number against the active session.
func (h *VerificationHandler) Verify(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SerialNumber) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "serial_number required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	item, err := h.Engine.VerifyBySerial(ctx, uid, strings.TrimSpace(req.SerialNumber))
	if err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusOK, item)
}
