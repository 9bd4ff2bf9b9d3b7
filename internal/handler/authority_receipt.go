package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/bekzatkhan/supply-accountability/internal/custody"
	"github.com/bekzatkhan/supply-accountability/internal/middleware"
)

// ReceiptHandler serves the custody receipt endpoints.
type ReceiptHandler struct {
	Custody     *custody.Service
	Cache       *redis.Client
	CachePrefix string
}

func NewReceiptHandler(svc *custody.Service, rdb *redis.Client, cachePrefix string) *ReceiptHandler {
	return &ReceiptHandler{Custody: svc, Cache: rdb, CachePrefix: cachePrefix}
}

type issueReq struct {
	ReceiptNumber string   `json:"receipt_number"`
	HolderID      uint64   `json:"holder_id"`
	ItemIDs       []uint64 `json:"item_ids"`
	DocumentRef   string   `json:"document_ref"`
}

type returnReq struct {
	ItemIDs []uint64 `json:"item_ids"`
}

// Issue creates an ISSUED custody receipt for a holder. Every item on
// the receipt must exist and must not already sit on another issued
// receipt. Blank receipt numbers and document refs are generated.
func (h *ReceiptHandler) Issue(c echo.Context) error {
	var req issueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.HolderID == 0 || len(req.ItemIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder_id and item_ids required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	rec, err := h.Custody.Issue(ctx, strings.TrimSpace(req.ReceiptNumber), req.HolderID, req.ItemIDs, strings.TrimSpace(req.DocumentRef))
	if err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusCreated, rec)
}

// Generate drafts a receipt without transferring custody. The draft
// carries the generated hand-receipt document; items stay free until
// the draft is finalized.
func (h *ReceiptHandler) Generate(c echo.Context) error {
	var req issueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.HolderID == 0 || len(req.ItemIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder_id and item_ids required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	rec, err := h.Custody.Generate(ctx, strings.TrimSpace(req.ReceiptNumber), req.HolderID, req.ItemIDs, strings.TrimSpace(req.DocumentRef))
	if err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusCreated, rec)
}

// Finalize flips a GENERATED draft to ISSUED. Fails with 409 when an
// item on the draft was issued elsewhere in the meantime.
func (h *ReceiptHandler) Finalize(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	rec, err := h.Custody.Finalize(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusOK, rec)
}

// Return marks items on a receipt as returned. Returning an already
// returned item is a no-op; when the last outstanding item comes back
// the receipt flips to RETURNED.
func (h *ReceiptHandler) Return(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req returnReq
	if err := c.Bind(&req); err != nil || len(req.ItemIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "item_ids required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Custody.ReturnItems(ctx, id, req.ItemIDs)
	if err != nil {
		return domainError(c, err)
	}
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusOK, res)
}

// Get returns a receipt with its item lines.
func (h *ReceiptHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, items, err := h.Custody.Get(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"receipt": rec, "items": items})
}

// ListMine returns the authenticated holder's receipts.
func (h *ReceiptHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Custody.ListByHolder(ctx, uid)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"receipts": recs})
}
