package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/bekzatkhan/supply-accountability/internal/ledger"
	"github.com/bekzatkhan/supply-accountability/internal/middleware"
	"github.com/bekzatkhan/supply-accountability/internal/repository"
)

// EquipmentHandler serves the equipment ledger endpoints. Reads go
// straight to the repository; holder changes go through the ledger
// service so the optimistic-versioning rules apply.
type EquipmentHandler struct {
	Equipment   *repository.EquipmentRepo
	Ledger      *ledger.Service
	Cache       *redis.Client
	CachePrefix string
}

func NewEquipmentHandler(repo *repository.EquipmentRepo, svc *ledger.Service, rdb *redis.Client, cachePrefix string) *EquipmentHandler {
	return &EquipmentHandler{Equipment: repo, Ledger: svc, Cache: rdb, CachePrefix: cachePrefix}
}

// dropCache invalidates cached reads after a committed write.
func (h *EquipmentHandler) dropCache(ctx context.Context) {
	middleware.InvalidateCache(ctx, h.Cache, h.CachePrefix)
}

type createEquipmentReq struct {
	Nomenclature string  `json:"nomenclature"`
	SerialNumber *string `json:"serial_number"`
	StockNumber  *string `json:"stock_number"`
	GroupID      *uint64 `json:"group_id"`
}

type createGroupReq struct {
	Name string `json:"name"`
}

type assignReq struct {
	HolderID        uint64 `json:"holder_id"`
	ExpectedVersion uint64 `json:"expected_version"`
}

type unassignReq struct {
	ExpectedVersion uint64 `json:"expected_version"`
}

type groupAssignReq struct {
	HolderID uint64 `json:"holder_id"`
}

// Create registers a new equipment record. Serial numbers, stock
// numbers and group membership are optional.
func (h *EquipmentHandler) Create(c echo.Context) error {
	var req createEquipmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Nomenclature = strings.TrimSpace(req.Nomenclature)
	if req.Nomenclature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nomenclature required"})
	}
	if req.SerialNumber != nil && strings.TrimSpace(*req.SerialNumber) == "" {
		req.SerialNumber = nil
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Equipment.Create(ctx, req.Nomenclature, req.SerialNumber, req.StockNumber, req.GroupID)
	if err != nil {
		return domainError(c, err)
	}
	h.dropCache(ctx)
	return c.JSON(http.StatusCreated, rec)
}

// List returns equipment records, optionally filtered by holder via
// the ?holder_id= query parameter.
func (h *EquipmentHandler) List(c echo.Context) error {
	var holder *uint64
	if q := c.QueryParam("holder_id"); q != "" {
		id, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid holder_id"})
		}
		holder = &id
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Equipment.List(ctx, holder)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"equipment": recs})
}

// Get returns a single equipment record with its current version.
func (h *EquipmentHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Equipment.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// CreateGroup registers a named equipment group.
func (h *EquipmentHandler) CreateGroup(c echo.Context) error {
	var req createGroupReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	g, err := h.Equipment.CreateGroup(ctx, strings.TrimSpace(req.Name))
	if err != nil {
		return domainError(c, err)
	}
	h.dropCache(ctx)
	return c.JSON(http.StatusCreated, g)
}

// GroupMembers lists the equipment records belonging to a group.
func (h *EquipmentHandler) GroupMembers(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Equipment.GroupMembers(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if len(recs) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "group empty or not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"group_id": id, "members": recs})
}

// Assign sets the holder of an item. The caller must send the version
// it last read; a stale version gets a 409 and the client reloads.
func (h *EquipmentHandler) Assign(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req assignReq
	if err := c.Bind(&req); err != nil || req.HolderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	version, err := h.Ledger.Assign(ctx, id, req.HolderID, req.ExpectedVersion)
	if err != nil {
		return domainError(c, err)
	}
	h.dropCache(ctx)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "holder_id": req.HolderID, "version": version})
}

// Unassign clears the holder of an item under the same versioning rule.
func (h *EquipmentHandler) Unassign(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req unassignReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	version, err := h.Ledger.Unassign(ctx, id, req.ExpectedVersion)
	if err != nil {
		return domainError(c, err)
	}
	h.dropCache(ctx)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "holder_id": nil, "version": version})
}

// AssignGroup assigns every member of a group to one holder. Members
// are attempted independently; the response reports partial failures.
func (h *EquipmentHandler) AssignGroup(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req groupAssignReq
	if err := c.Bind(&req); err != nil || req.HolderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Ledger.AssignGroup(ctx, id, req.HolderID)
	if err != nil {
		return domainError(c, err)
	}
	h.dropCache(ctx)
	status := http.StatusOK
	if res.FailCount > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, res)
}

// UnassignGroup clears the holder of every member of a group.
func (h *EquipmentHandler) UnassignGroup(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Ledger.UnassignGroup(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	h.dropCache(ctx)
	status := http.StatusOK
	if res.FailCount > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, res)
}
