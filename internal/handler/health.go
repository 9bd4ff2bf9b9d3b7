package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is a liveness probe for load balancers. It returns a plain
// "ok" without touching any backing store.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// ConnectivityHandler reports whether the service can currently reach
// its backing stores. Clients poll it to decide whether to warn the
// operator that writes may fail.
type ConnectivityHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

func NewConnectivityHandler(db *sql.DB, rdb *redis.Client) *ConnectivityHandler {
	return &ConnectivityHandler{DB: db, Redis: rdb}
}

// Connectivity pings the database and cache with a short deadline.
// The service has no offline write queue, so "online" means the ledger
// is writable right now.
func (h *ConnectivityHandler) Connectivity(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbOK := h.DB.PingContext(ctx) == nil
	cacheOK := true
	if h.Redis != nil {
		cacheOK = h.Redis.Ping(ctx).Err() == nil
	}

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, echo.Map{
		"online":     dbOK,
		"database":   dbOK,
		"cache":      cacheOK,
		"checked_at": time.Now().UTC(),
	})
}
