package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports process liveness and dependency reachability.
type HealthHandler struct {
	DB  *sql.DB
	RDB *redis.Client
}

func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, RDB: rdb}
}

func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	dbStatus := "ok"
	if err := h.DB.PingContext(ctx); err != nil {
		dbStatus = "down"
		status = http.StatusServiceUnavailable
	}

	cacheStatus := "disabled"
	if h.RDB != nil {
		cacheStatus = "ok"
		if err := h.RDB.Ping(ctx).Err(); err != nil {
			// Cache is optional; a redis outage does not fail the check.
			cacheStatus = "down"
		}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	return c.JSON(status, echo.Map{
		"status": overall,
		"db":     dbStatus,
		"cache":  cacheStatus,
	})
}
