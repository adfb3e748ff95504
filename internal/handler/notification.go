package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/repository"
)

type NotificationHandler struct {
	Notifications *repository.NotificationRepo
}

func NewNotificationHandler(n *repository.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{Notifications: n}
}

// ListMine returns the caller's notifications, newest first.
func (h *NotificationHandler) ListMine(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Notifications.ListForUser(ctx, authedUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

// MarkRead flags one notification as read. Repeated calls are no-ops.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Notifications.MarkRead(ctx, c.Param("id"), authedUserID(c))
	switch {
	case errors.Is(err, repository.ErrNotificationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your notification"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "notification read"})
}
