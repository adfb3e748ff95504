package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/model"
	"github.com/agrilink/agrilink-api/internal/repository"
	queue_publisher "github.com/agrilink/agrilink-api/internal/service"
)

type OrderHandler struct {
	Orders *repository.OrderRepo
}

func NewOrderHandler(o *repository.OrderRepo) *OrderHandler {
	return &OrderHandler{Orders: o}
}

// ListMine returns orders where the caller is buyer or seller.
func (h *OrderHandler) ListMine(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	orders, err := h.Orders.ListForUser(ctx, authedUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	uid := authedUserID(c)
	if order.BuyerUserID != uid && order.SellerUserID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your order"})
	}
	return c.JSON(http.StatusOK, order)
}

type updateOrderStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus advances an order. Either party may move it; the repository
// checks membership.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	var req updateOrderStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status, ok := model.ParseOrderStatus(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown order status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Orders.UpdateStatus(ctx, c.Param("id"), authedUserID(c), status)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your order"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	queue_publisher.Audit(ctx, authedUserID(c), "ORDER_STATUS_"+string(status), "Order", c.Param("id"))

	return c.JSON(http.StatusOK, echo.Map{"message": "order updated", "status": status})
}
