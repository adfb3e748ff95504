package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/model"
	"github.com/agrilink/agrilink-api/internal/repository"
	queue_publisher "github.com/agrilink/agrilink-api/internal/service"
)

type ShipmentHandler struct {
	Shipments *repository.ShipmentRepo
	Orders    *repository.OrderRepo
}

func NewShipmentHandler(s *repository.ShipmentRepo, o *repository.OrderRepo) *ShipmentHandler {
	return &ShipmentHandler{Shipments: s, Orders: o}
}

type createShipmentReq struct {
	OrderID        string  `json:"order_id"`
	VehicleRef     string  `json:"vehicle_ref"`
	OriginLat      float64 `json:"origin_lat"`
	OriginLng      float64 `json:"origin_lng"`
	DestinationLat float64 `json:"destination_lat"`
	DestinationLng float64 `json:"destination_lng"`
	EstimatedCost  float64 `json:"estimated_cost"`
}

// newTrackingCode builds the public shipment handle: TRK plus the first
// eight characters of a fresh UUID, uppercased.
func newTrackingCode() string {
	return "TRK" + strings.ToUpper(uuid.NewString()[:8])
}

func validCoord(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Create opens a shipment against an existing order. Logistics partners
// only; the route guard enforces the role.
func (h *ShipmentHandler) Create(c echo.Context) error {
	var req createShipmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.OrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
	}
	if !validCoord(req.OriginLat, req.OriginLng) || !validCoord(req.DestinationLat, req.DestinationLng) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "coordinates out of range"})
	}
	if req.EstimatedCost <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "estimated cost must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Orders.GetByID(ctx, req.OrderID); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	shipment := &model.Shipment{
		ID:              uuid.NewString(),
		OrderID:         req.OrderID,
		LogisticsUserID: authedUserID(c),
		VehicleRef:      strings.TrimSpace(req.VehicleRef),
		OriginLat:       req.OriginLat,
		OriginLng:       req.OriginLng,
		DestinationLat:  req.DestinationLat,
		DestinationLng:  req.DestinationLng,
		EstimatedCost:   req.EstimatedCost,
		Status:          model.ShipmentCreated,
		CreatedAt:       time.Now().UTC(),
	}

	// The 8-char code space makes collisions unlikely but not impossible.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		shipment.TrackingCode = newTrackingCode()
		err = h.Shipments.Create(ctx, shipment)
		if !errors.Is(err, repository.ErrDuplicateTrackingCode) {
			break
		}
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create shipment failed"})
	}

	queue_publisher.Audit(ctx, shipment.LogisticsUserID, "SHIPMENT_CREATED", "Shipment", shipment.ID)

	return c.JSON(http.StatusCreated, shipment)
}

// ListMine returns the calling provider's shipments, optionally filtered by
// status.
func (h *ShipmentHandler) ListMine(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" {
		parsed, ok := model.ParseShipmentStatus(status)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown shipment status"})
		}
		status = string(parsed)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	shipments, err := h.Shipments.ListByProvider(ctx, authedUserID(c), status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"shipments": shipments})
}

// ListByOrder returns the shipments attached to one of the caller's orders.
func (h *ShipmentHandler) ListByOrder(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, c.Param("orderId"))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	uid := authedUserID(c)
	if order.BuyerUserID != uid && order.SellerUserID != uid && authedRole(c) != string(model.RoleLogisticsPartner) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your order"})
	}

	shipments, err := h.Shipments.ListByOrder(ctx, order.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"shipments": shipments})
}

func (h *ShipmentHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	shipment, err := h.Shipments.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrShipmentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "shipment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, shipment)
}

// Track resolves a shipment by its public tracking code.
func (h *ShipmentHandler) Track(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	shipment, err := h.Shipments.GetByTrackingCode(ctx, c.Param("trackingCode"))
	if err != nil {
		if errors.Is(err, repository.ErrShipmentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no shipment with this tracking code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, shipment)
}

type updateShipmentStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus advances a shipment. Moving to DELIVERED also stamps the
// confirmation time and completes the order.
func (h *ShipmentHandler) UpdateStatus(c echo.Context) error {
	var req updateShipmentStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status, ok := model.ParseShipmentStatus(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown shipment status"})
	}
	if status == model.ShipmentDelivered {
		return h.deliver(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Shipments.UpdateStatus(ctx, c.Param("id"), authedUserID(c), status)
	switch {
	case errors.Is(err, repository.ErrShipmentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "shipment not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your shipment"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "shipment updated", "status": status})
}

// ConfirmDelivery marks the shipment delivered and the order completed.
func (h *ShipmentHandler) ConfirmDelivery(c echo.Context) error {
	return h.deliver(c)
}

func (h *ShipmentHandler) deliver(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	shipment, err := h.Shipments.MarkDelivered(ctx, c.Param("id"), authedUserID(c))
	switch {
	case errors.Is(err, repository.ErrShipmentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "shipment not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your shipment"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "shipment already delivered"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	queue_publisher.Audit(ctx, shipment.LogisticsUserID, "SHIPMENT_DELIVERED", "Shipment", shipment.ID)

	return c.JSON(http.StatusOK, echo.Map{"message": "delivery confirmed", "shipment": shipment})
}
