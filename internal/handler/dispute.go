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

type DisputeHandler struct {
	Disputes *repository.DisputeRepo
	Orders   *repository.OrderRepo
}

func NewDisputeHandler(d *repository.DisputeRepo, o *repository.OrderRepo) *DisputeHandler {
	return &DisputeHandler{Disputes: d, Orders: o}
}

type createDisputeReq struct {
	OrderID     string `json:"order_id"`
	Description string `json:"description"`
}

// Create raises a dispute on one of the caller's orders. Each order can
// carry at most one dispute.
func (h *DisputeHandler) Create(c echo.Context) error {
	var req createDisputeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.OrderID == "" || req.Description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id and description are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, req.OrderID)
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

	dispute := &model.Dispute{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		RaisedByUserID: uid,
		Description:    req.Description,
		Status:         model.DisputeOpen,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Disputes.Create(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrDisputeExists) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "order already has a dispute"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create dispute failed"})
	}

	queue_publisher.Audit(ctx, uid, "DISPUTE_RAISED", "Dispute", dispute.ID)

	return c.JSON(http.StatusCreated, dispute)
}

// ListMine returns disputes the caller raised or that touch one of their
// orders, optionally filtered by status.
func (h *DisputeHandler) ListMine(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" {
		parsed, ok := model.ParseDisputeStatus(status)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown dispute status"})
		}
		status = string(parsed)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	disputes, err := h.Disputes.ListForUser(ctx, authedUserID(c), status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"disputes": disputes})
}

// GetByOrder returns the dispute raised on one of the caller's orders.
func (h *DisputeHandler) GetByOrder(c echo.Context) error {
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
	if order.BuyerUserID != uid && order.SellerUserID != uid && authedRole(c) != string(model.RoleAdmin) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your order"})
	}

	dispute, err := h.Disputes.GetByOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no dispute for this order"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, dispute)
}

// Get returns a dispute together with its evidence trail.
func (h *DisputeHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dispute, err := h.Disputes.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "dispute not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	evidence, err := h.Disputes.ListEvidence(ctx, dispute.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"dispute": dispute, "evidence": evidence})
}

type updateDisputeStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus moves a dispute through its lifecycle. Resolved and rejected
// disputes are final.
func (h *DisputeHandler) UpdateStatus(c echo.Context) error {
	var req updateDisputeStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status, ok := model.ParseDisputeStatus(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown dispute status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	uid := authedUserID(c)
	isAdmin := authedRole(c) == string(model.RoleAdmin)

	if !isAdmin {
		dispute, err := h.Disputes.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrDisputeNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "dispute not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
		}
		order, err := h.Orders.GetByID(ctx, dispute.OrderID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
		}
		if order.BuyerUserID != uid && order.SellerUserID != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this dispute"})
		}
	}

	err := h.Disputes.UpdateStatus(ctx, id, status)
	switch {
	case errors.Is(err, repository.ErrDisputeNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "dispute not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "dispute is already closed"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	action := "DISPUTE_STATUS_CHANGED"
	if isAdmin {
		action = "ADMIN_DISPUTE_ACTION"
	}
	queue_publisher.Audit(ctx, uid, action, "Dispute", id)

	return c.JSON(http.StatusOK, echo.Map{"message": "dispute updated", "status": status})
}

type addEvidenceReq struct {
	FileURL     string `json:"file_url"`
	Description string `json:"description"`
}

// AddEvidence attaches a file reference to a dispute. Open to the raiser
// and to either party of the disputed order.
func (h *DisputeHandler) AddEvidence(c echo.Context) error {
	var req addEvidenceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.FileURL = strings.TrimSpace(req.FileURL)
	if req.FileURL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file url is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dispute, err := h.Disputes.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "dispute not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	uid := authedUserID(c)
	if dispute.RaisedByUserID != uid {
		order, err := h.Orders.GetByID(ctx, dispute.OrderID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
		}
		if order.BuyerUserID != uid && order.SellerUserID != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this dispute"})
		}
	}

	evidence := &model.DisputeEvidence{
		ID:          uuid.NewString(),
		DisputeID:   dispute.ID,
		UserID:      uid,
		FileURL:     req.FileURL,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Disputes.AddEvidence(ctx, evidence); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "add evidence failed"})
	}
	return c.JSON(http.StatusCreated, evidence)
}
