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

// authedUserID reads the user id placed in context by the JWT middleware.
func authedUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}

func authedRole(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}

type ListingHandler struct {
	Listings *repository.ListingRepo
}

func NewListingHandler(l *repository.ListingRepo) *ListingHandler {
	return &ListingHandler{Listings: l}
}

type createListingReq struct {
	CropName      string  `json:"crop_name"`
	QualityGrade  string  `json:"quality_grade"`
	Quantity      float64 `json:"quantity"`
	ExpectedPrice float64 `json:"expected_price"`
	Draft         bool    `json:"draft"`
}

// Create opens a new crop listing owned by the caller. Farmers only; the
// route guard enforces the role, this handler just trusts the context.
func (h *ListingHandler) Create(c echo.Context) error {
	var req createListingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.CropName = strings.TrimSpace(req.CropName)
	if req.CropName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "crop name is required"})
	}
	grade, ok := model.ParseQualityGrade(req.QualityGrade)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown quality grade"})
	}
	if req.Quantity <= 0 || req.ExpectedPrice <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity and expected price must be positive"})
	}

	status := model.ListingActive
	if req.Draft {
		status = model.ListingDraft
	}
	listing := &model.CropListing{
		ID:            uuid.NewString(),
		FarmerUserID:  authedUserID(c),
		CropName:      req.CropName,
		QualityGrade:  grade,
		Quantity:      req.Quantity,
		ExpectedPrice: req.ExpectedPrice,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Listings.Create(ctx, listing); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create listing failed"})
	}

	queue_publisher.Audit(ctx, listing.FarmerUserID, "LISTING_CREATED", "CropListing", listing.ID)

	return c.JSON(http.StatusCreated, listing)
}

// ListActive returns every listing open for offers. Public, cached.
func (h *ListingHandler) ListActive(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listings, err := h.Listings.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

// ListMine returns the caller's own listings in every status.
func (h *ListingHandler) ListMine(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listings, err := h.Listings.ListByFarmer(ctx, authedUserID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}

func (h *ListingHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listing, err := h.Listings.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, listing)
}

type updateListingStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus moves a listing between states. Only the owning farmer may do
// this, and SOLD is reserved for the offer acceptance path.
func (h *ListingHandler) UpdateStatus(c echo.Context) error {
	var req updateListingStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status, ok := model.ParseListingStatus(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown listing status"})
	}
	if status == model.ListingSold {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "listings are sold by accepting an offer"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Listings.UpdateStatus(ctx, c.Param("id"), authedUserID(c), status)
	switch {
	case errors.Is(err, repository.ErrListingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your listing"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "listing updated", "status": status})
}
