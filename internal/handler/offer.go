package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/model"
	"github.com/agrilink/agrilink-api/internal/queue"
	"github.com/agrilink/agrilink-api/internal/repository"
	queue_publisher "github.com/agrilink/agrilink-api/internal/service"
)

type OfferHandler struct {
	Offers   *repository.OfferRepo
	Listings *repository.ListingRepo
}

func NewOfferHandler(o *repository.OfferRepo, l *repository.ListingRepo) *OfferHandler {
	return &OfferHandler{Offers: o, Listings: l}
}

type createOfferReq struct {
	CropListingID string  `json:"crop_listing_id"`
	OfferedPrice  float64 `json:"offered_price"`
}

// Create places an offer on an active listing on behalf of the caller.
func (h *OfferHandler) Create(c echo.Context) error {
	var req createOfferReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CropListingID == "" || req.OfferedPrice <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "listing id and a positive price are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listing, err := h.Listings.GetByID(ctx, req.CropListingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if listing.Status != model.ListingActive && listing.Status != model.ListingUnderNegotiation {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "listing is not open for offers"})
	}
	if listing.FarmerUserID == authedUserID(c) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot offer on your own listing"})
	}

	offer := &model.Offer{
		ID:            uuid.NewString(),
		CropListingID: listing.ID,
		BuyerUserID:   authedUserID(c),
		OfferedPrice:  req.OfferedPrice,
		Status:        model.OfferPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.Offers.Create(ctx, offer); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create offer failed"})
	}

	if listing.Status == model.ListingActive {
		// First offer moves the listing into negotiation. Failure here is
		// cosmetic, the offer already exists.
		if err := h.Listings.UpdateStatus(ctx, listing.ID, listing.FarmerUserID, model.ListingUnderNegotiation); err != nil {
			log.Printf("offer: move listing %s to negotiation failed: %v", listing.ID, err)
		}
	}

	queue_publisher.Audit(ctx, offer.BuyerUserID, "OFFER_PLACED", "Offer", offer.ID)

	return c.JSON(http.StatusCreated, offer)
}

// ListByListing returns all offers on one listing. Only the listing owner
// sees them.
func (h *OfferHandler) ListByListing(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listing, err := h.Listings.GetByID(ctx, c.Param("listingId"))
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if listing.FarmerUserID != authedUserID(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your listing"})
	}

	offers, err := h.Offers.ListByListing(ctx, listing.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"offers": offers})
}

// Accept closes the negotiation: the chosen offer is accepted, every other
// pending offer rejected, the listing marked sold and an order created, all
// in one transaction. The order placed event goes out after commit.
func (h *OfferHandler) Accept(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	offer, err := h.Offers.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "offer not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if offer.Status != model.OfferPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "offer is no longer pending"})
	}

	listing, err := h.Listings.GetByID(ctx, offer.CropListingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if listing.FarmerUserID != authedUserID(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your listing"})
	}

	order, err := h.Offers.Accept(ctx, offer, listing)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "offer is no longer pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "accept failed"})
	}

	if err := queue_publisher.Publish(ctx, queue.Envelope{
		Type: queue.EventOrderPlaced,
		Order: &queue.OrderPlacedEvent{
			OrderID:      order.ID,
			ListingID:    listing.ID,
			CropName:     listing.CropName,
			BuyerUserID:  order.BuyerUserID,
			SellerUserID: order.SellerUserID,
			FinalPrice:   order.FinalPrice,
			Quantity:     order.Quantity,
		},
	}); err != nil {
		// Order already committed; notifications are best effort.
		log.Printf("offer: publish order placed event failed: %v", err)
	}

	queue_publisher.Audit(ctx, listing.FarmerUserID, "OFFER_ACCEPTED", "Offer", offer.ID)

	return c.JSON(http.StatusOK, echo.Map{"message": "offer accepted", "order": order})
}

// Reject declines a pending offer. Listing owner only.
func (h *OfferHandler) Reject(c echo.Context) error {
	return h.close(c, model.OfferRejected)
}

// Withdraw retracts the caller's own pending offer.
func (h *OfferHandler) Withdraw(c echo.Context) error {
	return h.close(c, model.OfferWithdrawn)
}

func (h *OfferHandler) close(c echo.Context, status model.OfferStatus) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	offer, err := h.Offers.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "offer not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}

	if status == model.OfferWithdrawn {
		if offer.BuyerUserID != authedUserID(c) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your offer"})
		}
	} else {
		listing, err := h.Listings.GetByID(ctx, offer.CropListingID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
		}
		if listing.FarmerUserID != authedUserID(c) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your listing"})
		}
	}

	if err := h.Offers.UpdateStatus(ctx, offer.ID, status); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "offer is no longer pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "offer updated", "status": status})
}
