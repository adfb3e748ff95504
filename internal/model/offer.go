package model

import "time"

// OfferStatus tracks a buyer's offer on a listing.
type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
	OfferWithdrawn OfferStatus = "WITHDRAWN"
)

// Offer mirrors the `offers` table. An offer references the listing it was
// made against and the buyer who made it. Accepting an offer creates an
// order and moves the listing out of negotiation.
type Offer struct {
	ID            string
	CropListingID string
	BuyerUserID   string
	OfferedPrice  float64
	Status        OfferStatus
	CreatedAt     time.Time
}
