package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/agrilink-api/internal/model"
)

// ErrOfferNotFound is returned when an offer cannot be found.
var ErrOfferNotFound = errors.New("offer not found")

// OfferRepo encapsulates all database queries on the offers table, including
// the accept path that atomically creates an order.
type OfferRepo struct{ db *sql.DB }

func NewOfferRepo(db *sql.DB) *OfferRepo { return &OfferRepo{db: db} }

const offerCols = "id, crop_listing_id, buyer_user_id, offered_price, status, created_at"

// Create inserts a new offer.
func (r *OfferRepo) Create(ctx context.Context, o *model.Offer) error {
	const q = `INSERT INTO offers (id, crop_listing_id, buyer_user_id, offered_price, status)
	           VALUES (?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, o.ID, o.CropListingID, o.BuyerUserID,
		o.OfferedPrice, string(o.Status))
	return err
}

// GetByID fetches an offer by primary key.
func (r *OfferRepo) GetByID(ctx context.Context, id string) (*model.Offer, error) {
	var o model.Offer
	var status string
	err := r.db.QueryRowContext(ctx,
		"SELECT "+offerCols+" FROM offers WHERE id=? LIMIT 1", id).
		Scan(&o.ID, &o.CropListingID, &o.BuyerUserID, &o.OfferedPrice, &status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	o.Status = model.OfferStatus(status)
	return &o, nil
}

// ListByListing returns all offers made against a listing, newest first.
func (r *OfferRepo) ListByListing(ctx context.Context, listingID string) ([]*model.Offer, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+offerCols+" FROM offers WHERE crop_listing_id=? ORDER BY created_at DESC", listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Offer
	for rows.Next() {
		var o model.Offer
		var status string
		if err := rows.Scan(&o.ID, &o.CropListingID, &o.BuyerUserID,
			&o.OfferedPrice, &status, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = model.OfferStatus(status)
		out = append(out, &o)
	}
	return out, rows.Err()
}

// UpdateStatus moves an offer to a new status only while it is PENDING.
// Returns ErrConflict when the offer was already decided.
func (r *OfferRepo) UpdateStatus(ctx context.Context, id string, status model.OfferStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE offers SET status=? WHERE id=? AND status=?",
		string(status), id, string(model.OfferPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// Accept accepts a PENDING offer in one transaction: the offer flips to
// ACCEPTED, the listing to SOLD, every other pending offer on the listing to
// REJECTED, and an order row is created. The created order is returned.
func (r *OfferRepo) Accept(ctx context.Context, offer *model.Offer, listing *model.CropListing) (*model.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE offers SET status=? WHERE id=? AND status=?",
		string(model.OfferAccepted), offer.ID, string(model.OfferPending))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrConflict
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE crop_listings SET status=? WHERE id=?",
		string(model.ListingSold), listing.ID); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE offers SET status=? WHERE crop_listing_id=? AND status=?",
		string(model.OfferRejected), listing.ID, string(model.OfferPending)); err != nil {
		return nil, err
	}

	order := &model.Order{
		ID:            uuid.NewString(),
		CropListingID: listing.ID,
		BuyerUserID:   offer.BuyerUserID,
		SellerUserID:  listing.FarmerUserID,
		FinalPrice:    offer.OfferedPrice,
		Quantity:      listing.Quantity,
		Status:        model.OrderCreated,
		PaymentStatus: "PENDING",
		CreatedAt:     time.Now().UTC(),
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, crop_listing_id, buyer_user_id, seller_user_id, final_price, quantity, status, payment_status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		order.ID, order.CropListingID, order.BuyerUserID, order.SellerUserID,
		order.FinalPrice, order.Quantity, string(order.Status), order.PaymentStatus); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}
