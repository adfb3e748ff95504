package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agrilink/agrilink-api/internal/model"
)

// ErrListingNotFound is returned when a crop listing cannot be found.
var ErrListingNotFound = errors.New("listing not found")

// ListingRepo encapsulates all database queries on the crop_listings table.
type ListingRepo struct{ db *sql.DB }

func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

const listingCols = "id, farmer_user_id, crop_name, quality_grade, quantity, expected_price, status, created_at"

func scanListing(sc interface{ Scan(...any) error }) (*model.CropListing, error) {
	var l model.CropListing
	var grade, status string
	if err := sc.Scan(&l.ID, &l.FarmerUserID, &l.CropName, &grade, &l.Quantity,
		&l.ExpectedPrice, &status, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.QualityGrade = model.QualityGrade(grade)
	l.Status = model.ListingStatus(status)
	return &l, nil
}

// Create inserts a new listing.
func (r *ListingRepo) Create(ctx context.Context, l *model.CropListing) error {
	const q = `INSERT INTO crop_listings
	           (id, farmer_user_id, crop_name, quality_grade, quantity, expected_price, status)
	           VALUES (?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, l.ID, l.FarmerUserID, l.CropName,
		string(l.QualityGrade), l.Quantity, l.ExpectedPrice, string(l.Status))
	return err
}

// GetByID fetches a listing by primary key.
func (r *ListingRepo) GetByID(ctx context.Context, id string) (*model.CropListing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx,
		"SELECT "+listingCols+" FROM crop_listings WHERE id=? LIMIT 1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return l, nil
}

// ListByFarmer returns all listings owned by a farmer, newest first.
func (r *ListingRepo) ListByFarmer(ctx context.Context, farmerID string) ([]*model.CropListing, error) {
	return r.list(ctx,
		"SELECT "+listingCols+" FROM crop_listings WHERE farmer_user_id=? ORDER BY created_at DESC", farmerID)
}

// ListActive returns all ACTIVE listings for public browsing, newest first.
func (r *ListingRepo) ListActive(ctx context.Context) ([]*model.CropListing, error) {
	return r.list(ctx,
		"SELECT "+listingCols+" FROM crop_listings WHERE status=? ORDER BY created_at DESC",
		string(model.ListingActive))
}

func (r *ListingRepo) list(ctx context.Context, q string, args ...any) ([]*model.CropListing, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.CropListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateStatus moves a listing to a new status, enforcing ownership. It
// returns ErrListingNotFound when the row does not exist and ErrForbidden
// when it belongs to another farmer.
func (r *ListingRepo) UpdateStatus(ctx context.Context, id, farmerID string, status model.ListingStatus) error {
	var owner string
	err := r.db.QueryRowContext(ctx,
		"SELECT farmer_user_id FROM crop_listings WHERE id=?", id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrListingNotFound
		}
		return err
	}
	if owner != farmerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx,
		"UPDATE crop_listings SET status=? WHERE id=?", string(status), id)
	return err
}
