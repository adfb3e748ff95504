package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agrilink/agrilink-api/internal/model"
)

// ErrOrderNotFound is returned when an order cannot be found.
var ErrOrderNotFound = errors.New("order not found")

// OrderRepo encapsulates all database queries on the orders table.
type OrderRepo struct{ db *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderCols = "id, crop_listing_id, buyer_user_id, seller_user_id, final_price, quantity, status, payment_status, created_at"

func scanOrder(sc interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var status string
	if err := sc.Scan(&o.ID, &o.CropListingID, &o.BuyerUserID, &o.SellerUserID,
		&o.FinalPrice, &o.Quantity, &status, &o.PaymentStatus, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// GetByID fetches an order by primary key.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderCols+" FROM orders WHERE id=? LIMIT 1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// ListForUser returns orders where the user is either buyer or seller,
// newest first.
func (r *OrderRepo) ListForUser(ctx context.Context, userID string) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderCols+" FROM orders WHERE buyer_user_id=? OR seller_user_id=? ORDER BY created_at DESC",
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus moves an order to a new status. Only a party to the order may
// change it; ErrForbidden is returned otherwise.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id, userID string, status model.OrderStatus) error {
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if o.BuyerUserID != userID && o.SellerUserID != userID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx,
		"UPDATE orders SET status=? WHERE id=?", string(status), id)
	return err
}
