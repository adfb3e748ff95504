package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/agrilink/agrilink-api/internal/model"
)

// ErrShipmentNotFound is returned when a shipment cannot be found.
var ErrShipmentNotFound = errors.New("shipment not found")

// ErrDuplicateTrackingCode is returned when a generated tracking code
// collides with an existing one.
var ErrDuplicateTrackingCode = errors.New("tracking code already exists")

// ShipmentRepo encapsulates database queries on the shipments table.
type ShipmentRepo struct{ db *sql.DB }

func NewShipmentRepo(db *sql.DB) *ShipmentRepo { return &ShipmentRepo{db: db} }

const shipmentCols = `id, order_id, logistics_user_id, vehicle_ref,
	origin_lat, origin_lng, destination_lat, destination_lng,
	estimated_cost, status, tracking_code, delivery_confirmed_at, created_at`

func scanShipment(sc interface{ Scan(...any) error }) (*model.Shipment, error) {
	var s model.Shipment
	var status string
	var confirmed sql.NullTime
	if err := sc.Scan(&s.ID, &s.OrderID, &s.LogisticsUserID, &s.VehicleRef,
		&s.OriginLat, &s.OriginLng, &s.DestinationLat, &s.DestinationLng,
		&s.EstimatedCost, &status, &s.TrackingCode, &confirmed, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Status = model.ShipmentStatus(status)
	if confirmed.Valid {
		t := confirmed.Time
		s.DeliveryConfirmedAt = &t
	}
	return &s, nil
}

// Create inserts a new shipment.
func (r *ShipmentRepo) Create(ctx context.Context, s *model.Shipment) error {
	const q = `INSERT INTO shipments
	           (id, order_id, logistics_user_id, vehicle_ref, origin_lat, origin_lng,
	            destination_lat, destination_lng, estimated_cost, status, tracking_code)
	           VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.OrderID, s.LogisticsUserID, s.VehicleRef,
		s.OriginLat, s.OriginLng, s.DestinationLat, s.DestinationLng,
		s.EstimatedCost, string(s.Status), s.TrackingCode)
	if err != nil && strings.Contains(err.Error(), "1062") {
		return ErrDuplicateTrackingCode
	}
	return err
}

// GetByID fetches a shipment by primary key.
func (r *ShipmentRepo) GetByID(ctx context.Context, id string) (*model.Shipment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+shipmentCols+" FROM shipments WHERE id=? LIMIT 1", id)
	s, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	return s, err
}

// GetByTrackingCode fetches a shipment by its public tracking code.
func (r *ShipmentRepo) GetByTrackingCode(ctx context.Context, code string) (*model.Shipment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+shipmentCols+" FROM shipments WHERE tracking_code=? LIMIT 1", code)
	s, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	return s, err
}

// ListByOrder returns all shipments attached to an order, newest first.
func (r *ShipmentRepo) ListByOrder(ctx context.Context, orderID string) ([]*model.Shipment, error) {
	return r.list(ctx,
		"SELECT "+shipmentCols+" FROM shipments WHERE order_id=? ORDER BY created_at DESC", orderID)
}

// ListByProvider returns the logistics partner's shipments, optionally
// filtered by status, newest first.
func (r *ShipmentRepo) ListByProvider(ctx context.Context, userID, status string) ([]*model.Shipment, error) {
	q := "SELECT " + shipmentCols + " FROM shipments WHERE logistics_user_id=?"
	args := []any{userID}
	if status != "" {
		q += " AND status=?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC LIMIT 200"
	return r.list(ctx, q, args...)
}

func (r *ShipmentRepo) list(ctx context.Context, q string, args ...any) ([]*model.Shipment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateStatus moves a shipment to a non-terminal transit status, enforcing
// provider ownership. Delivery goes through MarkDelivered instead so the
// order completion rides in the same transaction.
func (r *ShipmentRepo) UpdateStatus(ctx context.Context, id, providerID string, status model.ShipmentStatus) error {
	var owner string
	err := r.db.QueryRowContext(ctx,
		"SELECT logistics_user_id FROM shipments WHERE id=?", id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrShipmentNotFound
		}
		return err
	}
	if owner != providerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx,
		"UPDATE shipments SET status=? WHERE id=?", string(status), id)
	return err
}

// MarkDelivered flips the shipment to DELIVERED with a confirmation
// timestamp and completes the underlying order, atomically. Already
// delivered shipments return ErrConflict.
func (r *ShipmentRepo) MarkDelivered(ctx context.Context, id, providerID string) (*model.Shipment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+shipmentCols+" FROM shipments WHERE id=? FOR UPDATE", id)
	s, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrShipmentNotFound
		}
		return nil, err
	}
	if s.LogisticsUserID != providerID {
		err = ErrForbidden
		return nil, err
	}
	if s.Status == model.ShipmentDelivered {
		err = ErrConflict
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE shipments SET status=?, delivery_confirmed_at=NOW() WHERE id=?",
		string(model.ShipmentDelivered), id); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE orders SET status=? WHERE id=?",
		string(model.OrderCompleted), s.OrderID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	s.Status = model.ShipmentDelivered
	return s, nil
}
