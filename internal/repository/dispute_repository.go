package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/agrilink/agrilink-api/internal/model"
)

// ErrDisputeNotFound is returned when a dispute cannot be found.
var ErrDisputeNotFound = errors.New("dispute not found")

// ErrDisputeExists is returned when an order already has a dispute.
var ErrDisputeExists = errors.New("dispute already exists for this order")

// DisputeRepo encapsulates database queries on the disputes and
// dispute_evidence tables.
type DisputeRepo struct{ db *sql.DB }

func NewDisputeRepo(db *sql.DB) *DisputeRepo { return &DisputeRepo{db: db} }

const disputeCols = "id, order_id, raised_by_user_id, description, status, created_at"

func scanDispute(sc interface{ Scan(...any) error }) (*model.Dispute, error) {
	var d model.Dispute
	var status string
	if err := sc.Scan(&d.ID, &d.OrderID, &d.RaisedByUserID,
		&d.Description, &status, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Status = model.DisputeStatus(status)
	return &d, nil
}

// Create inserts a new dispute. The one-dispute-per-order rule is enforced by
// the unique key on order_id.
func (r *DisputeRepo) Create(ctx context.Context, d *model.Dispute) error {
	const q = `INSERT INTO disputes (id, order_id, raised_by_user_id, description, status)
	           VALUES (?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, d.ID, d.OrderID, d.RaisedByUserID,
		d.Description, string(d.Status))
	if err != nil && strings.Contains(err.Error(), "1062") {
		return ErrDisputeExists
	}
	return err
}

// GetByID fetches a dispute by primary key.
func (r *DisputeRepo) GetByID(ctx context.Context, id string) (*model.Dispute, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+disputeCols+" FROM disputes WHERE id=? LIMIT 1", id)
	d, err := scanDispute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	return d, err
}

// GetByOrder fetches the dispute raised against an order, if any.
func (r *DisputeRepo) GetByOrder(ctx context.Context, orderID string) (*model.Dispute, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+disputeCols+" FROM disputes WHERE order_id=? LIMIT 1", orderID)
	d, err := scanDispute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	return d, err
}

// ListForUser returns disputes visible to a user: those they raised and
// those on orders where they are a party. Optional status filter.
func (r *DisputeRepo) ListForUser(ctx context.Context, userID, status string) ([]*model.Dispute, error) {
	q := `SELECT d.id, d.order_id, d.raised_by_user_id, d.description, d.status, d.created_at
	      FROM disputes d
	      JOIN orders o ON o.id = d.order_id
	      WHERE (d.raised_by_user_id=? OR o.buyer_user_id=? OR o.seller_user_id=?)`
	args := []any{userID, userID, userID}
	if status != "" {
		q += " AND d.status=?"
		args = append(args, status)
	}
	q += " ORDER BY d.created_at DESC LIMIT 200"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateStatus moves a dispute to a new status unless it already reached a
// terminal one, in which case ErrConflict is returned.
func (r *DisputeRepo) UpdateStatus(ctx context.Context, id string, status model.DisputeStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE disputes SET status=? WHERE id=? AND status NOT IN (?,?)",
		string(status), id, string(model.DisputeResolved), string(model.DisputeRejected))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current string
		err := r.db.QueryRowContext(ctx,
			"SELECT status FROM disputes WHERE id=?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDisputeNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// AddEvidence attaches an evidence record to a dispute.
func (r *DisputeRepo) AddEvidence(ctx context.Context, e *model.DisputeEvidence) error {
	const q = `INSERT INTO dispute_evidence (id, dispute_id, user_id, file_url, description)
	           VALUES (?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.DisputeID, e.UserID, e.FileURL, e.Description)
	return err
}

// ListEvidence returns a dispute's evidence in submission order.
func (r *DisputeRepo) ListEvidence(ctx context.Context, disputeID string) ([]*model.DisputeEvidence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, dispute_id, user_id, file_url, description, created_at
		 FROM dispute_evidence WHERE dispute_id=? ORDER BY created_at ASC`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.DisputeEvidence
	for rows.Next() {
		var e model.DisputeEvidence
		if err := rows.Scan(&e.ID, &e.DisputeID, &e.UserID,
			&e.FileURL, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
