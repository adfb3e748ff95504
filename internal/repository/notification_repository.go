package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agrilink/agrilink-api/internal/model"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepo encapsulates queries on the notifications table. Rows are
// inserted by the queue consumer and read by the API.
type NotificationRepo struct{ db *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts a notification row.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	const q = `INSERT INTO notifications
	           (id, user_id, notification_type, message, reference_type, reference_id)
	           VALUES (?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, n.ID, n.UserID, string(n.Type), n.Message,
		n.ReferenceType, n.ReferenceID)
	return err
}

// ListForUser returns a user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, notification_type, message, reference_type, reference_id, sent_at, read_at
		 FROM notifications WHERE user_id=? ORDER BY sent_at DESC LIMIT 200`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Notification
	for rows.Next() {
		var n model.Notification
		var kind string
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Message,
			&n.ReferenceType, &n.ReferenceID, &n.SentAt, &readAt); err != nil {
			return nil, err
		}
		n.Type = model.NotificationType(kind)
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkRead stamps read_at on a notification owned by the user. Already-read
// rows keep their original timestamp.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET read_at=NOW() WHERE id=? AND user_id=? AND read_at IS NULL",
		id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either absent, someone else's, or already read; distinguish only
		// ownership/missing for the handler.
		var owner string
		err := r.db.QueryRowContext(ctx,
			"SELECT user_id FROM notifications WHERE id=?", id).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotificationNotFound
		}
		if err != nil {
			return err
		}
		if owner != userID {
			return ErrForbidden
		}
	}
	return nil
}

// InsertAudit records an audit trail row.
func (r *NotificationRepo) InsertAudit(ctx context.Context, a *model.AuditLog) error {
	const q = `INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id)
	           VALUES (?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.UserID, a.Action, a.EntityType, a.EntityID)
	return err
}
