package model

import "time"

// NotificationType tags the kind of update a notification carries.
type NotificationType string

const (
	NotifyOrderUpdate   NotificationType = "ORDER_UPDATE"
	NotifyPaymentUpdate NotificationType = "PAYMENT_UPDATE"
	NotifySystemAlert   NotificationType = "SYSTEM_ALERT"
)

// Notification mirrors the `notifications` table. Rows are written by the
// background queue consumer, not by request handlers.
type Notification struct {
	ID            string
	UserID        string
	Type          NotificationType
	Message       string
	ReferenceType string
	ReferenceID   string
	SentAt        time.Time
	ReadAt        *time.Time
}

// AuditLog mirrors the `audit_logs` table. Audit rows are written on a
// fire-and-forget path; failures to record them never fail the operation
// being audited.
type AuditLog struct {
	ID         string
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	CreatedAt  time.Time
}
