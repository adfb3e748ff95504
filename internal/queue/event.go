// Package queue defines message payloads exchanged over the message broker.
package queue

// EventType discriminates the payload carried by an Envelope.
type EventType string

const (
	// EventOrderPlaced is published when accepting an offer creates an order.
	EventOrderPlaced EventType = "order.placed"
	// EventAudit is published for fire-and-forget audit trail records.
	EventAudit EventType = "audit.record"
)

// Envelope wraps every message on the events queue. Exactly one payload
// field is set, matching Type.
type Envelope struct {
	Type       EventType         `json:"type"`
	OccurredAt string            `json:"occurred_at"`
	Order      *OrderPlacedEvent `json:"order,omitempty"`
	Audit      *AuditEvent       `json:"audit,omitempty"`
}

// OrderPlacedEvent carries enough information for downstream consumers to
// notify both parties without querying the primary database.
type OrderPlacedEvent struct {
	OrderID      string  `json:"order_id"`
	ListingID    string  `json:"listing_id"`
	CropName     string  `json:"crop_name"`
	BuyerUserID  string  `json:"buyer_user_id"`
	SellerUserID string  `json:"seller_user_id"`
	FinalPrice   float64 `json:"final_price"`
	Quantity     float64 `json:"quantity"`
}

// AuditEvent records who did what to which entity. Audit rows are written by
// the consumer so a slow audit store never blocks a request.
type AuditEvent struct {
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}
