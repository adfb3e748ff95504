package model

import "time"

// DisputeStatus tracks a dispute from being raised to its resolution.
type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "OPEN"
	DisputeUnderReview DisputeStatus = "UNDER_REVIEW"
	DisputeResolved    DisputeStatus = "RESOLVED"
	DisputeRejected    DisputeStatus = "REJECTED"
)

// ParseDisputeStatus validates a request-supplied status string.
func ParseDisputeStatus(s string) (DisputeStatus, bool) {
	switch DisputeStatus(s) {
	case DisputeOpen, DisputeUnderReview, DisputeResolved, DisputeRejected:
		return DisputeStatus(s), true
	}
	return "", false
}

// Terminal reports whether the dispute has reached a state no further
// status update may leave.
func (s DisputeStatus) Terminal() bool {
	return s == DisputeResolved || s == DisputeRejected
}

// Dispute mirrors the `disputes` table. At most one dispute exists per
// order; either party to the order may raise it.
type Dispute struct {
	ID             string
	OrderID        string
	RaisedByUserID string
	Description    string
	Status         DisputeStatus
	CreatedAt      time.Time
}

// DisputeEvidence mirrors the `dispute_evidence` table: file attachments
// submitted by the parties while a dispute is open.
type DisputeEvidence struct {
	ID          string
	DisputeID   string
	UserID      string
	FileURL     string
	Description string
	CreatedAt   time.Time
}
