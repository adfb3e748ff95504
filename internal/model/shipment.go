package model

import "time"

// ShipmentStatus tracks a shipment from pickup to delivery.
type ShipmentStatus string

const (
	ShipmentCreated    ShipmentStatus = "CREATED"
	ShipmentDispatched ShipmentStatus = "DISPATCHED"
	ShipmentInTransit  ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered  ShipmentStatus = "DELIVERED"
	ShipmentCancelled  ShipmentStatus = "CANCELLED"
)

// ParseShipmentStatus validates a request-supplied status string.
func ParseShipmentStatus(s string) (ShipmentStatus, bool) {
	switch ShipmentStatus(s) {
	case ShipmentCreated, ShipmentDispatched, ShipmentInTransit, ShipmentDelivered, ShipmentCancelled:
		return ShipmentStatus(s), true
	}
	return "", false
}

// Shipment mirrors the `shipments` table. One order can have several
// shipments (partial loads); the tracking code is the public handle for
// status lookups.
type Shipment struct {
	ID                  string
	OrderID             string
	LogisticsUserID     string // logistics partner who operates the shipment
	VehicleRef          string // free-form vehicle identifier (plate or fleet tag)
	OriginLat           float64
	OriginLng           float64
	DestinationLat      float64
	DestinationLng      float64
	EstimatedCost       float64
	Status              ShipmentStatus
	TrackingCode        string
	DeliveryConfirmedAt *time.Time
	CreatedAt           time.Time
}
