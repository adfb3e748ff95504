package model

import "time"

// OrderStatus tracks a purchase order through its lifecycle.
type OrderStatus string

const (
	OrderCreated   OrderStatus = "CREATED"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderCompleted OrderStatus = "COMPLETED"
)

// ParseOrderStatus validates a request-supplied status string.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderCreated, OrderConfirmed, OrderCancelled, OrderCompleted:
		return OrderStatus(s), true
	}
	return "", false
}

// Order mirrors the `orders` table. Orders are created when a listing owner
// accepts an offer. SellerUserID denotes the farmer side of the trade so
// both parties can list their orders without joining through listings.
type Order struct {
	ID            string
	CropListingID string
	BuyerUserID   string
	SellerUserID  string
	FinalPrice    float64
	Quantity      float64
	Status        OrderStatus
	PaymentStatus string
	CreatedAt     time.Time
}
