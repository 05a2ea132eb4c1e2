package domain

import "time"

// Reservation is a hold against physical stock for one order line.
// Reservations are keyed by (ProductID, OrderID); re-reserving under the
// same order ID replaces the prior quantity rather than adding to it.
type Reservation struct {
	ProductID string
	OrderID   string
	Quantity  int
	CreatedAt time.Time
}

// ReservationItem is one product line of an order-level reserve request.
type ReservationItem struct {
	ProductID string
	Quantity  int
}

func (r Reservation) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
