package orders

import "time"

// LineItem is one (sweet, quantity) entry within an order. Name, image and
// price are snapshots captured at order-creation time; they are never
// recomputed from the live catalog, so historical orders stay accurate even
// if the sweet is later repriced or deleted.
type LineItem struct {
	ID         int64
	OrderID    string
	SweetID    string
	Name       string
	Image      string
	Qty        int
	PriceCents int64
}

type ShippingAddress struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

type PaymentResult struct {
	ID           string
	Status       string
	UpdateTime   string
	EmailAddress string
}

// Order is immutable once created, except for the paid/delivered flags (each
// set together with its timestamp) and deletion.
type Order struct {
	ID              string
	UserID          string
	Items           []LineItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
	PaymentResult   *PaymentResult

	ItemsPriceCents    int64
	TaxPriceCents      int64
	ShippingPriceCents int64
	TotalPriceCents    int64

	IsPaid      bool
	PaidAt      *time.Time
	IsDelivered bool
	DeliveredAt *time.Time

	// ReservationID links the order to the stock decrements applied when it
	// was placed, so deletion of an unpaid order can restore them exactly.
	ReservationID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemQty is a reservation request line: which sweet, how many.
type ItemQty struct {
	SweetID string `json:"sweet_id"`
	Qty     int    `json:"qty"`
}

const (
	ReservationReserved = "RESERVED"
	ReservationRestored = "RESTORED"
)

// Reservation records exactly which stock decrements one Reserve call
// applied. It drives exact-inverse restoration and may be restored at most
// once.
type Reservation struct {
	ID        string
	Items     []ItemQty
	Status    string // RESERVED | RESTORED
	CreatedAt time.Time
}
