package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated      = "OrderCreated"
	EventOrderPaid         = "OrderPaid"
	EventOrderDelivered    = "OrderDelivered"
	EventOrderDeleted      = "OrderDeleted"
	EventPaymentAuthorized = "PaymentAuthorized"
)

type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "sweetshop-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Items      []ItemQty `json:"items"`
	TotalCents int64     `json:"total_cents"`
}

type OrderPaidPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

type OrderDeliveredPayload struct {
	OrderID string `json:"order_id"`
}

type OrderDeletedPayload struct {
	OrderID       string `json:"order_id"`
	StockRestored bool   `json:"stock_restored"`
}

type PaymentAuthorizedPayload struct {
	OrderID      string `json:"order_id"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}
