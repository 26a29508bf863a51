package redisx

import "time"

const (
	// Cache of order status: order_status:{order_id} -> {"is_paid": ..., "is_delivered": ...}
	KeyOrderStatus = "order_status:%s"

	// Dedup for event consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
