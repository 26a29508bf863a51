package orders

const (
	TopicOrderCreated      = "order.created"
	TopicOrderPaid         = "order.paid"
	TopicOrderDelivered    = "order.delivered"
	TopicOrderDeleted      = "order.deleted"
	TopicPaymentAuthorized = "order.payment.authorized"
)

// Partition key = order_id so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
