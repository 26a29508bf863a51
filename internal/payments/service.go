package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/sweetshop/backend/internal/kafka"
	"github.com/sweetshop/backend/internal/orders"
	"github.com/sweetshop/backend/internal/redisx"
)

// Service consumes payment-authorization events and marks the matching order
// paid. Runs as the consumer-group handler of the payments worker.
type Service struct {
	Orders      *orders.Lifecycle
	Redis       *redis.Client
	Producer    *kafkax.Producer // publishes order.paid
	ServiceName string
	Log         *zap.Logger
}

func (s *Service) HandlePaymentAuthorized(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventPaymentAuthorized {
		return nil // ignore
	}

	// dedup via Redis keyed by event_id: redelivery must not flip paidAt
	dkey := fmt.Sprintf(redisx.KeyDedup, "payments", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.PaymentAuthorizedPayload](env.Payload)
	if err != nil {
		return err
	}

	order, err := s.Orders.MarkPaid(ctx, p.OrderID, orders.PaymentResult{
		ID:           p.PaymentID,
		Status:       p.Status,
		UpdateTime:   p.UpdateTime,
		EmailAddress: p.EmailAddress,
	})
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			// nothing to retry; the order was deleted or never existed
			s.Log.Warn("payment for unknown order", zap.String("order_id", p.OrderID))
			_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
			return nil
		}
		return err
	}

	// mark the event processed only once the order is paid, so a transient
	// failure above stays eligible for redelivery
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	// refresh the status cache so reads see the paid flag immediately
	skey := fmt.Sprintf(redisx.KeyOrderStatus, order.ID)
	status, _ := json.Marshal(map[string]bool{"is_paid": order.IsPaid, "is_delivered": order.IsDelivered})
	_ = s.Redis.Set(ctx, skey, status, redisx.TTLStatusCache).Err()

	return s.publishPaid(order.ID, p.PaymentID)
}

func (s *Service) publishPaid(orderID, paymentID string) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(orders.OrderPaidPayload{OrderID: orderID, PaymentID: paymentID}),
	}
	s.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
