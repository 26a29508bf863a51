package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweetshop/backend/internal/catalog"
	kafkax "github.com/sweetshop/backend/internal/kafka"
	"github.com/sweetshop/backend/internal/orders"
)

// memWorld backs the ledger, stock store and catalog for one test.
type memWorld struct {
	mu     sync.Mutex
	orders map[string]orders.Order

	failSetPaid error // returned by the next SetPaid, then cleared
}

func (m *memWorld) Insert(_ context.Context, o *orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.CreatedAt = time.Now().UTC()
	m.orders[o.ID] = *o
	return nil
}

func (m *memWorld) GetByID(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memWorld) List(_ context.Context, _ string) ([]orders.Order, error) { return nil, nil }

func (m *memWorld) SetPaid(_ context.Context, id string, paidAt time.Time, pr orders.PaymentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetPaid != nil {
		err := m.failSetPaid
		m.failSetPaid = nil
		return err
	}
	o, ok := m.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = &pr
	m.orders[id] = o
	return nil
}

func (m *memWorld) SetDelivered(_ context.Context, id string, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.IsDelivered = true
	o.DeliveredAt = &deliveredAt
	m.orders[id] = o
	return nil
}

func (m *memWorld) Delete(_ context.Context, id string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, "", orders.ErrOrderNotFound
	}
	delete(m.orders, id)
	return o.IsPaid, o.ReservationID, nil
}

func (m *memWorld) QueryPaidSince(_ context.Context, _ time.Time) ([]orders.Order, error) {
	return nil, nil
}

func (m *memWorld) Reserve(_ context.Context, _ string, _ []orders.ItemQty) error { return nil }
func (m *memWorld) Restore(_ context.Context, _ string) (bool, error)             { return true, nil }

func (m *memWorld) Create(_ context.Context, _ *catalog.Sweet) error { return nil }
func (m *memWorld) GetByIDSweet(_ context.Context, _ string) (*catalog.Sweet, error) {
	return nil, catalog.ErrNotFound
}
func (m *memWorld) ListSweets(_ context.Context) ([]catalog.Sweet, error) { return nil, nil }
func (m *memWorld) Update(_ context.Context, _ *catalog.Sweet) error      { return nil }

type memCatalog struct{ *memWorld }

func (c memCatalog) GetByID(ctx context.Context, id string) (*catalog.Sweet, error) {
	return c.memWorld.GetByIDSweet(ctx, id)
}
func (c memCatalog) List(ctx context.Context) ([]catalog.Sweet, error) {
	return c.memWorld.ListSweets(ctx)
}
func (c memCatalog) Delete(_ context.Context, _ string) error { return nil }
func (c memCatalog) ConditionalAdjust(_ context.Context, _ string, _ int) (int, bool, error) {
	return 0, true, nil
}

func newTestService(t *testing.T) (*Service, *memWorld) {
	t.Helper()
	world := &memWorld{orders: make(map[string]orders.Order)}
	log := zap.NewNop()
	reservations := orders.NewReservationService(world, memCatalog{world}, log)
	lifecycle := orders.NewLifecycle(world, reservations, memCatalog{world}, log)

	svc := &Service{
		Orders: lifecycle,
		// closed local port; cache and dedup degrade to no-ops
		Redis:       redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond}),
		Producer:    kafkax.NewProducer([]string{"127.0.0.1:1"}, orders.TopicOrderPaid, 16, log),
		ServiceName: "payments-test",
		Log:         log,
	}
	return svc, world
}

func authorizedMessage(t *testing.T, orderID, paymentID string) kafkago.Message {
	t.Helper()
	ev := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    orders.EventPaymentAuthorized,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "gateway-test",
		Payload: kafkax.MustMarshal(orders.PaymentAuthorizedPayload{
			OrderID:      orderID,
			PaymentID:    paymentID,
			Status:       "COMPLETED",
			EmailAddress: "buyer@example.com",
		}),
	}
	return kafkago.Message{Key: orders.PartitionKey(orderID), Value: kafkax.MustMarshal(ev)}
}

func TestHandlePaymentAuthorized(t *testing.T) {
	svc, world := newTestService(t)
	world.orders["order-1"] = orders.Order{ID: "order-1", UserID: "user-1", TotalPriceCents: 900}

	err := svc.HandlePaymentAuthorized(context.Background(), authorizedMessage(t, "order-1", "pay-1"))
	require.NoError(t, err)

	o, err := world.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, o.IsPaid)
	require.NotNil(t, o.PaymentResult)
	assert.Equal(t, "pay-1", o.PaymentResult.ID)
}

func TestHandlePaymentAuthorizedRedelivery(t *testing.T) {
	svc, world := newTestService(t)
	world.orders["order-1"] = orders.Order{ID: "order-1"}

	msg := authorizedMessage(t, "order-1", "pay-1")
	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), msg))

	first, err := world.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	require.NotNil(t, first.PaidAt)

	// a redelivered event must not move paidAt or the payment result
	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), msg))
	second, err := world.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)
	assert.Equal(t, "pay-1", second.PaymentResult.ID)
}

func TestHandleTransientFailureIsRetriable(t *testing.T) {
	svc, world := newTestService(t)
	world.orders["order-1"] = orders.Order{ID: "order-1"}
	world.failSetPaid = errors.New("connection reset")

	msg := authorizedMessage(t, "order-1", "pay-1")
	require.Error(t, svc.HandlePaymentAuthorized(context.Background(), msg))

	o, err := world.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	require.False(t, o.IsPaid)

	// the failed attempt must not count as processed: the redelivered event
	// completes the payment once the store recovers
	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), msg))
	o, err = world.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, o.IsPaid)
}

func TestHandleIgnoresOtherEventTypes(t *testing.T) {
	svc, world := newTestService(t)
	world.orders["order-1"] = orders.Order{ID: "order-1"}

	ev := orders.Envelope{
		EventID:   uuid.NewString(),
		EventType: orders.EventOrderCreated,
		Payload:   kafkax.MustMarshal(orders.OrderCreatedPayload{OrderID: "order-1"}),
	}
	msg := kafkago.Message{Value: kafkax.MustMarshal(ev)}
	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), msg))

	o, err := world.GetByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.False(t, o.IsPaid)
}

func TestHandleUnknownOrderIsNotRetried(t *testing.T) {
	svc, _ := newTestService(t)

	// deleted or never-created order: drop the event instead of failing the batch
	err := svc.HandlePaymentAuthorized(context.Background(), authorizedMessage(t, "ghost", "pay-1"))
	require.NoError(t, err)
}

func TestHandleMalformedEnvelope(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.HandlePaymentAuthorized(context.Background(), kafkago.Message{Value: []byte("{not json")})
	require.Error(t, err)
}
