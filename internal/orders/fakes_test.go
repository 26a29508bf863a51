package orders

import (
	"context"
	"sync"
	"time"

	"github.com/sweetshop/backend/internal/catalog"
)

// memStock is an in-memory StockStore. A single mutex spans the whole
// reserve, matching the all-or-nothing contract of the postgres store.
type memStock struct {
	mu           sync.Mutex
	stock        map[string]int
	reservations map[string][]ItemQty
	restored     map[string]bool
}

func newMemStock(stock map[string]int) *memStock {
	s := make(map[string]int, len(stock))
	for k, v := range stock {
		s[k] = v
	}
	return &memStock{
		stock:        s,
		reservations: make(map[string][]ItemQty),
		restored:     make(map[string]bool),
	}
}

func (m *memStock) Reserve(_ context.Context, reservationID string, items []ItemQty) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range items {
		available, ok := m.stock[it.SweetID]
		if !ok {
			return &SweetNotFoundError{SweetID: it.SweetID}
		}
		if available < it.Qty {
			return &InsufficientStockError{SweetID: it.SweetID, Requested: it.Qty, Available: available}
		}
	}
	for _, it := range items {
		m.stock[it.SweetID] -= it.Qty
	}
	m.reservations[reservationID] = items
	return nil
}

func (m *memStock) Restore(_ context.Context, reservationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.restored[reservationID] {
		return false, nil
	}
	for _, it := range m.reservations[reservationID] {
		m.stock[it.SweetID] += it.Qty
	}
	m.restored[reservationID] = true
	return true, nil
}

func (m *memStock) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

// memCatalog is an in-memory catalog.Store sharing stock counters with a
// memStock so reservations and manual adjustments see the same numbers.
type memCatalog struct {
	mu     sync.Mutex
	sweets map[string]catalog.Sweet
	stock  *memStock
}

func newMemCatalog(stock *memStock, sweets ...catalog.Sweet) *memCatalog {
	m := &memCatalog{sweets: make(map[string]catalog.Sweet), stock: stock}
	for _, s := range sweets {
		m.sweets[s.ID] = s
	}
	return m
}

func (m *memCatalog) Create(_ context.Context, s *catalog.Sweet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweets[s.ID] = *s
	m.stock.mu.Lock()
	m.stock.stock[s.ID] = s.Stock
	m.stock.mu.Unlock()
	return nil
}

func (m *memCatalog) GetByID(_ context.Context, id string) (*catalog.Sweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sweets[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	s.Stock = m.stock.stockOf(id)
	return &s, nil
}

func (m *memCatalog) List(_ context.Context) ([]catalog.Sweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]catalog.Sweet, 0, len(m.sweets))
	for _, s := range m.sweets {
		out = append(out, s)
	}
	return out, nil
}

func (m *memCatalog) Update(_ context.Context, s *catalog.Sweet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sweets[s.ID]; !ok {
		return catalog.ErrNotFound
	}
	m.sweets[s.ID] = *s
	return nil
}

func (m *memCatalog) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sweets[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(m.sweets, id)
	return nil
}

func (m *memCatalog) ConditionalAdjust(_ context.Context, id string, delta int) (int, bool, error) {
	m.stock.mu.Lock()
	defer m.stock.mu.Unlock()
	current, ok := m.stock.stock[id]
	if !ok || current+delta < 0 {
		return 0, false, nil
	}
	m.stock.stock[id] = current + delta
	return current + delta, true, nil
}

// memLedger is an in-memory Ledger.
type memLedger struct {
	mu     sync.Mutex
	orders map[string]Order

	failInsert bool
}

func newMemLedger() *memLedger {
	return &memLedger{orders: make(map[string]Order)}
}

var errInsertFailed = errFake("insert failed")

type errFake string

func (e errFake) Error() string { return string(e) }

func (m *memLedger) Insert(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return errInsertFailed
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	m.orders[o.ID] = *o
	return nil
}

func (m *memLedger) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (m *memLedger) List(_ context.Context, userID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if userID == "" || o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memLedger) SetPaid(_ context.Context, id string, paidAt time.Time, pr PaymentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = &pr
	m.orders[id] = o
	return nil
}

func (m *memLedger) SetDelivered(_ context.Context, id string, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.IsDelivered = true
	o.DeliveredAt = &deliveredAt
	m.orders[id] = o
	return nil
}

func (m *memLedger) Delete(_ context.Context, id string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, "", ErrOrderNotFound
	}
	delete(m.orders, id)
	return o.IsPaid, o.ReservationID, nil
}

func (m *memLedger) QueryPaidSince(_ context.Context, since time.Time) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.IsPaid && !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memLedger) put(o Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}
