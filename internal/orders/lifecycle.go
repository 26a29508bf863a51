package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweetshop/backend/internal/catalog"
)

// Ledger is the order store. Orders are immutable once inserted except for
// the paid/delivered status fields and deletion.
type Ledger interface {
	Insert(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// List returns all orders, newest first; userID != "" filters by owner.
	List(ctx context.Context, userID string) ([]Order, error)
	SetPaid(ctx context.Context, id string, paidAt time.Time, pr PaymentResult) error
	SetDelivered(ctx context.Context, id string, deliveredAt time.Time) error
	// Delete removes the order and reports its paid flag and reservation id,
	// read atomically with the removal so the caller's restore decision
	// cannot race a concurrent payment.
	Delete(ctx context.Context, id string) (isPaid bool, reservationID string, err error)
	// QueryPaidSince returns paid orders created at or after the given time.
	// Line items are not loaded; callers only need the totals.
	QueryPaidSince(ctx context.Context, since time.Time) ([]Order, error)
}

type PlaceOrderInput struct {
	UserID             string
	Items              []ItemQty
	ShippingAddress    ShippingAddress
	PaymentMethod      string
	TaxPriceCents      int64
	ShippingPriceCents int64
	TotalPriceCents    int64
}

// Lifecycle drives an order through Created -> Paid -> Delivered, and handles
// deletion with compensating stock restoration for unpaid orders. Stock moves
// only through the ReservationService.
type Lifecycle struct {
	ledger       Ledger
	reservations *ReservationService
	catalog      catalog.Store
	log          *zap.Logger
	now          func() time.Time
}

func NewLifecycle(ledger Ledger, reservations *ReservationService, cat catalog.Store, log *zap.Logger) *Lifecycle {
	return &Lifecycle{
		ledger:       ledger,
		reservations: reservations,
		catalog:      cat,
		log:          log,
		now:          time.Now,
	}
}

// PlaceOrder validates the request, snapshots name/image/price for every item
// from the live catalog (client prices are never trusted), reserves stock for
// the whole order in one all-or-nothing call, and persists the order. On any
// failure after the reservation the decrements are compensated, so a failed
// call leaves stock exactly as it was.
func (l *Lifecycle) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if in.TaxPriceCents < 0 || in.ShippingPriceCents < 0 || in.TotalPriceCents < 0 {
		return nil, ErrInvalidTotals
	}

	var (
		lineItems  []LineItem
		itemsPrice int64
	)
	for _, it := range in.Items {
		sweet, err := l.catalog.GetByID(ctx, it.SweetID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, &SweetNotFoundError{SweetID: it.SweetID}
			}
			return nil, err
		}
		lineItems = append(lineItems, LineItem{
			SweetID:    sweet.ID,
			Name:       sweet.Name,
			Image:      sweet.Image,
			Qty:        it.Qty,
			PriceCents: sweet.PriceCents,
		})
		itemsPrice += sweet.PriceCents * int64(it.Qty)
	}
	if in.TotalPriceCents != itemsPrice+in.TaxPriceCents+in.ShippingPriceCents {
		return nil, ErrInvalidTotals
	}

	res, err := l.reservations.Reserve(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	order := &Order{
		ID:                 uuid.NewString(),
		UserID:             in.UserID,
		Items:              lineItems,
		ShippingAddress:    in.ShippingAddress,
		PaymentMethod:      in.PaymentMethod,
		ItemsPriceCents:    itemsPrice,
		TaxPriceCents:      in.TaxPriceCents,
		ShippingPriceCents: in.ShippingPriceCents,
		TotalPriceCents:    in.TotalPriceCents,
		ReservationID:      res.ID,
	}
	if err := l.ledger.Insert(ctx, order); err != nil {
		// the decrement already committed; hand the stock back
		if rerr := l.reservations.Restore(ctx, res.ID); rerr != nil && !errors.Is(rerr, ErrAlreadyRestored) {
			l.log.Error("failed to restore reservation after insert failure",
				zap.String("reservation_id", res.ID), zap.Error(rerr))
		}
		return nil, err
	}

	l.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int64("total_cents", order.TotalPriceCents))
	return order, nil
}

// MarkPaid records payment confirmation. Paid is monotonic: marking an
// already-paid order again is a no-op. No stock side effect; stock was
// committed when the order was placed.
func (l *Lifecycle) MarkPaid(ctx context.Context, orderID string, pr PaymentResult) (*Order, error) {
	order, err := l.ledger.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return order, nil
	}

	paidAt := l.now().UTC()
	if err := l.ledger.SetPaid(ctx, orderID, paidAt, pr); err != nil {
		return nil, err
	}
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.PaymentResult = &pr

	l.log.Info("order paid", zap.String("order_id", orderID), zap.String("payment_id", pr.ID))
	return order, nil
}

// MarkDelivered requires the order to be paid first. Delivered is monotonic.
func (l *Lifecycle) MarkDelivered(ctx context.Context, orderID string) (*Order, error) {
	order, err := l.ledger.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid {
		return nil, ErrOrderNotPaid
	}
	if order.IsDelivered {
		return order, nil
	}

	deliveredAt := l.now().UTC()
	if err := l.ledger.SetDelivered(ctx, orderID, deliveredAt); err != nil {
		return nil, err
	}
	order.IsDelivered = true
	order.DeliveredAt = &deliveredAt

	l.log.Info("order delivered", zap.String("order_id", orderID))
	return order, nil
}

// DeleteOrder removes an order. The paid/unpaid decision rides on the same
// statement that deletes the row; an order that was paid at the instant of
// deletion keeps its stock, since it represents a fulfilled sale rather than
// a reservation to release. An unpaid order hands its reservation back after
// the delete. stockRestored reports whether stock was credited back.
func (l *Lifecycle) DeleteOrder(ctx context.Context, orderID string) (stockRestored bool, err error) {
	isPaid, reservationID, err := l.ledger.Delete(ctx, orderID)
	if err != nil {
		return false, err
	}
	if isPaid {
		l.log.Info("deleting paid order without stock restoration", zap.String("order_id", orderID))
		return false, nil
	}

	switch err := l.reservations.Restore(ctx, reservationID); {
	case errors.Is(err, ErrAlreadyRestored):
		l.log.Warn("reservation was already restored",
			zap.String("order_id", orderID),
			zap.String("reservation_id", reservationID))
		return false, nil
	case err != nil:
		l.log.Error("failed to restore reservation after order deletion",
			zap.String("order_id", orderID),
			zap.String("reservation_id", reservationID),
			zap.Error(err))
		return false, err
	}
	return true, nil
}

func (l *Lifecycle) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return l.ledger.GetByID(ctx, orderID)
}

func (l *Lifecycle) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	return l.ledger.List(ctx, userID)
}
