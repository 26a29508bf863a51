package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweetshop/backend/internal/catalog"
)

// StockStore applies reservation decrements and restorations against the
// catalog's stock counters. Reserve is all-or-nothing: either every item's
// conditional decrement succeeds inside one storage transaction, or no
// decrement is visible and a typed error reports the first offending item.
type StockStore interface {
	Reserve(ctx context.Context, reservationID string, items []ItemQty) error
	// Restore credits back every recorded decrement exactly once. restored is
	// false when the reservation was already restored.
	Restore(ctx context.Context, reservationID string) (restored bool, err error)
}

// ReservationService is the only writer of stock. Order code never touches
// stock fields directly; everything funnels through Reserve, Restore and
// AdjustManual so the stock >= 0 invariant has a single choke point.
type ReservationService struct {
	stock   StockStore
	catalog catalog.Store
	log     *zap.Logger
}

func NewReservationService(stock StockStore, cat catalog.Store, log *zap.Logger) *ReservationService {
	return &ReservationService{stock: stock, catalog: cat, log: log}
}

// Reserve validates the requested items and decrements stock for all of them
// atomically. On success the returned Reservation records exactly what was
// decremented, for later exact-inverse restoration.
func (s *ReservationService) Reserve(ctx context.Context, items []ItemQty) (*Reservation, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range items {
		if it.Qty < 1 {
			return nil, fmt.Errorf("%w: sweet %s qty %d", ErrInvalidQuantity, it.SweetID, it.Qty)
		}
	}

	merged := coalesceItems(items)
	res := &Reservation{
		ID:     uuid.NewString(),
		Items:  merged,
		Status: ReservationReserved,
	}
	if err := s.stock.Reserve(ctx, res.ID, merged); err != nil {
		s.log.Warn("stock reservation failed", zap.String("reservation_id", res.ID), zap.Error(err))
		return nil, err
	}
	return res, nil
}

// coalesceItems merges repeated lines for the same sweet into a single
// quantity, keeping first-seen order. The reservation tables key items by
// (reservation_id, sweet_id).
func coalesceItems(items []ItemQty) []ItemQty {
	idx := make(map[string]int, len(items))
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.SweetID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		idx[it.SweetID] = len(out)
		out = append(out, it)
	}
	return out
}

// Restore is the compensating action for Reserve. A second restore of the
// same reservation returns ErrAlreadyRestored and changes nothing.
func (s *ReservationService) Restore(ctx context.Context, reservationID string) error {
	restored, err := s.stock.Restore(ctx, reservationID)
	if err != nil {
		return err
	}
	if !restored {
		return ErrAlreadyRestored
	}
	s.log.Info("reservation restored", zap.String("reservation_id", reservationID))
	return nil
}

// AdjustManual is the administrative stock correction, independent of orders.
// A negative delta larger than the current stock is rejected.
func (s *ReservationService) AdjustManual(ctx context.Context, sweetID string, delta int) (int, error) {
	sweet, err := s.catalog.GetByID(ctx, sweetID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return 0, &SweetNotFoundError{SweetID: sweetID}
		}
		return 0, err
	}
	if delta < 0 && -delta > sweet.Stock {
		return 0, &InsufficientStockError{SweetID: sweetID, Requested: -delta, Available: sweet.Stock}
	}

	newStock, ok, err := s.catalog.ConditionalAdjust(ctx, sweetID, delta)
	if err != nil {
		return 0, err
	}
	if !ok {
		// lost a race with a concurrent reservation or deletion; re-read for
		// the report
		current, err := s.catalog.GetByID(ctx, sweetID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return 0, &SweetNotFoundError{SweetID: sweetID}
			}
			return 0, err
		}
		return 0, &InsufficientStockError{SweetID: sweetID, Requested: -delta, Available: current.Stock}
	}
	return newStock, nil
}
