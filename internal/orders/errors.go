package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOrder      = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidTotals   = errors.New("order totals do not add up")
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotPaid    = errors.New("order is not paid")

	// ErrAlreadyRestored reports a second restore of the same reservation.
	// Benign: stock is already correct, nothing was double-credited.
	ErrAlreadyRestored = errors.New("reservation already restored")
)

type SweetNotFoundError struct {
	SweetID string
}

func (e *SweetNotFoundError) Error() string {
	return fmt.Sprintf("sweet %s not found", e.SweetID)
}

type InsufficientStockError struct {
	SweetID   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sweet %s: requested %d, available %d", e.SweetID, e.Requested, e.Available)
}
