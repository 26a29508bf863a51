package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("sweet not found")

// Sweet is a catalog entry. Stock is the available-to-sell quantity; it is
// mutated only through ConditionalAdjust so the stock >= 0 invariant holds
// under concurrent writers.
type Sweet struct {
	ID          string
	Name        string
	Description string
	Image       string
	Category    string
	PriceCents  int64
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Store interface {
	Create(ctx context.Context, s *Sweet) error
	GetByID(ctx context.Context, id string) (*Sweet, error)
	List(ctx context.Context) ([]Sweet, error)
	Update(ctx context.Context, s *Sweet) error
	Delete(ctx context.Context, id string) error

	// ConditionalAdjust applies delta to the sweet's stock iff the result
	// stays >= 0, as a single atomic operation. ok reports whether the
	// adjustment was applied; newStock is valid only when ok.
	ConditionalAdjust(ctx context.Context, id string, delta int) (newStock int, ok bool, err error)
}
