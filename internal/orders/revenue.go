package orders

import (
	"context"
	"time"
)

// Revenue computes reporting figures from paid orders. Read-only.
type Revenue struct {
	ledger Ledger
}

func NewRevenue(ledger Ledger) *Revenue {
	return &Revenue{ledger: ledger}
}

// MonthlyIncome sums totalPrice of paid orders per calendar month over the
// trailing year ending at asOf. Keys are "YYYY-MM"; values are cents. Months
// without paid orders are absent from the map.
func (r *Revenue) MonthlyIncome(ctx context.Context, asOf time.Time) (map[string]int64, error) {
	since := asOf.AddDate(-1, 0, 0)
	paid, err := r.ledger.QueryPaidSince(ctx, since)
	if err != nil {
		return nil, err
	}

	income := make(map[string]int64)
	for _, o := range paid {
		if o.CreatedAt.After(asOf) {
			continue
		}
		income[o.CreatedAt.UTC().Format("2006-01")] += o.TotalPriceCents
	}
	return income, nil
}
