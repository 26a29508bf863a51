package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sweetshop/backend/internal/catalog"
	"github.com/sweetshop/backend/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the core error taxonomy onto status codes: validation and
// stock failures are 400, unknown ids are 404, the rest is 500.
func writeError(w http.ResponseWriter, err error) {
	var insufficient *orders.InsufficientStockError
	var sweetMissing *orders.SweetNotFoundError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":     insufficient.Error(),
			"sweet":     insufficient.SweetID,
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.As(err, &sweetMissing):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": sweetMissing.Error()})
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidTotals),
		errors.Is(err, orders.ErrOrderNotPaid),
		errors.Is(err, errSubCent):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

var errSubCent = errors.New("amounts must not have sub-cent precision")

var hundred = decimal.NewFromInt(100)

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

func decimalToCents(d decimal.Decimal) (int64, error) {
	shifted := d.Mul(hundred)
	if !shifted.IsInteger() {
		return 0, errSubCent
	}
	return shifted.IntPart(), nil
}
