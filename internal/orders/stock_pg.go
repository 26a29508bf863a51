package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStockStore implements StockStore over the sweets and reservations tables.
// All decrements of one Reserve call happen inside a single transaction, so a
// failing item rolls back every already-applied decrement before the error is
// returned and no partial reservation is ever visible to other transactions.
type PGStockStore struct{ DB *pgxpool.Pool }

var _ StockStore = (*PGStockStore)(nil)

func (r *PGStockStore) Reserve(ctx context.Context, reservationID string, items []ItemQty) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO reservations(id, status) VALUES ($1, $2)`,
		reservationID, ReservationReserved); err != nil {
		return err
	}

	for _, it := range items {
		// check-and-decrement in one statement; a plain read-then-write would
		// let two concurrent orders both pass the check
		ct, err := tx.Exec(ctx, `
			UPDATE sweets SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`,
			it.SweetID, it.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			var available int
			err := tx.QueryRow(ctx, `SELECT stock FROM sweets WHERE id = $1`, it.SweetID).Scan(&available)
			if errors.Is(err, pgx.ErrNoRows) {
				return &SweetNotFoundError{SweetID: it.SweetID}
			}
			if err != nil {
				return err
			}
			return &InsufficientStockError{SweetID: it.SweetID, Requested: it.Qty, Available: available}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO reservation_items(reservation_id, sweet_id, qty)
			VALUES ($1, $2, $3)`,
			reservationID, it.SweetID, it.Qty); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PGStockStore) Restore(ctx context.Context, reservationID string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// status flip is the idempotency guard: only the transaction that moves
	// RESERVED -> RESTORED credits stock back
	ct, err := tx.Exec(ctx, `
		UPDATE reservations SET status = $2
		WHERE id = $1 AND status = $3`,
		reservationID, ReservationRestored, ReservationReserved)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM reservations WHERE id = $1`, reservationID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("reservation %s not found", reservationID)
		}
		if err != nil {
			return false, err
		}
		return false, nil // already restored
	}

	rows, err := tx.Query(ctx, `
		SELECT sweet_id, qty FROM reservation_items WHERE reservation_id = $1`, reservationID)
	if err != nil {
		return false, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ItemQty])
	if err != nil {
		return false, err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			UPDATE sweets SET stock = stock + $2, updated_at = now()
			WHERE id = $1`,
			it.SweetID, it.Qty); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
