package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGLedger struct{ DB *pgxpool.Pool }

var _ Ledger = (*PGLedger)(nil)

const orderColumns = `
	id, user_id,
	ship_address, ship_city, ship_postal_code, ship_country,
	payment_method, pay_id, pay_status, pay_update_time, pay_email,
	items_price_cents, tax_price_cents, shipping_price_cents, total_price_cents,
	is_paid, paid_at, is_delivered, delivered_at,
	reservation_id, created_at, updated_at`

func (r *PGLedger) Insert(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `
		INSERT INTO orders(
			id, user_id,
			ship_address, ship_city, ship_postal_code, ship_country,
			payment_method,
			items_price_cents, tax_price_cents, shipping_price_cents, total_price_cents,
			reservation_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID,
		o.ShippingAddress.Address, o.ShippingAddress.City, o.ShippingAddress.PostalCode, o.ShippingAddress.Country,
		o.PaymentMethod,
		o.ItemsPriceCents, o.TaxPriceCents, o.ShippingPriceCents, o.TotalPriceCents,
		o.ReservationID,
	).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, sweet_id, name, image, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id`,
			o.ID, it.SweetID, it.Name, it.Image, it.Qty, it.PriceCents,
		).Scan(&it.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PGLedger) GetByID(ctx context.Context, id string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, sweet_id, name, image, qty, price_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	o.Items, err = pgx.CollectRows(rows, pgx.RowToStructByPos[LineItem])
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PGLedger) List(ctx context.Context, userID string) ([]Order, error) {
	q := `SELECT` + orderColumns + ` FROM orders`
	args := []any{}
	if userID != "" {
		q += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	// one batched query for the line items of every listed order
	ids := make([]string, len(out))
	byID := make(map[string]*Order, len(out))
	for i := range out {
		ids[i] = out[i].ID
		byID[out[i].ID] = &out[i]
	}
	itemRows, err := r.DB.Query(ctx, `
		SELECT id, order_id, sweet_id, name, image, qty, price_cents
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(itemRows, pgx.RowToStructByPos[LineItem])
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return out, nil
}

func (r *PGLedger) SetPaid(ctx context.Context, id string, paidAt time.Time, pr PaymentResult) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET is_paid = true, paid_at = $2,
		    pay_id = $3, pay_status = $4, pay_update_time = $5, pay_email = $6,
		    updated_at = now()
		WHERE id = $1`,
		id, paidAt, pr.ID, pr.Status, pr.UpdateTime, pr.EmailAddress)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PGLedger) SetDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET is_delivered = true, delivered_at = $2, updated_at = now()
		WHERE id = $1`,
		id, deliveredAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PGLedger) Delete(ctx context.Context, id string) (bool, string, error) {
	// RETURNING reads is_paid in the same statement that removes the row, so
	// the caller's restore decision cannot race a concurrent payment
	var (
		isPaid        bool
		reservationID string
	)
	err := r.DB.QueryRow(ctx, `
		DELETE FROM orders WHERE id = $1
		RETURNING is_paid, reservation_id`, id).Scan(&isPaid, &reservationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", ErrOrderNotFound
	}
	if err != nil {
		return false, "", err
	}
	return isPaid, reservationID, nil
}

func (r *PGLedger) QueryPaidSince(ctx context.Context, since time.Time) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT`+orderColumns+`
		FROM orders
		WHERE is_paid = true AND created_at >= $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                                    Order
		payID, payStatus, payUpdate, payMail *string
	)
	if err := row.Scan(
		&o.ID, &o.UserID,
		&o.ShippingAddress.Address, &o.ShippingAddress.City, &o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.PaymentMethod, &payID, &payStatus, &payUpdate, &payMail,
		&o.ItemsPriceCents, &o.TaxPriceCents, &o.ShippingPriceCents, &o.TotalPriceCents,
		&o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt,
		&o.ReservationID, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if payID != nil {
		o.PaymentResult = &PaymentResult{
			ID:           *payID,
			Status:       deref(payStatus),
			UpdateTime:   deref(payUpdate),
			EmailAddress: deref(payMail),
		}
	}
	return &o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
