package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct{ DB *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

func (r *PGStore) Create(ctx context.Context, s *Sweet) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return r.DB.QueryRow(ctx, `
		INSERT INTO sweets(id, name, description, image, category, price_cents, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Description, s.Image, s.Category, s.PriceCents, s.Stock,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *PGStore) GetByID(ctx context.Context, id string) (*Sweet, error) {
	var s Sweet
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, image, category, price_cents, stock, created_at, updated_at
		FROM sweets WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Description, &s.Image, &s.Category, &s.PriceCents, &s.Stock, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGStore) List(ctx context.Context) ([]Sweet, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, description, image, category, price_cents, stock, created_at, updated_at
		FROM sweets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sweet
	for rows.Next() {
		var s Sweet
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Image, &s.Category, &s.PriceCents, &s.Stock, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update rewrites the descriptive fields and price. Stock is deliberately
// excluded; it moves only through ConditionalAdjust.
func (r *PGStore) Update(ctx context.Context, s *Sweet) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE sweets
		SET name = $2, description = $3, image = $4, category = $5, price_cents = $6, updated_at = now()
		WHERE id = $1`,
		s.ID, s.Name, s.Description, s.Image, s.Category, s.PriceCents)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGStore) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM sweets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGStore) ConditionalAdjust(ctx context.Context, id string, delta int) (int, bool, error) {
	var newStock int
	err := r.DB.QueryRow(ctx, `
		UPDATE sweets
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock`, id, delta,
	).Scan(&newStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return newStock, true, nil
}
