package repository

import (
	"context"
	"fmt"

	"bakery/storefront/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

const handoffSchema = `
CREATE TABLE IF NOT EXISTS checkout_handoffs (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	message     TEXT NOT NULL,
	link        TEXT NOT NULL,
	total_cost  NUMERIC(12, 2) NOT NULL,
	total_items INTEGER NOT NULL,
	lines       JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS checkout_handoffs_session_idx ON checkout_handoffs (session_id, created_at DESC);`

// HandoffRepository records every checkout handed off to the messaging app
type HandoffRepository interface {
	EnsureSchema(ctx context.Context) error
	SaveHandoff(ctx context.Context, handoff *domain.Handoff, lines []domain.CartLine) error
}

type handoffRepository struct {
	db *pgxpool.Pool
}

func NewHandoffRepository(db *pgxpool.Pool) HandoffRepository {
	return &handoffRepository{
		db: db,
	}
}

func (r *handoffRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, handoffSchema); err != nil {
		return fmt.Errorf("failed to create checkout_handoffs table: %w", err)
	}
	return nil
}

func (r *handoffRepository) SaveHandoff(ctx context.Context, handoff *domain.Handoff, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{} // a nil slice would be written as SQL NULL
	}

	query := `
	INSERT INTO checkout_handoffs (id, session_id, message, link, total_cost, total_items, lines, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id)
	DO UPDATE SET message = $3, link = $4, total_cost = $5, total_items = $6, lines = $7`
	_, err := r.db.Exec(ctx, query,
		handoff.ID,
		handoff.SessionID,
		handoff.Message,
		handoff.Link,
		handoff.TotalCost.StringFixed(2),
		handoff.TotalItems,
		lines,
		handoff.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkout handoff: %w", err)
	}

	return nil
}
