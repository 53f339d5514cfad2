package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurmed/orders/internal/domain/cart"
)

const (
	upsertCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`

	listCartLinesSQL = `SELECT id, cart_id, item_id, quantity
		FROM cart_lines WHERE cart_id = $1 ORDER BY id`

	upsertCartLineSQL = `INSERT INTO cart_lines (cart_id, item_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, item_id) DO UPDATE
		SET quantity = cart_lines.quantity + EXCLUDED.quantity`

	setCartLineQuantitySQL = `UPDATE cart_lines SET quantity = $3
		WHERE cart_id = $1 AND item_id = $2`

	removeCartLineSQL = `DELETE FROM cart_lines WHERE cart_id = $1 AND item_id = $2`

	clearCartSQL = `DELETE FROM cart_lines WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the user's cart with its lines, creating an empty cart
// on first access.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID int64) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID}
	if err := r.pool.QueryRow(ctx, upsertCartSQL, userID).Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("getting cart for user %d: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, listCartLinesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	c.Lines, err = pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	return c, nil
}

// UpsertLine adds delta to the line's quantity, creating the line when the
// item is not in the cart yet.
func (r *CartRepository) UpsertLine(ctx context.Context, cartID, itemID int64, delta int) error {
	_, err := r.pool.Exec(ctx, upsertCartLineSQL, cartID, itemID, delta)
	if err != nil {
		return fmt.Errorf("upserting cart line: %w", err)
	}
	return nil
}

// SetLineQuantity overwrites the line's quantity, reporting whether the line
// existed.
func (r *CartRepository) SetLineQuantity(ctx context.Context, cartID, itemID int64, quantity int) (bool, error) {
	tag, err := r.pool.Exec(ctx, setCartLineQuantitySQL, cartID, itemID, quantity)
	if err != nil {
		return false, fmt.Errorf("updating cart line: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveLine deletes the item's line. Removing an absent line is a no-op.
func (r *CartRepository) RemoveLine(ctx context.Context, cartID, itemID int64) error {
	_, err := r.pool.Exec(ctx, removeCartLineSQL, cartID, itemID)
	if err != nil {
		return fmt.Errorf("removing cart line: %w", err)
	}
	return nil
}

// Clear removes all lines, keeping the cart row for reuse.
func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, cartID)
	if err != nil {
		return fmt.Errorf("clearing cart %d: %w", cartID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.ID, &l.CartID, &l.ItemID, &l.Quantity)
	return l, err
}
