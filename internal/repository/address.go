package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	addressBelongsToUserSQL = `SELECT EXISTS (
		SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`

	createAddressSQL = `INSERT INTO addresses (user_id, line1, line2, city, state, postal_code, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
)

// AddressRepository provides delivery address ownership checks. Orders keep
// addresses by reference only; the address book itself is owned elsewhere.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// BelongsToUser reports whether the address exists and is owned by the user.
func (r *AddressRepository) BelongsToUser(ctx context.Context, addressID, userID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, addressBelongsToUserSQL, addressID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking address %d ownership: %w", addressID, err)
	}
	return ok, nil
}

// Create inserts a delivery address and returns its id.
func (r *AddressRepository) Create(ctx context.Context, userID int64, line1, line2, city, state, postalCode, phone string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, createAddressSQL, userID, line1, line2, city, state, postalCode, phone).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating address: %w", err)
	}
	return id, nil
}
