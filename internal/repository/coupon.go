package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurmed/orders/internal/domain/coupon"
)

const (
	couponColumns = `id, code, discount_type, discount_value, min_order_value,
		max_discount, expiry_date, usage_limit, used_count, is_active, created_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE code = UPPER($1)`

	redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = UPPER($1) AND is_active
		  AND (usage_limit IS NULL OR used_count < usage_limit)`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE code = UPPER($1))`

	createCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, min_order_value, max_discount, expiry_date, usage_limit, is_active)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	listAvailableCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE is_active
		  AND (expiry_date IS NULL OR expiry_date > $1)
		  AND (usage_limit IS NULL OR used_count < usage_limit)
		ORDER BY created_at DESC`

	updateCouponSQL = `UPDATE coupons SET
		is_active   = CASE WHEN $2 THEN $3 ELSE is_active END,
		expiry_date = CASE WHEN $4 THEN $5 ELSE expiry_date END,
		usage_limit = CASE WHEN $6 THEN $7 ELSE usage_limit END
		WHERE id = $1
		RETURNING ` + couponColumns

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code, case-insensitively. Returns
// coupon.ErrNotFound when the code does not exist.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Redeem consumes one use of the coupon. The usage guard lives in the UPDATE
// predicate, so concurrent redemptions can never push used_count past the
// limit. Returns coupon.ErrLimitReached when the guard rejects the increment
// and coupon.ErrNotFound when the code does not exist at all.
func (r *CouponRepository) Redeem(ctx context.Context, code string) error {
	return redeemCoupon(ctx, r.pool, code)
}

// Create inserts a coupon, normalizing its code to uppercase. Returns
// coupon.ErrDuplicateCode when the code is already taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, createCouponSQL,
		c.Code, c.DiscountType, c.DiscountValue, c.MinOrderValue,
		c.MaxDiscount, c.ExpiryDate, c.UsageLimit, c.Active,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	c.Code = coupon.NormalizeCode(c.Code)
	return nil
}

// List returns all coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, nil
}

// ListAvailable returns coupons a customer can currently use: active, not
// expired at now, with uses remaining.
func (r *CouponRepository) ListAvailable(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listAvailableCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing available coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing available coupons: %w", err)
	}
	return coupons, nil
}

// Update applies an admin edit and returns the updated coupon. Returns
// coupon.ErrNotFound when the id does not resolve.
func (r *CouponRepository) Update(ctx context.Context, id int64, upd coupon.Update) (*coupon.Coupon, error) {
	setActive := upd.Active != nil
	var active bool
	if setActive {
		active = *upd.Active
	}

	rows, err := r.pool.Query(ctx, updateCouponSQL,
		id,
		setActive, active,
		upd.SetExpiry, upd.ExpiryDate,
		upd.SetLimit, upd.UsageLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("updating coupon %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("updating coupon %d: %w", id, err)
	}
	return &c, nil
}

// Delete removes a coupon. Returns coupon.ErrNotFound when the id does not
// resolve.
func (r *CouponRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// querier lets redeemCoupon run against either the pool or a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func redeemCoupon(ctx context.Context, q querier, code string) error {
	tag, err := q.Exec(ctx, redeemCouponSQL, code)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, couponExistsSQL, code).Scan(&exists); err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if !exists {
		return coupon.ErrNotFound
	}
	return coupon.ErrLimitReached
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinOrderValue,
		&c.MaxDiscount, &c.ExpiryDate, &c.UsageLimit, &c.UsedCount, &c.Active, &c.CreatedAt,
	)
	return c, err
}
