package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("coupon not found")

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Resolver is the lookup contract checkout depends on. Resolution is an
// exact match on the normalized code; isActive is stored but not
// consulted here.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*Coupon, error)
}

type Repository interface {
	Resolver
	Save(ctx context.Context, c *Coupon) error
	List(ctx context.Context) ([]Coupon, error)
	Delete(ctx context.Context, code string) error
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Resolve(ctx context.Context, code string) (*Coupon, error) {
	code = Normalize(code)

	var c Coupon
	row := r.db.QueryRow(ctx, `
		SELECT code, discount_type, discount_value, is_active, created_at
		FROM coupons WHERE code = $1
	`, code)
	if err := row.Scan(&c.Code, &c.DiscountType, &c.DiscountValue, &c.IsActive, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select coupon: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) Save(ctx context.Context, c *Coupon) error {
	c.Code = Normalize(c.Code)
	if c.Code == "" {
		return errors.New("coupon code is required")
	}
	if c.DiscountValue <= 0 {
		return errors.New("discount value must be positive")
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO coupons (code, discount_type, discount_value, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			is_active = EXCLUDED.is_active
	`, c.Code, c.DiscountType, c.DiscountValue, c.IsActive)
	if err != nil {
		return fmt.Errorf("upsert coupon: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Coupon, error) {
	rows, err := r.db.Query(ctx, `
		SELECT code, discount_type, discount_value, is_active, created_at
		FROM coupons ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	defer rows.Close()

	var coupons []Coupon
	for rows.Next() {
		var c Coupon
		if err := rows.Scan(&c.Code, &c.DiscountType, &c.DiscountValue, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM coupons WHERE code = $1`, Normalize(code))
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Normalize maps a user-entered code to its stored form.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
