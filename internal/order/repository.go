package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Emmannue01/trend-caps/internal/coupon"
)

var ErrNotFound = errors.New("order not found")

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Earnings aggregates the global namespace, skipping cancelled orders.
type Earnings struct {
	TotalEarnings float64 `json:"totalEarnings"`
	TotalOrders   int     `json:"totalOrders"`
	ProductsSold  int     `json:"productsSold"`
}

type Repository interface {
	// CreateTx writes the order into both namespaces within a
	// caller-owned transaction, so the committer can bundle it with the
	// stock decrements and cart clear.
	CreateTx(ctx context.Context, db DB, o *Order) error

	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListByAccount(ctx context.Context, accountID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID string, status Status) error
	Earnings(ctx context.Context) (Earnings, error)
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `id, account_id, items, subtotal, discount,
	coupon_code, coupon_type, coupon_value, total, status,
	ship_phone, ship_street, ship_neighborhood, ship_city, ship_state, ship_zip, ship_country,
	created_at`

func (r *PostgresRepository) CreateTx(ctx context.Context, db DB, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	var couponCode, couponType *string
	var couponValue *float64
	if o.AppliedCoupon != nil {
		couponCode = &o.AppliedCoupon.Code
		t := string(o.AppliedCoupon.DiscountType)
		couponType = &t
		couponValue = &o.AppliedCoupon.DiscountValue
	}

	args := []any{
		o.ID, o.AccountID, items, o.Subtotal, o.Discount,
		couponCode, couponType, couponValue, o.Total, o.Status,
		o.Shipping.Phone, o.Shipping.Street, o.Shipping.Neighborhood, o.Shipping.City,
		o.Shipping.State, o.Shipping.ZipCode, o.Shipping.Country, o.CreatedAt,
	}

	if _, err := db.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, args...); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if _, err := db.Exec(ctx, `
		INSERT INTO account_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, args...); err != nil {
		return fmt.Errorf("insert account order: %w", err)
	}

	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var items []byte
	var couponCode, couponType *string
	var couponValue *float64

	if err := row.Scan(&o.ID, &o.AccountID, &items, &o.Subtotal, &o.Discount,
		&couponCode, &couponType, &couponValue, &o.Total, &o.Status,
		&o.Shipping.Phone, &o.Shipping.Street, &o.Shipping.Neighborhood, &o.Shipping.City,
		&o.Shipping.State, &o.Shipping.ZipCode, &o.Shipping.Country, &o.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if couponCode != nil && couponType != nil && couponValue != nil {
		o.AppliedCoupon = &AppliedCoupon{
			Code:          *couponCode,
			DiscountType:  coupon.DiscountType(*couponType),
			DiscountValue: *couponValue,
		}
	}
	return &o, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM account_orders
		WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *PostgresRepository) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// UpdateStatus moves both copies of the order, keeping the account's
// view in step with fulfillment.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, status Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := r.db.Exec(ctx,
		`UPDATE account_orders SET status = $2 WHERE id = $1`, orderID, status); err != nil {
		return fmt.Errorf("update account order status: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Earnings(ctx context.Context) (Earnings, error) {
	var e Earnings
	row := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0), COUNT(*),
			COALESCE(SUM((SELECT SUM((item->>'quantity')::int) FROM jsonb_array_elements(items) AS item)), 0)
		FROM orders WHERE status <> 'cancelled'
	`)
	if err := row.Scan(&e.TotalEarnings, &e.TotalOrders, &e.ProductsSold); err != nil {
		return Earnings{}, fmt.Errorf("aggregate earnings: %w", err)
	}
	return e, nil
}
