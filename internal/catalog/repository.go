package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("not found")

// DB matches the methods from *pgxpool.Pool that the repository uses.
// pgx.Tx satisfies it too, so transactional callers can pass their
// transaction where a pool is expected.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Get(ctx context.Context, productID string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Save(ctx context.Context, p *Product) error
	Delete(ctx context.Context, productID string) error

	// DecrementStock applies a negative delta to one stock counter as a
	// single relative update. It never reads the counter first, so two
	// concurrent checkouts cannot act on stale stock; the counter may go
	// negative instead.
	DecrementStock(ctx context.Context, db DB, productID, size string, qty int) error
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, productID string) (*Product, error) {
	var p Product
	row := r.db.QueryRow(ctx, `
		SELECT id, name, category, description, image, list_price, sale_price, sized, created_at
		FROM products WHERE id = $1
	`, productID)
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.Image,
		&p.ListPrice, &p.SalePrice, &p.Stock.Sized, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}

	if err := r.loadStock(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) loadStock(ctx context.Context, p *Product) error {
	rows, err := r.db.Query(ctx,
		`SELECT size, available FROM product_stock WHERE product_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("select stock: %w", err)
	}
	defer rows.Close()

	if p.Stock.Sized {
		p.Stock.Sizes = make(map[string]int, len(Sizes))
	}
	for rows.Next() {
		var size string
		var available int
		if err := rows.Scan(&size, &available); err != nil {
			return fmt.Errorf("scan stock: %w", err)
		}
		if p.Stock.Sized {
			p.Stock.Sizes[size] = available
		} else {
			p.Stock.Units = available
		}
	}
	return rows.Err()
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, category, description, image, list_price, sale_price, sized, created_at
		FROM products ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.Image,
			&p.ListPrice, &p.SalePrice, &p.Stock.Sized, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range products {
		if err := r.loadStock(ctx, &products[i]); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// Save upserts the product record and overwrites its stock counters with
// the supplied values. Used by inventory administration, not by checkout.
func (r *PostgresRepository) Save(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, category, description, image, list_price, sale_price, sized)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			list_price = EXCLUDED.list_price,
			sale_price = EXCLUDED.sale_price,
			sized = EXCLUDED.sized
	`, p.ID, p.Name, p.Category, p.Description, p.Image, p.ListPrice, p.SalePrice, p.Stock.Sized)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	if _, err := r.db.Exec(ctx,
		`DELETE FROM product_stock WHERE product_id = $1`, p.ID); err != nil {
		return fmt.Errorf("reset stock: %w", err)
	}

	counters := map[string]int{"": p.Stock.Units}
	if p.Stock.Sized {
		counters = make(map[string]int, len(Sizes))
		for _, size := range Sizes {
			counters[size] = p.Stock.Sizes[size]
		}
	}
	for size, available := range counters {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO product_stock (product_id, size, available)
			VALUES ($1, $2, $3)
		`, p.ID, size, available); err != nil {
			return fmt.Errorf("insert stock: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, productID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DecrementStock(ctx context.Context, db DB, productID, size string, qty int) error {
	tag, err := db.Exec(ctx, `
		UPDATE product_stock
		SET available = available - $3, updated_at = now()
		WHERE product_id = $1 AND size = $2
	`, productID, size, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("decrement stock %s/%q: %w", productID, size, ErrNotFound)
	}
	return nil
}
