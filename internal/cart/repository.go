package cart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Repository persists the account-bound cart, one row per line. Every
// bound-scope mutation writes through here synchronously.
type Repository interface {
	LinesFor(ctx context.Context, accountID string) (map[string]Line, error)
	UpsertLine(ctx context.Context, accountID string, line Line) error
	DeleteLine(ctx context.Context, accountID, lineID string) error
	Clear(ctx context.Context, accountID string) error

	// ClearTx removes the account's lines inside a caller-owned
	// transaction; the order committer bundles it into the checkout batch.
	ClearTx(ctx context.Context, db DB, accountID string) error
}

type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LinesFor(ctx context.Context, accountID string) (map[string]Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT line_id, product_id, name, size, quantity, unit_price
		FROM cart_lines WHERE account_id = $1
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[string]Line)
	for rows.Next() {
		var lineID string
		var l Line
		if err := rows.Scan(&lineID, &l.ProductID, &l.Name, &l.Size, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines[lineID] = l
	}
	return lines, rows.Err()
}

func (r *PostgresRepository) UpsertLine(ctx context.Context, accountID string, line Line) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cart_lines (account_id, line_id, product_id, name, size, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, line_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			unit_price = EXCLUDED.unit_price,
			updated_at = now()
	`, accountID, line.ID(), line.ProductID, line.Name, line.Size, line.Quantity, line.UnitPrice)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteLine(ctx context.Context, accountID, lineID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM cart_lines WHERE account_id = $1 AND line_id = $2`, accountID, lineID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Clear(ctx context.Context, accountID string) error {
	return r.ClearTx(ctx, r.db, accountID)
}

func (r *PostgresRepository) ClearTx(ctx context.Context, db DB, accountID string) error {
	_, err := db.Exec(ctx, `DELETE FROM cart_lines WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
