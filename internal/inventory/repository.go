package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so ledger updates can
// join a caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, discount_percent, stock
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.DiscountPercent, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *InventoryRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return GetProduct(ctx, r.db, id)
}

func GetProduct(ctx context.Context, q Querier, id int64) (*domain.Product, error) {
	p := &domain.Product{}

	err := q.QueryRowContext(ctx, `
		SELECT id, name, price, discount_percent, stock
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.DiscountPercent, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}

	return p, nil
}

// DecrementClamped subtracts quantity from a product's stock, flooring at
// zero, and returns the stock left. The row lock taken by the UPDATE holds
// until the surrounding transaction ends. A product that no longer exists
// is reported as found=false rather than as an error, so a sold item whose
// product was removed does not block settlement.
func DecrementClamped(ctx context.Context, q Querier, productID int64, quantity int) (left int, found bool, err error) {
	err = q.QueryRowContext(ctx, `
		UPDATE products
		SET stock = GREATEST(0, stock - $2), updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`, productID, quantity).Scan(&left)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}

	return left, true, nil
}
