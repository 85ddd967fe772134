package cart

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/orderflow-checkout/internal/domain"
	"github.com/joao-fontenele/orderflow-checkout/internal/inventory"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.user_id, c.product_id, c.quantity,
		       p.id, p.name, p.price, p.discount_percent, p.stock
		FROM cart_entries c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.product_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.Entry.UserID, &l.Entry.ProductID, &l.Entry.Quantity,
			&l.Product.ID, &l.Product.Name, &l.Product.Price, &l.Product.DiscountPercent, &l.Product.Stock); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// Set puts quantity units of a product in the user's cart, replacing any
// previous quantity. A quantity of zero or less removes the entry.
func (r *CartRepository) Set(ctx context.Context, userID string, productID int64, quantity int) (*domain.CartEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	product, err := inventory.GetProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cart_entries WHERE user_id = $1 AND product_id = $2
		`, userID, productID); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	}

	if err := product.CanFulfil(quantity); err != nil {
		return nil, err
	}

	entry := &domain.CartEntry{UserID: userID, ProductID: productID, Quantity: quantity}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_entries (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`, entry.UserID, entry.ProductID, entry.Quantity)
	if err != nil {
		return nil, err
	}

	return entry, tx.Commit()
}

func (r *CartRepository) Remove(ctx context.Context, userID string, productID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_entries WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	return err
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_entries WHERE user_id = $1`, userID)
	return err
}
