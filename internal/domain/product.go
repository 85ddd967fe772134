package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discount_percent"`
	Stock           int             `json:"stock"`
}

// UnitPrice is the price after discount, clamped to [0, price] and rounded
// to cents. It is the value frozen onto order items.
func (p Product) UnitPrice() decimal.Decimal {
	if !p.Price.IsPositive() {
		return decimal.Zero
	}

	pct := min(max(p.DiscountPercent, 0), 100)
	if pct == 0 {
		return p.Price
	}

	factor := hundred.Sub(decimal.NewFromInt(int64(pct))).Div(hundred)
	return decimal.Max(decimal.Zero, p.Price.Mul(factor)).Round(2)
}

// CanFulfil checks a requested quantity against the current stock count.
func (p Product) CanFulfil(quantity int) error {
	if quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "quantity must be at least 1"}
	}
	if p.Stock <= 0 {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("product %s is out of stock", p.Name)}
	}
	if quantity > p.Stock {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("quantity for %s exceeds stock (%d)", p.Name, p.Stock)}
	}
	return nil
}

// ClampedDecrement is the stock left after selling quantity units. It never
// goes below zero even if the count was already inconsistent.
func ClampedDecrement(stock, quantity int) int {
	return max(0, stock-quantity)
}

type CartEntry struct {
	UserID    string `json:"user_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
}
