package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a catalog item snapshotted when it was first added
type CartLine struct {
	CatalogItem
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

// LineTotal is price times quantity, zero for a line without a price
func (l CartLine) LineTotal() decimal.Decimal {
	if l.Price == nil {
		return decimal.Zero
	}
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartState is the persisted form of a cart
type CartState struct {
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CheckoutValidation struct {
	IsValid          bool            `json:"is_valid"`
	ValidItems       []CartLine      `json:"valid_items"`
	UnavailableItems []CartLine      `json:"unavailable_items"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalItems       int             `json:"total_items"`
}
