package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Item is a sellable presentation of a product, e.g. "box of 100 tablets".
// Stock is always counted in base units; UnitsPerBox converts purchase packs.
type Item struct {
	ID               int64
	ProductID        int64
	Name             string
	BaseUnit         string
	UnitsPerBox      int64
	PurchasePrice    decimal.Decimal
	SalePrice        decimal.Decimal
	ReorderThreshold int64
	ShelfLifeMonths  int
	TaxRate          decimal.Decimal // IVA percent, e.g. 15
	Active           bool
	CreatedAt        time.Time
}

// SuggestExpiry proposes an expiry date for goods received at receivedAt.
// The zero time means the item has no default shelf life.
func (it Item) SuggestExpiry(receivedAt time.Time) time.Time {
	if it.ShelfLifeMonths <= 0 {
		return time.Time{}
	}
	y, m, d := receivedAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, it.ShelfLifeMonths, 0)
}

func (it Item) sameAs(o Item) bool {
	return it.Name == o.Name &&
		it.BaseUnit == o.BaseUnit &&
		it.UnitsPerBox == o.UnitsPerBox &&
		it.PurchasePrice.Equal(o.PurchasePrice) &&
		it.SalePrice.Equal(o.SalePrice) &&
		it.ReorderThreshold == o.ReorderThreshold &&
		it.ShelfLifeMonths == o.ShelfLifeMonths &&
		it.TaxRate.Equal(o.TaxRate) &&
		it.Active == o.Active
}
