package sales

import (
	"sort"
	"time"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
)

// Pick is one future sale line of a FEFO plan.
type Pick struct {
	LotID      int64
	Quantity   int64
	ExpiryDate time.Time
}

// SortFEFO orders lots by expiry, then by id.
func SortFEFO(lots []inventory.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		return a.ID < b.ID
	})
}

// PlanFEFO splits qty across lots, soonest expiry first. Expired and empty
// lots are skipped. The input slice is not modified.
func PlanFEFO(lots []inventory.Lot, qty int64, today time.Time) ([]Pick, error) {
	if qty <= 0 {
		return nil, errs.Invalid("quantity", "must be greater than 0")
	}
	sorted := append([]inventory.Lot(nil), lots...)
	SortFEFO(sorted)

	var (
		picks     []Pick
		remaining = qty
		available int64
		itemID    int64
	)
	for _, l := range sorted {
		itemID = l.ItemID
		if l.QtyOnHand <= 0 || l.ExpiredOn(today) {
			continue
		}
		available += l.QtyOnHand
		if remaining == 0 {
			continue
		}
		take := min(remaining, l.QtyOnHand)
		picks = append(picks, Pick{LotID: l.ID, Quantity: take, ExpiryDate: l.ExpiryDate})
		remaining -= take
	}
	if remaining > 0 {
		return nil, &errs.InsufficientStockError{ItemID: itemID, Available: available, Requested: qty}
	}
	return picks, nil
}
