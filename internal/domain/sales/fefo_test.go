package sales_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/sales"
)

func TestPlanFEFO(t *testing.T) {
	lots := []inventory.Lot{
		{ID: 3, ItemID: 1, ExpiryDate: date(2024, 12, 1), QtyOnHand: 100},
		{ID: 1, ItemID: 1, ExpiryDate: date(2024, 6, 1), QtyOnHand: 5},
		{ID: 2, ItemID: 1, ExpiryDate: date(2024, 6, 1), QtyOnHand: 4},
		{ID: 4, ItemID: 1, ExpiryDate: date(2024, 3, 1), QtyOnHand: 50},
		{ID: 5, ItemID: 1, ExpiryDate: date(2024, 5, 1), QtyOnHand: 0},
	}

	cases := []struct {
		name string
		qty  int64
		want []sales.Pick
	}{
		{name: "fits first lot", qty: 5, want: []sales.Pick{{LotID: 1, Quantity: 5}}},
		{name: "tie broken by id", qty: 7, want: []sales.Pick{{LotID: 1, Quantity: 5}, {LotID: 2, Quantity: 2}}},
		{name: "spills into later lot", qty: 20, want: []sales.Pick{{LotID: 1, Quantity: 5}, {LotID: 2, Quantity: 4}, {LotID: 3, Quantity: 11}}},
		{name: "everything sellable", qty: 109, want: []sales.Pick{{LotID: 1, Quantity: 5}, {LotID: 2, Quantity: 4}, {LotID: 3, Quantity: 100}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			picks, err := sales.PlanFEFO(lots, tc.qty, now)
			require.NoError(t, err)
			require.Len(t, picks, len(tc.want))
			for i, p := range picks {
				assert.Equal(t, tc.want[i].LotID, p.LotID)
				assert.Equal(t, tc.want[i].Quantity, p.Quantity)
			}
		})
	}

	assert.Equal(t, int64(3), lots[0].ID, "input order is left alone")
}

func TestPlanFEFO_Shortfall(t *testing.T) {
	lots := []inventory.Lot{
		{ID: 1, ItemID: 8, ExpiryDate: date(2024, 6, 1), QtyOnHand: 5},
		{ID: 2, ItemID: 8, ExpiryDate: date(2024, 1, 1), QtyOnHand: 500},
	}
	_, err := sales.PlanFEFO(lots, 6, now)
	require.ErrorIs(t, err, errs.ErrInsufficientStock)
	var ise *errs.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(8), ise.ItemID)
	assert.Equal(t, int64(5), ise.Available, "expired stock does not count")

	_, err = sales.PlanFEFO(lots, 0, now)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = sales.PlanFEFO(nil, 1, now)
	assert.ErrorIs(t, err, errs.ErrInsufficientStock)
}
