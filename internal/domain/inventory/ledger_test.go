package inventory_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/storage/memstore"
)

var today = time.Date(2024, 4, 10, 15, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func newLedger(t *testing.T) (*memstore.Store, *inventory.Ledger) {
	t.Helper()
	ms := memstore.New()
	l := inventory.NewLedger(ms.Inventory(), slog.New(slog.NewTextHandler(io.Discard, nil)),
		inventory.WithClock(func() time.Time { return today }))
	return ms, l
}

func seedLot(ms *memstore.Store, qty int64, expiry time.Time) inventory.Lot {
	it := ms.AddItem(catalog.Item{Name: "Amoxicilina 500mg", UnitsPerBox: 20})
	return ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "L-" + expiry.Format("0102"), ExpiryDate: expiry, QtyOnHand: qty})
}

func assertBalanced(t *testing.T, l *inventory.Ledger, lotID int64) {
	t.Helper()
	r, err := l.Reconcile(context.Background(), lotID)
	require.NoError(t, err)
	assert.True(t, r.Balanced(), "cached %d, ledger %d", r.Cached, r.Ledger)
}

func TestApplyMovement_KeepsCacheInStepWithLedger(t *testing.T) {
	ms, l := newLedger(t)
	ctx := context.Background()
	lot := seedLot(ms, 40, date(2025, 1, 31))

	steps := []inventory.MovementInput{
		{LotID: lot.ID, Type: inventory.MoveSaleIssue, Qty: -15, Reference: "SALE-1"},
		{LotID: lot.ID, Type: inventory.MoveReturn, Qty: 2, Reference: "SALE-1"},
		{LotID: lot.ID, Type: inventory.MoveAdjustmentOut, Qty: -7, Reference: "ADJ"},
		{LotID: lot.ID, Type: inventory.MovePurchaseReceipt, Qty: 100, Reference: "PO-4"},
	}
	for _, in := range steps {
		_, err := l.Apply(ctx, in)
		require.NoError(t, err)
	}

	got, err := l.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.QtyOnHand)
	assertBalanced(t, l, lot.ID)

	moves, err := l.Movements(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, moves, 5)
	assert.Equal(t, "SALE-1", moves[1].Reference)
	assert.Equal(t, int64(-15), moves[1].Qty)
}

func TestApplyMovement_InsufficientStockLeavesNoTrace(t *testing.T) {
	ms, l := newLedger(t)
	ctx := context.Background()
	lot := seedLot(ms, 5, date(2025, 1, 31))
	before := len(ms.AllMovements())

	_, err := l.Apply(ctx, inventory.MovementInput{LotID: lot.ID, Type: inventory.MoveSaleIssue, Qty: -6})
	require.ErrorIs(t, err, errs.ErrInsufficientStock)

	var ise *errs.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, lot.ID, ise.LotID)
	assert.Equal(t, int64(5), ise.Available)
	assert.Equal(t, int64(6), ise.Requested)

	got, err := l.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.QtyOnHand)
	assert.Len(t, ms.AllMovements(), before)
}

func TestApplyMovement_RejectsQuantityOverflow(t *testing.T) {
	ms, l := newLedger(t)
	ctx := context.Background()
	lot := seedLot(ms, math.MaxInt64-5, date(2025, 1, 31))

	_, err := l.Apply(ctx, inventory.MovementInput{LotID: lot.ID, Type: inventory.MoveAdjustmentIn, Qty: 6})
	require.ErrorIs(t, err, errs.ErrValidation)
	got, err := l.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-5), got.QtyOnHand)

	_, err = l.Apply(ctx, inventory.MovementInput{LotID: lot.ID, Type: inventory.MoveAdjustmentIn, Qty: 5})
	require.NoError(t, err)
	got, err = l.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got.QtyOnHand)
}

func TestApplyMovement_DrainToZero(t *testing.T) {
	ms, l := newLedger(t)
	lot := seedLot(ms, 5, date(2025, 1, 31))

	_, err := l.Apply(context.Background(), inventory.MovementInput{LotID: lot.ID, Type: inventory.MoveSaleIssue, Qty: -5})
	require.NoError(t, err)

	got, err := l.Lot(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Zero(t, got.QtyOnHand)
	assertBalanced(t, l, lot.ID)
}

func TestApplyMovement_RejectsMalformedInput(t *testing.T) {
	ms, l := newLedger(t)
	lot := seedLot(ms, 10, date(2025, 1, 31))

	cases := []struct {
		name string
		in   inventory.MovementInput
	}{
		{name: "zero", in: inventory.MovementInput{LotID: lot.ID, Type: inventory.MoveAdjustmentIn, Qty: 0}},
		{name: "unknown type", in: inventory.MovementInput{LotID: lot.ID, Type: "gift", Qty: 1}},
		{name: "positive sale", in: inventory.MovementInput{LotID: lot.ID, Type: inventory.MoveSaleIssue, Qty: 3}},
		{name: "negative receipt", in: inventory.MovementInput{LotID: lot.ID, Type: inventory.MovePurchaseReceipt, Qty: -3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Apply(context.Background(), tc.in)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}

	_, err := l.Apply(context.Background(), inventory.MovementInput{LotID: 999, Type: inventory.MoveAdjustmentIn, Qty: 1})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assertBalanced(t, l, lot.ID)
}

func TestUpsertLot(t *testing.T) {
	ms, _ := newLedger(t)
	ctx := context.Background()
	it := ms.AddItem(catalog.Item{Name: "Losartán 50mg"})
	inv := ms.Inventory()

	spec := inventory.LotSpec{
		ItemID:     it.ID,
		Code:       " B2201 ",
		ExpiryDate: time.Date(2026, 2, 28, 18, 0, 0, 0, time.UTC),
		UnitCost:   decimal.RequireFromString("0.1250"),
	}

	var first, again *inventory.Lot
	require.NoError(t, inv.Atomic(ctx, func(tx inventory.Tx) error {
		var err error
		first, err = inventory.UpsertLot(ctx, tx, spec)
		return err
	}))
	assert.Equal(t, "B2201", first.Code)
	assert.Zero(t, first.QtyOnHand)
	assert.Equal(t, date(2026, 2, 28), first.ExpiryDate)

	spec.ExpiryDate = date(2027, 1, 1)
	spec.UnitCost = decimal.NewFromInt(9)
	require.NoError(t, inv.Atomic(ctx, func(tx inventory.Tx) error {
		var err error
		again, err = inventory.UpsertLot(ctx, tx, spec)
		return err
	}))
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, date(2026, 2, 28), again.ExpiryDate, "existing lot is returned unchanged")
	assert.True(t, again.UnitCost.Equal(first.UnitCost))
	assert.Len(t, ms.Lots(), 1)
	assert.Empty(t, ms.AllMovements())
}

func TestUpsertLot_Validation(t *testing.T) {
	ms, _ := newLedger(t)
	ctx := context.Background()
	it := ms.AddItem(catalog.Item{Name: "Omeprazol 20mg"})

	cases := map[string]inventory.LotSpec{
		"no code":   {ItemID: it.ID, ExpiryDate: date(2026, 1, 1)},
		"no expiry": {ItemID: it.ID, Code: "X1"},
		"no item":   {Code: "X1", ExpiryDate: date(2026, 1, 1)},
		"negative":  {ItemID: it.ID, Code: "X1", ExpiryDate: date(2026, 1, 1), UnitCost: decimal.NewFromInt(-1)},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			err := ms.Inventory().Atomic(ctx, func(tx inventory.Tx) error {
				_, err := inventory.UpsertLot(ctx, tx, spec)
				return err
			})
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
	assert.Empty(t, ms.Lots())
}

func TestAdjustAndReturn(t *testing.T) {
	ms, l := newLedger(t)
	ctx := context.Background()
	lot := seedLot(ms, 10, date(2025, 1, 31))

	m, err := l.Adjust(ctx, lot.ID, -4, 7, "broken blister")
	require.NoError(t, err)
	assert.Equal(t, inventory.MoveAdjustmentOut, m.Type)
	assert.Equal(t, fmt.Sprintf("ADJ-%d", lot.ID), m.Reference)
	assert.Equal(t, int64(7), m.ActorID)

	m, err = l.Adjust(ctx, lot.ID, 3, 7, "count")
	require.NoError(t, err)
	assert.Equal(t, inventory.MoveAdjustmentIn, m.Type)

	_, err = l.Adjust(ctx, lot.ID, -50, 7, "too much")
	assert.ErrorIs(t, err, errs.ErrInsufficientStock)

	m, err = l.Return(ctx, lot.ID, 2, "SALE-9", 7, "")
	require.NoError(t, err)
	assert.Equal(t, inventory.MoveReturn, m.Type)

	_, err = l.Return(ctx, lot.ID, 0, "SALE-9", 7, "")
	assert.ErrorIs(t, err, errs.ErrValidation)

	got, err := l.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.QtyOnHand)
	assertBalanced(t, l, lot.ID)
}

func TestCount(t *testing.T) {
	ms, l := newLedger(t)
	ctx := context.Background()
	lot := seedLot(ms, 10, date(2025, 1, 31))

	m, err := l.Count(ctx, lot.ID, 10, 1)
	require.NoError(t, err)
	assert.Nil(t, m, "matching count books nothing")

	m, err = l.Count(ctx, lot.ID, 6, 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, inventory.MoveAdjustmentOut, m.Type)
	assert.Equal(t, int64(-4), m.Qty)

	m, err = l.Count(ctx, lot.ID, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.Qty)

	_, err = l.Count(ctx, lot.ID, -1, 1)
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = l.Count(ctx, 404, 1, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	got, err := l.Lot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.QtyOnHand)
	assertBalanced(t, l, lot.ID)
}

func TestWriteOffExpired(t *testing.T) {
	ms, l := newLedger(t)
	ctx := context.Background()
	expired := seedLot(ms, 12, date(2024, 4, 9))
	expiresToday := seedLot(ms, 8, date(2024, 4, 10))
	empty := seedLot(ms, 0, date(2024, 1, 1))

	out, err := l.WriteOffExpired(ctx, 3)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, expired.ID, out[0].LotID)
	assert.Equal(t, int64(-12), out[0].Qty)
	assert.Equal(t, inventory.MoveExpiryWriteOff, out[0].Type)
	assert.Equal(t, "EXP-20240410", out[0].Reference)

	got, err := l.Lot(ctx, expired.ID)
	require.NoError(t, err)
	assert.Zero(t, got.QtyOnHand)
	assertBalanced(t, l, expired.ID)

	got, err = l.Lot(ctx, expiresToday.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.QtyOnHand)

	moves, err := l.Movements(ctx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, moves)

	again, err := l.WriteOffExpired(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	ms, l := newLedger(t)
	lot := seedLot(ms, 10, date(2025, 1, 31))
	require.NoError(t, ms.SetLotQty(lot.ID, 9))

	r, err := l.Reconcile(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.False(t, r.Balanced())
	assert.Equal(t, int64(9), r.Cached)
	assert.Equal(t, int64(10), r.Ledger)

	_, err = l.Reconcile(context.Background(), 404)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestExpiringLotsAndLowStock(t *testing.T) {
	ms, l := newLedger(t)
	ctx := context.Background()

	low := ms.AddItem(catalog.Item{Name: "Insulina", ReorderThreshold: 50})
	ok := ms.AddItem(catalog.Item{Name: "Gasas", ReorderThreshold: 10})
	ms.AddLot(inventory.Lot{ItemID: low.ID, Code: "I1", ExpiryDate: date(2024, 4, 20), QtyOnHand: 30})
	ms.AddLot(inventory.Lot{ItemID: ok.ID, Code: "G1", ExpiryDate: date(2024, 6, 1), QtyOnHand: 100})
	ms.AddLot(inventory.Lot{ItemID: ok.ID, Code: "G0", ExpiryDate: date(2024, 3, 1), QtyOnHand: 5})

	soon, err := l.ExpiringLots(ctx, 30)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, "I1", soon[0].Code)

	levels, err := l.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, low.ID, levels[0].ItemID)
	assert.Equal(t, int64(30), levels[0].QtyOnHand)
}

func TestApplyMovement_InterleavedIssuesNeverGoNegative(t *testing.T) {
	ms, l := newLedger(t)
	lot := seedLot(ms, 10, date(2025, 1, 31))

	var (
		wg       sync.WaitGroup
		ok, fail atomic.Int64
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Apply(context.Background(), inventory.MovementInput{LotID: lot.ID, Type: inventory.MoveSaleIssue, Qty: -1})
			if err != nil {
				assert.ErrorIs(t, err, errs.ErrInsufficientStock)
				fail.Add(1)
				return
			}
			ok.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok.Load())
	assert.Equal(t, int64(15), fail.Load())
	got, err := l.Lot(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Zero(t, got.QtyOnHand)
	assertBalanced(t, l, lot.ID)
}
