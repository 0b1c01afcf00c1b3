package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/purchasing"
	"github.com/Spok95/pharmacy-ledger/internal/storage/memstore"
)

var expiry = time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)

func TestAtomic_RollsBackOnError(t *testing.T) {
	ms := memstore.New()
	it := ms.AddItem(catalog.Item{Name: "Diclofenaco gel"})
	ctx := context.Background()
	boom := errors.New("boom")

	err := ms.Inventory().Atomic(ctx, func(tx inventory.Tx) error {
		lot := &inventory.Lot{ItemID: it.ID, Code: "D1", ExpiryDate: expiry, UnitCost: decimal.NewFromInt(2)}
		require.NoError(t, tx.InsertLot(ctx, lot))
		require.NoError(t, tx.AddLotQty(ctx, lot.ID, 12))
		require.NoError(t, tx.InsertMovement(ctx, &inventory.Movement{LotID: lot.ID, Type: inventory.MovePurchaseReceipt, Qty: 12}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, ms.Lots())
	assert.Empty(t, ms.AllMovements())

	err = ms.Inventory().Atomic(ctx, func(tx inventory.Tx) error {
		lot := &inventory.Lot{ItemID: it.ID, Code: "D1", ExpiryDate: expiry}
		if err := tx.InsertLot(ctx, lot); err != nil {
			return err
		}
		return tx.AddLotQty(ctx, lot.ID, 3)
	})
	require.NoError(t, err)
	require.Len(t, ms.Lots(), 1)
	assert.Equal(t, int64(3), ms.Lots()[0].QtyOnHand)
}

func TestTx_MirrorsTableConstraints(t *testing.T) {
	ms := memstore.New()
	it := ms.AddItem(catalog.Item{Name: "Cetirizina"})
	lot := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "C1", ExpiryDate: expiry, QtyOnHand: 2})
	ctx := context.Background()

	err := ms.Inventory().Atomic(ctx, func(tx inventory.Tx) error {
		return tx.InsertLot(ctx, &inventory.Lot{ItemID: it.ID, Code: "C1", ExpiryDate: expiry})
	})
	assert.ErrorContains(t, err, "already exists")

	err = ms.Inventory().Atomic(ctx, func(tx inventory.Tx) error {
		return tx.InsertLot(ctx, &inventory.Lot{ItemID: 404, Code: "X", ExpiryDate: expiry})
	})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = ms.Inventory().Atomic(ctx, func(tx inventory.Tx) error {
		return tx.AddLotQty(ctx, lot.ID, -3)
	})
	assert.ErrorContains(t, err, "would become -1")

	found, err := func() (*inventory.Lot, error) {
		var l *inventory.Lot
		err := ms.Inventory().Atomic(ctx, func(tx inventory.Tx) error {
			var err error
			l, err = tx.FindLot(ctx, it.ID, "nope")
			return err
		})
		return l, err
	}()
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.Equal(t, int64(2), ms.Lots()[0].QtyOnHand)
	require.Len(t, ms.AllMovements(), 1)
	assert.Equal(t, "OPENING", ms.AllMovements()[0].Reference)
}

func TestOnHandLots(t *testing.T) {
	ms := memstore.New()
	it := ms.AddItem(catalog.Item{Name: "Paracetamol 500mg"})
	late := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "P2", ExpiryDate: expiry.AddDate(1, 0, 0), QtyOnHand: 5})
	early := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "P1", ExpiryDate: expiry, QtyOnHand: 5})
	ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "P0", ExpiryDate: expiry, QtyOnHand: 0})

	lots, err := ms.Inventory().OnHandLots(context.Background())
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, early.ID, lots[0].ID)
	assert.Equal(t, late.ID, lots[1].ID)
}

func TestAtomic_RollsBackOrderLines(t *testing.T) {
	ms := memstore.New()
	it := ms.AddItem(catalog.Item{Name: "Loratadina", UnitsPerBox: 10})
	ctx := context.Background()

	var orderID int64
	err := ms.Purchasing().Atomic(ctx, func(tx purchasing.Tx) error {
		o := &purchasing.Order{Status: purchasing.StatusPending, Lines: []purchasing.OrderLine{{ItemID: it.ID}}}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		orderID = o.ID
		return tx.InsertOrderLine(ctx, &purchasing.OrderLine{OrderID: o.ID, ItemID: it.ID, QuantityBoxes: 2, UnitPriceBox: decimal.NewFromInt(1)})
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = ms.Purchasing().Atomic(ctx, func(tx purchasing.Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		l := o.Lines[0]
		l.QuantityBoxes = 9
		if err := tx.UpdateOrderLine(ctx, l); err != nil {
			return err
		}
		o.Lines[0].QuantityBoxes = 9
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = ms.Purchasing().Atomic(ctx, func(tx purchasing.Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		require.Len(t, o.Lines, 1)
		assert.Equal(t, int64(2), o.Lines[0].QuantityBoxes)
		return nil
	})
	require.NoError(t, err)
}
