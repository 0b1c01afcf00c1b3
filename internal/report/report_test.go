package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
)

func TestKardex(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	lot := inventory.Lot{ID: 4, Code: "A77", ExpiryDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), QtyOnHand: 85}
	moves := []inventory.Movement{
		{LotID: 4, Type: inventory.MovePurchaseReceipt, Qty: 100, Reference: "PO-1", CreatedAt: at},
		{LotID: 4, Type: inventory.MoveSaleIssue, Qty: -20, Reference: "SALE-3", CreatedAt: at.Add(time.Hour)},
		{LotID: 4, Type: inventory.MoveReturn, Qty: 5, Reference: "SALE-3", CreatedAt: at.Add(2 * time.Hour), Note: "unopened"},
	}

	data, err := Kardex(catalog.Item{Name: "Losartan 50mg"}, lot, moves)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(kardexSheet)
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, "Losartan 50mg", rows[0][1])
	assert.Equal(t, "2025-06-30", rows[2][1])
	assert.Equal(t, []string{"2024-03-01 09:30", "purchase_receipt", "PO-1", "100", "", "100", "0"}, rows[6])
	assert.Equal(t, "20", rows[7][4])
	assert.Equal(t, "80", rows[7][5])
	assert.Equal(t, "85", rows[8][5])
	assert.Equal(t, "unopened", rows[8][7])
}

func TestStockSheetRoundTripsCounts(t *testing.T) {
	items := map[int64]catalog.Item{1: {ID: 1, Name: "Omeprazol"}, 2: {ID: 2, Name: "Loratadina"}}
	lots := []inventory.Lot{
		{ID: 10, ItemID: 1, Code: "O1", ExpiryDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), QtyOnHand: 30},
		{ID: 11, ItemID: 2, Code: "L1", ExpiryDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), QtyOnHand: 12},
	}
	rows := StockRows(items, lots)
	require.Len(t, rows, 2)
	assert.Equal(t, "Loratadina", rows[1].ItemName)

	data, err := Stock(rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(stockSheet, "G3", 9))
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	_ = f.Close()

	counts, err := ReadCounts(buf)
	require.NoError(t, err)
	assert.Equal(t, []Count{{LotID: 11, Counted: 9}}, counts)
}

func TestReadCounts_Rejects(t *testing.T) {
	_, err := ReadCounts(bytes.NewReader([]byte("not a workbook")))
	assert.ErrorIs(t, err, errs.ErrValidation)

	data, err := Stock([]StockRow{{LotID: 1, ItemID: 1, ItemName: "X", LotCode: "X1"}})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(stockSheet, "G2", "a dozen"))
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	_ = f.Close()

	_, err = ReadCounts(buf)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "row 2 counted", ve.Field)
}
