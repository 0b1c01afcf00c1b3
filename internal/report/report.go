package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
)

const (
	kardexSheet = "Kardex"
	stockSheet  = "Stock"
)

// Kardex renders the movement history of one lot with a running balance.
func Kardex(it catalog.Item, lot inventory.Lot, moves []inventory.Movement) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), kardexSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(kardexSheet, "A1", "Item")
	_ = f.SetCellValue(kardexSheet, "B1", it.Name)
	_ = f.SetCellValue(kardexSheet, "A2", "Lot")
	_ = f.SetCellValue(kardexSheet, "B2", lot.Code)
	_ = f.SetCellValue(kardexSheet, "A3", "Expiry")
	_ = f.SetCellValue(kardexSheet, "B3", lot.ExpiryDate.Format(time.DateOnly))
	_ = f.SetCellValue(kardexSheet, "A4", "On hand")
	_ = f.SetCellValue(kardexSheet, "B4", lot.QtyOnHand)

	header := []any{"Date", "Type", "Reference", "In", "Out", "Balance", "Actor", "Note"}
	if err := f.SetSheetRow(kardexSheet, "A6", &header); err != nil {
		return nil, fmt.Errorf("kardex header: %w", err)
	}

	var balance int64
	for i, m := range moves {
		balance += m.Qty
		var in, out any
		if m.Qty > 0 {
			in = m.Qty
		} else {
			out = -m.Qty
		}
		row := []any{
			m.CreatedAt.Format("2006-01-02 15:04"),
			string(m.Type),
			m.Reference,
			in,
			out,
			balance,
			m.ActorID,
			m.Note,
		}
		cell, err := excelize.CoordinatesToCellName(1, 7+i)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(kardexSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("kardex row %d: %w", i+1, err)
		}
	}
	_ = f.SetColWidth(kardexSheet, "A", "A", 18)
	_ = f.SetColWidth(kardexSheet, "C", "C", 16)
	_ = f.SetColWidth(kardexSheet, "H", "H", 30)

	return write(f)
}

// StockRow is one lot line of the stock sheet.
type StockRow struct {
	ItemID     int64
	ItemName   string
	LotID      int64
	LotCode    string
	ExpiryDate time.Time
	QtyOnHand  int64
}

// StockRows joins lots with their item names, keeping the lots' order.
func StockRows(items map[int64]catalog.Item, lots []inventory.Lot) []StockRow {
	out := make([]StockRow, 0, len(lots))
	for _, l := range lots {
		out = append(out, StockRow{
			ItemID:     l.ItemID,
			ItemName:   items[l.ItemID].Name,
			LotID:      l.ID,
			LotCode:    l.Code,
			ExpiryDate: l.ExpiryDate,
			QtyOnHand:  l.QtyOnHand,
		})
	}
	return out
}

type ItemReader interface {
	Item(ctx context.Context, id int64) (*catalog.Item, error)
}

// StockSheet looks up the item of every lot and renders the stock sheet.
func StockSheet(ctx context.Context, lots []inventory.Lot, items ItemReader) ([]byte, error) {
	byID := map[int64]catalog.Item{}
	for _, l := range lots {
		if _, ok := byID[l.ItemID]; ok {
			continue
		}
		it, err := items.Item(ctx, l.ItemID)
		if err != nil {
			return nil, fmt.Errorf("lot %d: %w", l.ID, err)
		}
		byID[l.ItemID] = *it
	}
	return Stock(StockRows(byID, lots))
}

var stockHeader = []any{"lot_id", "item_id", "item", "lot", "expiry", "on_hand", "counted"}

// Stock renders stock by lot. The last column is left empty for a physical
// count that ReadCounts reads back.
func Stock(rows []StockRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), stockSheet); err != nil {
		return nil, err
	}
	header := stockHeader
	if err := f.SetSheetRow(stockSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("stock header: %w", err)
	}
	for i, r := range rows {
		row := []any{r.LotID, r.ItemID, r.ItemName, r.LotCode, r.ExpiryDate.Format(time.DateOnly), r.QtyOnHand, ""}
		cell, err := excelize.CoordinatesToCellName(1, 2+i)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(stockSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("stock row %d: %w", i+1, err)
		}
	}
	_ = f.SetColWidth(stockSheet, "C", "C", 32)
	return write(f)
}

// Count is a counted quantity for a lot read from a filled stock sheet.
type Count struct {
	LotID   int64
	Counted int64
}

// ReadCounts reads the counted column of a stock sheet. Rows with an empty
// count are skipped.
func ReadCounts(r io.Reader) ([]Count, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errs.Invalid("file", "is not a readable xlsx")
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.Invalid("file", "is empty")
	}

	var out []Count
	for i, row := range rows[1:] {
		if len(row) < len(stockHeader) || strings.TrimSpace(row[6]) == "" {
			continue
		}
		lotID, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			return nil, errs.Invalid(fmt.Sprintf("row %d lot_id", i+2), "must be a number")
		}
		counted, err := strconv.ParseInt(strings.TrimSpace(row[6]), 10, 64)
		if err != nil || counted < 0 {
			return nil, errs.Invalid(fmt.Sprintf("row %d counted", i+2), "must be a non-negative whole number")
		}
		out = append(out, Count{LotID: lotID, Counted: counted})
	}
	return out, nil
}

func write(f *excelize.File) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
