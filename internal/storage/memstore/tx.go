package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/purchasing"
	"github.com/Spok95/pharmacy-ledger/internal/domain/sales"
)

// tx implements every domain Tx on the tables it was handed. The caller
// holds the store lock.
type tx struct {
	st  *state
	now func() time.Time
}

var (
	_ catalog.Tx    = (*tx)(nil)
	_ inventory.Tx  = (*tx)(nil)
	_ purchasing.Tx = (*tx)(nil)
	_ sales.Tx      = (*tx)(nil)
)

func sortLots(lots []inventory.Lot) {
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].ExpiryDate.Equal(lots[j].ExpiryDate) {
			return lots[i].ExpiryDate.Before(lots[j].ExpiryDate)
		}
		return lots[i].ID < lots[j].ID
	})
}

// catalog

func (t *tx) Item(_ context.Context, id int64) (*catalog.Item, error) {
	it, ok := t.st.items[id]
	if !ok {
		return nil, errs.NotFound("item", id)
	}
	return &it, nil
}

func (t *tx) ItemsByProduct(_ context.Context, productID int64) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, it := range t.st.items {
		if it.ProductID == productID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) ListItems(_ context.Context, onlyActive bool) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, it := range t.st.items {
		if onlyActive && !it.Active {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) InsertItem(_ context.Context, it *catalog.Item) error {
	if _, ok := t.st.products[it.ProductID]; !ok {
		return errs.NotFound("product", it.ProductID)
	}
	for _, other := range t.st.items {
		if other.ProductID == it.ProductID && other.Name == it.Name {
			return fmt.Errorf("item %q already exists for product %d", it.Name, it.ProductID)
		}
	}
	it.ID = t.st.next("items")
	it.CreatedAt = t.now()
	t.st.items[it.ID] = *it
	return nil
}

func (t *tx) UpdateItem(_ context.Context, it catalog.Item) error {
	cur, ok := t.st.items[it.ID]
	if !ok {
		return errs.NotFound("item", it.ID)
	}
	it.ProductID = cur.ProductID
	it.CreatedAt = cur.CreatedAt
	t.st.items[it.ID] = it
	return nil
}

func (t *tx) DeleteItem(_ context.Context, id int64) error {
	delete(t.st.items, id)
	return nil
}

func (t *tx) ItemHasLots(_ context.Context, id int64) (bool, error) {
	for _, l := range t.st.lots {
		if l.ItemID == id {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CreateProduct(_ context.Context, name string) (*catalog.Product, error) {
	p := catalog.Product{ID: t.st.next("products"), Name: name, Active: true, CreatedAt: t.now()}
	t.st.products[p.ID] = p
	return &p, nil
}

// inventory

func (t *tx) Lot(_ context.Context, lotID int64) (*inventory.Lot, error) {
	l, ok := t.st.lots[lotID]
	if !ok {
		return nil, errs.NotFound("lot", lotID)
	}
	return &l, nil
}

func (t *tx) LotForUpdate(ctx context.Context, lotID int64) (*inventory.Lot, error) {
	return t.Lot(ctx, lotID)
}

func (t *tx) FindLot(_ context.Context, itemID int64, code string) (*inventory.Lot, error) {
	for _, l := range t.st.lots {
		if l.ItemID == itemID && l.Code == code {
			return &l, nil
		}
	}
	return nil, nil
}

func (t *tx) InsertLot(_ context.Context, l *inventory.Lot) error {
	if _, ok := t.st.items[l.ItemID]; !ok {
		return errs.NotFound("item", l.ItemID)
	}
	for _, other := range t.st.lots {
		if other.ItemID == l.ItemID && other.Code == l.Code {
			return fmt.Errorf("lot %q already exists for item %d", l.Code, l.ItemID)
		}
	}
	l.ID = t.st.next("lots")
	l.QtyOnHand = 0
	if l.ReceivedAt.IsZero() {
		l.ReceivedAt = t.now()
	}
	t.st.lots[l.ID] = *l
	return nil
}

func (t *tx) AddLotQty(_ context.Context, lotID int64, delta int64) error {
	l, ok := t.st.lots[lotID]
	if !ok {
		return errs.NotFound("lot", lotID)
	}
	if l.QtyOnHand+delta < 0 {
		return fmt.Errorf("lot %d: qty_on_hand would become %d", lotID, l.QtyOnHand+delta)
	}
	l.QtyOnHand += delta
	t.st.lots[lotID] = l
	return nil
}

func (t *tx) InsertMovement(_ context.Context, m *inventory.Movement) error {
	if m.Qty == 0 {
		return fmt.Errorf("movement quantity must not be zero")
	}
	if _, ok := t.st.lots[m.LotID]; !ok {
		return errs.NotFound("lot", m.LotID)
	}
	m.ID = t.st.next("movements")
	m.CreatedAt = t.now()
	t.st.movements = append(t.st.movements, *m)
	return nil
}

func (t *tx) ExpiredLotsForUpdate(_ context.Context, today time.Time) ([]inventory.Lot, error) {
	day := inventory.Day(today)
	var out []inventory.Lot
	for _, l := range t.st.lots {
		if l.QtyOnHand > 0 && l.ExpiryDate.Before(day) {
			out = append(out, l)
		}
	}
	sortLots(out)
	return out, nil
}

func (t *tx) AvailableLots(_ context.Context, itemID int64, today time.Time) ([]inventory.Lot, error) {
	day := inventory.Day(today)
	var out []inventory.Lot
	for _, l := range t.st.lots {
		if l.ItemID == itemID && l.QtyOnHand > 0 && !l.ExpiryDate.Before(day) {
			out = append(out, l)
		}
	}
	sortLots(out)
	return out, nil
}

func (t *tx) ExpiringLots(_ context.Context, today, until time.Time) ([]inventory.Lot, error) {
	from, to := inventory.Day(today), inventory.Day(until)
	var out []inventory.Lot
	for _, l := range t.st.lots {
		if l.QtyOnHand > 0 && !l.ExpiryDate.Before(from) && !l.ExpiryDate.After(to) {
			out = append(out, l)
		}
	}
	sortLots(out)
	return out, nil
}

func (t *tx) OnHandLots(_ context.Context) ([]inventory.Lot, error) {
	var out []inventory.Lot
	for _, l := range t.st.lots {
		if l.QtyOnHand > 0 {
			out = append(out, l)
		}
	}
	sortLots(out)
	return out, nil
}

func (t *tx) Movements(_ context.Context, lotID int64) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, m := range t.st.movements {
		if m.LotID == lotID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *tx) MovementSum(_ context.Context, lotID int64) (int64, error) {
	var sum int64
	for _, m := range t.st.movements {
		if m.LotID == lotID {
			sum += m.Qty
		}
	}
	return sum, nil
}

func (t *tx) StockLevels(_ context.Context) ([]inventory.StockLevel, error) {
	var out []inventory.StockLevel
	for _, it := range t.st.items {
		if !it.Active {
			continue
		}
		s := inventory.StockLevel{ItemID: it.ID, ItemName: it.Name, ReorderThreshold: it.ReorderThreshold}
		for _, l := range t.st.lots {
			if l.ItemID == it.ID {
				s.QtyOnHand += l.QtyOnHand
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemName != out[j].ItemName {
			return out[i].ItemName < out[j].ItemName
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

// purchasing

func (t *tx) Order(_ context.Context, id int64) (*purchasing.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, errs.NotFound("purchase order", id)
	}
	o.Lines = nil
	for _, l := range t.st.orderLines {
		if l.OrderID == id {
			o.Lines = append(o.Lines, l)
		}
	}
	sort.Slice(o.Lines, func(i, j int) bool { return o.Lines[i].ID < o.Lines[j].ID })
	return &o, nil
}

func (t *tx) OrderForUpdate(ctx context.Context, id int64) (*purchasing.Order, error) {
	return t.Order(ctx, id)
}

func (t *tx) InsertOrder(_ context.Context, o *purchasing.Order) error {
	o.ID = t.st.next("orders")
	o.CreatedAt = t.now()
	hdr := *o
	hdr.Lines = nil
	t.st.orders[o.ID] = hdr
	return nil
}

func (t *tx) InsertOrderLine(_ context.Context, l *purchasing.OrderLine) error {
	if _, ok := t.st.orders[l.OrderID]; !ok {
		return errs.NotFound("purchase order", l.OrderID)
	}
	for _, other := range t.st.orderLines {
		if other.OrderID == l.OrderID && other.ItemID == l.ItemID {
			return fmt.Errorf("order %d already has a line for item %d", l.OrderID, l.ItemID)
		}
	}
	l.ID = t.st.next("order_lines")
	t.st.orderLines[l.ID] = *l
	return nil
}

func (t *tx) UpdateOrderLine(_ context.Context, l purchasing.OrderLine) error {
	cur, ok := t.st.orderLines[l.ID]
	if !ok {
		return errs.NotFound("order line", l.ID)
	}
	cur.QuantityBoxes = l.QuantityBoxes
	cur.UnitPriceBox = l.UnitPriceBox
	t.st.orderLines[l.ID] = cur
	return nil
}

func (t *tx) DeleteOrderLine(_ context.Context, id int64) error {
	delete(t.st.orderLines, id)
	return nil
}

func (t *tx) SetOrderTotal(_ context.Context, id int64, total decimal.Decimal) error {
	o, ok := t.st.orders[id]
	if !ok {
		return errs.NotFound("purchase order", id)
	}
	o.Total = total
	t.st.orders[id] = o
	return nil
}

func (t *tx) MarkReceived(_ context.Context, id int64, at time.Time) error {
	o, ok := t.st.orders[id]
	if !ok {
		return errs.NotFound("purchase order", id)
	}
	if o.Status != purchasing.StatusPending {
		return errs.Invalid("status", "order is no longer pending")
	}
	o.Status = purchasing.StatusReceived
	o.ReceivedAt = &at
	t.st.orders[id] = o
	return nil
}

func (t *tx) InsertReceipt(_ context.Context, r *purchasing.Receipt) error {
	if _, ok := t.st.lots[r.LotID]; !ok {
		return errs.NotFound("lot", r.LotID)
	}
	r.ID = t.st.next("receipts")
	r.CreatedAt = t.now()
	t.st.receipts = append(t.st.receipts, *r)
	return nil
}

func (t *tx) Receipts(_ context.Context, orderID int64) ([]purchasing.Receipt, error) {
	var out []purchasing.Receipt
	for _, r := range t.st.receipts {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

// sales

func (t *tx) Sale(_ context.Context, id int64) (*sales.Sale, error) {
	s, ok := t.st.sales[id]
	if !ok {
		return nil, errs.NotFound("sale", id)
	}
	s.Lines = nil
	for _, l := range t.st.saleLines {
		if l.SaleID == id {
			s.Lines = append(s.Lines, l)
		}
	}
	return &s, nil
}

func (t *tx) SaleForUpdate(ctx context.Context, id int64) (*sales.Sale, error) {
	return t.Sale(ctx, id)
}

func (t *tx) InsertSale(_ context.Context, s *sales.Sale) error {
	if s.CustomerID != nil {
		if _, ok := t.st.customers[*s.CustomerID]; !ok {
			return errs.NotFound("customer", *s.CustomerID)
		}
	}
	s.ID = t.st.next("sales")
	s.CreatedAt = t.now()
	hdr := *s
	hdr.Lines = nil
	t.st.sales[s.ID] = hdr
	return nil
}

func (t *tx) InsertSaleLine(_ context.Context, l *sales.SaleLine) error {
	if _, ok := t.st.sales[l.SaleID]; !ok {
		return errs.NotFound("sale", l.SaleID)
	}
	l.ID = t.st.next("sale_lines")
	t.st.saleLines = append(t.st.saleLines, *l)
	return nil
}

func (t *tx) NextSequential(_ context.Context, establishment, emissionPoint, docType string) (int64, error) {
	key := establishment + "-" + emissionPoint + "-" + docType
	t.st.sequences[key]++
	return t.st.sequences[key], nil
}

func (t *tx) FinalizeSale(_ context.Context, s sales.Sale) error {
	cur, ok := t.st.sales[s.ID]
	if !ok {
		return errs.NotFound("sale", s.ID)
	}
	if cur.Status != sales.StatusOpen {
		return errs.Invalid("status", "sale is already finalized")
	}
	for _, other := range t.st.sales {
		if other.AccessKey != "" && other.AccessKey == s.AccessKey {
			return fmt.Errorf("access key %s already issued to sale %d", s.AccessKey, other.ID)
		}
	}
	cur.Status = sales.StatusFinalized
	cur.Sequential = s.Sequential
	cur.AccessKey = s.AccessKey
	cur.IssuedAt = s.IssuedAt
	cur.Subtotal, cur.Tax, cur.Total = s.Subtotal, s.Tax, s.Total
	t.st.sales[s.ID] = cur
	return nil
}

func (t *tx) Customer(_ context.Context, id int64) (*sales.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return nil, errs.NotFound("customer", id)
	}
	return &c, nil
}

func (t *tx) InsertCustomer(_ context.Context, c *sales.Customer) error {
	c.ID = t.st.next("customers")
	t.st.customers[c.ID] = *c
	return nil
}
