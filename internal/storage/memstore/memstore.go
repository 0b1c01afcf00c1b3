// Package memstore keeps the catalog, ledger, purchasing and sales tables in
// memory. Atomic units run under one lock against the live tables and
// restore a snapshot when they fail, so a rejected operation leaves no
// trace. It backs the service and handler tests.
package memstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/purchasing"
	"github.com/Spok95/pharmacy-ledger/internal/domain/sales"
)

type state struct {
	seq        map[string]int64
	products   map[int64]catalog.Product
	items      map[int64]catalog.Item
	lots       map[int64]inventory.Lot
	movements  []inventory.Movement
	orders     map[int64]purchasing.Order
	orderLines map[int64]purchasing.OrderLine
	receipts   []purchasing.Receipt
	customers  map[int64]sales.Customer
	sales      map[int64]sales.Sale
	saleLines  []sales.SaleLine
	sequences  map[string]int64
}

func newState() *state {
	return &state{
		seq:        map[string]int64{},
		products:   map[int64]catalog.Product{},
		items:      map[int64]catalog.Item{},
		lots:       map[int64]inventory.Lot{},
		orders:     map[int64]purchasing.Order{},
		orderLines: map[int64]purchasing.OrderLine{},
		customers:  map[int64]sales.Customer{},
		sales:      map[int64]sales.Sale{},
		sequences:  map[string]int64{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:        copyMap(s.seq),
		products:   copyMap(s.products),
		items:      copyMap(s.items),
		lots:       copyMap(s.lots),
		movements:  append([]inventory.Movement(nil), s.movements...),
		orders:     copyMap(s.orders),
		orderLines: copyMap(s.orderLines),
		receipts:   append([]purchasing.Receipt(nil), s.receipts...),
		customers:  copyMap(s.customers),
		sales:      copyMap(s.sales),
		saleLines:  append([]sales.SaleLine(nil), s.saleLines...),
		sequences:  copyMap(s.sequences),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) atomic(fn func(t *tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	if err := fn(&tx{st: s.st, now: s.now}); err != nil {
		s.st = snap
		return err
	}
	return nil
}

// view locks the store for a read outside any unit of work.
func (s *Store) view() (*tx, func()) {
	s.mu.Lock()
	return &tx{st: s.st, now: s.now}, s.mu.Unlock
}

func (s *Store) Catalog() *CatalogStore       { return &CatalogStore{s: s} }
func (s *Store) Inventory() *InventoryStore   { return &InventoryStore{s: s} }
func (s *Store) Purchasing() *PurchasingStore { return &PurchasingStore{s: s} }
func (s *Store) Sales() *SalesStore           { return &SalesStore{s: s} }

// AddProduct seeds a product.
func (s *Store) AddProduct(name string) catalog.Product {
	t, done := s.view()
	defer done()
	p := catalog.Product{ID: t.st.next("products"), Name: name, Active: true, CreatedAt: s.now()}
	t.st.products[p.ID] = p
	return p
}

// AddItem seeds an item, creating its product when ProductID is zero.
func (s *Store) AddItem(it catalog.Item) catalog.Item {
	if it.ProductID == 0 {
		it.ProductID = s.AddProduct(it.Name).ID
	}
	t, done := s.view()
	defer done()
	if it.UnitsPerBox == 0 {
		it.UnitsPerBox = 1
	}
	if it.BaseUnit == "" {
		it.BaseUnit = "unit"
	}
	it.ID = t.st.next("items")
	it.Active = true
	it.CreatedAt = s.now()
	t.st.items[it.ID] = it
	return it
}

// AddLot seeds a lot. A positive QtyOnHand is booked as an opening
// purchase_receipt movement so the ledger stays balanced.
func (s *Store) AddLot(l inventory.Lot) inventory.Lot {
	t, done := s.view()
	defer done()
	qty := l.QtyOnHand
	l.ID = t.st.next("lots")
	l.QtyOnHand = qty
	l.ExpiryDate = inventory.Day(l.ExpiryDate)
	if l.ReceivedAt.IsZero() {
		l.ReceivedAt = s.now()
	}
	t.st.lots[l.ID] = l
	if qty > 0 {
		t.st.movements = append(t.st.movements, inventory.Movement{
			ID:        t.st.next("movements"),
			LotID:     l.ID,
			Type:      inventory.MovePurchaseReceipt,
			Qty:       qty,
			Reference: "OPENING",
			CreatedAt: s.now(),
		})
	}
	return l
}

// SetLotQty overwrites a lot's cached quantity without a movement.
func (s *Store) SetLotQty(lotID, qty int64) error {
	t, done := s.view()
	defer done()
	l, ok := t.st.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %d not seeded", lotID)
	}
	l.QtyOnHand = qty
	t.st.lots[lotID] = l
	return nil
}

func (s *Store) Lots() []inventory.Lot {
	t, done := s.view()
	defer done()
	out := make([]inventory.Lot, 0, len(t.st.lots))
	for _, l := range t.st.lots {
		out = append(out, l)
	}
	sortLots(out)
	return out
}

func (s *Store) AllMovements() []inventory.Movement {
	t, done := s.view()
	defer done()
	return append([]inventory.Movement(nil), t.st.movements...)
}

func (s *Store) AllReceipts() []purchasing.Receipt {
	t, done := s.view()
	defer done()
	return append([]purchasing.Receipt(nil), t.st.receipts...)
}

func (s *Store) AllSaleLines() []sales.SaleLine {
	t, done := s.view()
	defer done()
	return append([]sales.SaleLine(nil), t.st.saleLines...)
}
