package memstore

import (
	"context"
	"time"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/purchasing"
	"github.com/Spok95/pharmacy-ledger/internal/domain/sales"
)

var (
	_ catalog.Store    = (*CatalogStore)(nil)
	_ inventory.Store  = (*InventoryStore)(nil)
	_ purchasing.Store = (*PurchasingStore)(nil)
	_ sales.Store      = (*SalesStore)(nil)
)

type CatalogStore struct{ s *Store }

func (c *CatalogStore) Atomic(_ context.Context, fn func(catalog.Tx) error) error {
	return c.s.atomic(func(t *tx) error { return fn(t) })
}

func (c *CatalogStore) Item(ctx context.Context, id int64) (*catalog.Item, error) {
	t, done := c.s.view()
	defer done()
	return t.Item(ctx, id)
}

func (c *CatalogStore) ListItems(ctx context.Context, onlyActive bool) ([]catalog.Item, error) {
	t, done := c.s.view()
	defer done()
	return t.ListItems(ctx, onlyActive)
}

func (c *CatalogStore) CreateProduct(ctx context.Context, name string) (*catalog.Product, error) {
	t, done := c.s.view()
	defer done()
	return t.CreateProduct(ctx, name)
}

type InventoryStore struct{ s *Store }

func (i *InventoryStore) Atomic(_ context.Context, fn func(inventory.Tx) error) error {
	return i.s.atomic(func(t *tx) error { return fn(t) })
}

func (i *InventoryStore) Lot(ctx context.Context, lotID int64) (*inventory.Lot, error) {
	t, done := i.s.view()
	defer done()
	return t.Lot(ctx, lotID)
}

func (i *InventoryStore) AvailableLots(ctx context.Context, itemID int64, today time.Time) ([]inventory.Lot, error) {
	t, done := i.s.view()
	defer done()
	return t.AvailableLots(ctx, itemID, today)
}

func (i *InventoryStore) Movements(ctx context.Context, lotID int64) ([]inventory.Movement, error) {
	t, done := i.s.view()
	defer done()
	return t.Movements(ctx, lotID)
}

func (i *InventoryStore) MovementSum(ctx context.Context, lotID int64) (int64, error) {
	t, done := i.s.view()
	defer done()
	return t.MovementSum(ctx, lotID)
}

func (i *InventoryStore) ExpiringLots(ctx context.Context, today, until time.Time) ([]inventory.Lot, error) {
	t, done := i.s.view()
	defer done()
	return t.ExpiringLots(ctx, today, until)
}

func (i *InventoryStore) OnHandLots(ctx context.Context) ([]inventory.Lot, error) {
	t, done := i.s.view()
	defer done()
	return t.OnHandLots(ctx)
}

func (i *InventoryStore) StockLevels(ctx context.Context) ([]inventory.StockLevel, error) {
	t, done := i.s.view()
	defer done()
	return t.StockLevels(ctx)
}

type PurchasingStore struct{ s *Store }

func (p *PurchasingStore) Atomic(_ context.Context, fn func(purchasing.Tx) error) error {
	return p.s.atomic(func(t *tx) error { return fn(t) })
}

func (p *PurchasingStore) Item(ctx context.Context, id int64) (*catalog.Item, error) {
	t, done := p.s.view()
	defer done()
	return t.Item(ctx, id)
}

func (p *PurchasingStore) Order(ctx context.Context, id int64) (*purchasing.Order, error) {
	t, done := p.s.view()
	defer done()
	return t.Order(ctx, id)
}

func (p *PurchasingStore) Receipts(ctx context.Context, orderID int64) ([]purchasing.Receipt, error) {
	t, done := p.s.view()
	defer done()
	return t.Receipts(ctx, orderID)
}

type SalesStore struct{ s *Store }

func (ss *SalesStore) Atomic(_ context.Context, fn func(sales.Tx) error) error {
	return ss.s.atomic(func(t *tx) error { return fn(t) })
}

func (ss *SalesStore) AvailableLots(ctx context.Context, itemID int64, today time.Time) ([]inventory.Lot, error) {
	t, done := ss.s.view()
	defer done()
	return t.AvailableLots(ctx, itemID, today)
}

func (ss *SalesStore) Sale(ctx context.Context, id int64) (*sales.Sale, error) {
	t, done := ss.s.view()
	defer done()
	return t.Sale(ctx, id)
}

func (ss *SalesStore) Customer(ctx context.Context, id int64) (*sales.Customer, error) {
	t, done := ss.s.view()
	defer done()
	return t.Customer(ctx, id)
}

func (ss *SalesStore) InsertSale(ctx context.Context, s *sales.Sale) error {
	t, done := ss.s.view()
	defer done()
	return t.InsertSale(ctx, s)
}

func (ss *SalesStore) InsertCustomer(ctx context.Context, c *sales.Customer) error {
	t, done := ss.s.view()
	defer done()
	return t.InsertCustomer(ctx, c)
}
