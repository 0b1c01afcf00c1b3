package catalog

import "context"

// Reader resolves a single item. Missing items are reported as
// errs.NotFoundError.
type Reader interface {
	Item(ctx context.Context, id int64) (*Item, error)
}

// Tx is the catalog part of an atomic unit of work.
type Tx interface {
	Reader
	ItemsByProduct(ctx context.Context, productID int64) ([]Item, error)
	InsertItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it Item) error
	DeleteItem(ctx context.Context, id int64) error
	ItemHasLots(ctx context.Context, id int64) (bool, error)
}

type Store interface {
	Reader
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	ListItems(ctx context.Context, onlyActive bool) ([]Item, error)
	CreateProduct(ctx context.Context, name string) (*Product, error)
}
