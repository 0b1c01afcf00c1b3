package sales

import (
	"context"
	"time"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
)

// Tx is one sale unit of work: the sale line, the lot and the movement
// commit together.
type Tx interface {
	inventory.Tx
	catalog.Reader

	// SaleForUpdate locks the sale and loads its lines.
	SaleForUpdate(ctx context.Context, id int64) (*Sale, error)
	InsertSaleLine(ctx context.Context, l *SaleLine) error
	// NextSequential increments and returns the document counter of one
	// emission point.
	NextSequential(ctx context.Context, establishment, emissionPoint, docType string) (int64, error)
	FinalizeSale(ctx context.Context, s Sale) error
}

type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	AvailableLots(ctx context.Context, itemID int64, today time.Time) ([]inventory.Lot, error)
	Sale(ctx context.Context, id int64) (*Sale, error)
	Customer(ctx context.Context, id int64) (*Customer, error)
	InsertSale(ctx context.Context, s *Sale) error
	InsertCustomer(ctx context.Context, c *Customer) error
}
