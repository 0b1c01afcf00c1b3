package purchasing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
)

// Tx is one receiving unit of work: lots, movements and order rows commit
// or roll back together.
type Tx interface {
	inventory.Tx
	catalog.Reader

	// OrderForUpdate locks the order and loads its lines.
	OrderForUpdate(ctx context.Context, id int64) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderLine(ctx context.Context, l *OrderLine) error
	UpdateOrderLine(ctx context.Context, l OrderLine) error
	DeleteOrderLine(ctx context.Context, id int64) error
	SetOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error
	MarkReceived(ctx context.Context, id int64, at time.Time) error
	InsertReceipt(ctx context.Context, r *Receipt) error
}

type Store interface {
	catalog.Reader
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Order(ctx context.Context, id int64) (*Order, error)
	Receipts(ctx context.Context, orderID int64) ([]Receipt, error)
}
