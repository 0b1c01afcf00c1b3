package inventory

import (
	"context"
	"time"
)

// Tx is the ledger part of an atomic unit of work. Receiving and sales
// embed it in their own transaction interfaces so lot and document changes
// commit together.
type Tx interface {
	// LotForUpdate locks the lot row for the rest of the unit of work.
	LotForUpdate(ctx context.Context, lotID int64) (*Lot, error)
	// FindLot returns nil, nil when no lot has this code for the item.
	FindLot(ctx context.Context, itemID int64, code string) (*Lot, error)
	InsertLot(ctx context.Context, lot *Lot) error
	AddLotQty(ctx context.Context, lotID int64, delta int64) error
	InsertMovement(ctx context.Context, m *Movement) error
	ExpiredLotsForUpdate(ctx context.Context, today time.Time) ([]Lot, error)
}

type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Lot(ctx context.Context, lotID int64) (*Lot, error)
	// AvailableLots lists lots with stock and expiry on or after today,
	// soonest expiry first.
	AvailableLots(ctx context.Context, itemID int64, today time.Time) ([]Lot, error)
	Movements(ctx context.Context, lotID int64) ([]Movement, error)
	MovementSum(ctx context.Context, lotID int64) (int64, error)
	ExpiringLots(ctx context.Context, today, until time.Time) ([]Lot, error)
	// OnHandLots lists every lot with stock, soonest expiry first.
	OnHandLots(ctx context.Context) ([]Lot, error)
	StockLevels(ctx context.Context) ([]StockLevel, error)
}
