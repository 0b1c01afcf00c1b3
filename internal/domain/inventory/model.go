package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type MoveType string

const (
	MovePurchaseReceipt MoveType = "purchase_receipt"
	MoveSaleIssue       MoveType = "sale_issue"
	MoveAdjustmentIn    MoveType = "adjustment_in"
	MoveAdjustmentOut   MoveType = "adjustment_out"
	MoveExpiryWriteOff  MoveType = "expiry_writeoff"
	MoveReturn          MoveType = "return"
)

func (t MoveType) Valid() bool {
	switch t {
	case MovePurchaseReceipt, MoveSaleIssue, MoveAdjustmentIn, MoveAdjustmentOut, MoveExpiryWriteOff, MoveReturn:
		return true
	}
	return false
}

// Inbound reports whether movements of this type carry a positive quantity.
func (t MoveType) Inbound() bool {
	return t == MovePurchaseReceipt || t == MoveAdjustmentIn || t == MoveReturn
}

// Lot is one traceable batch of an item. QtyOnHand is a cached aggregate of
// the lot's movements and is only changed together with a new movement.
type Lot struct {
	ID         int64
	ItemID     int64
	Code       string
	ExpiryDate time.Time
	QtyOnHand  int64
	UnitCost   decimal.Decimal // per base unit
	ReceivedAt time.Time
}

// ExpiredOn reports whether the lot is past its expiry on the given day.
// A lot expiring today is still sellable.
func (l Lot) ExpiredOn(day time.Time) bool {
	return l.ExpiryDate.Before(Day(day))
}

// Movement is an immutable ledger entry; Qty is signed.
type Movement struct {
	ID        int64
	LotID     int64
	Type      MoveType
	Qty       int64
	Reference string
	ActorID   int64
	Note      string
	CreatedAt time.Time
}

type MovementInput struct {
	LotID     int64
	Type      MoveType
	Qty       int64
	Reference string
	ActorID   int64
	Note      string
}

type LotSpec struct {
	ItemID     int64
	Code       string
	ExpiryDate time.Time
	UnitCost   decimal.Decimal
	ReceivedAt time.Time
}

type Reconciliation struct {
	LotID  int64
	Cached int64
	Ledger int64
}

func (r Reconciliation) Balanced() bool { return r.Cached == r.Ledger }

// StockLevel is the on-hand total of one item across its lots.
type StockLevel struct {
	ItemID           int64
	ItemName         string
	QtyOnHand        int64
	ReorderThreshold int64
}

func (s StockLevel) BelowReorder() bool {
	return s.ReorderThreshold > 0 && s.QtyOnHand < s.ReorderThreshold
}

// Day truncates t to its calendar date, expressed as UTC midnight so it
// compares directly with DATE columns.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
