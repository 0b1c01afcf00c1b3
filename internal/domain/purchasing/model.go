package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

type Order struct {
	ID         int64
	Supplier   string
	Status     Status
	Total      decimal.Decimal
	CreatedBy  int64
	CreatedAt  time.Time
	ReceivedAt *time.Time
	Lines      []OrderLine
}

type OrderLine struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"-"`
	ItemID        int64           `json:"item_id" validate:"gt=0"`
	QuantityBoxes int64           `json:"quantity_boxes" validate:"gt=0"`
	UnitPriceBox  decimal.Decimal `json:"unit_price_box" validate:"gt=0"`
}

func (l OrderLine) Amount() decimal.Decimal {
	return l.UnitPriceBox.Mul(decimal.NewFromInt(l.QuantityBoxes))
}

// OrderTotal sums boxes × price, rounded to cents.
func OrderTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total.Round(2)
}

// ReceivingLine is what actually arrived for one order line.
type ReceivingLine struct {
	ItemID        int64           `json:"item_id"`
	QuantityBoxes int64           `json:"quantity_boxes"`
	UnitPriceBox  decimal.Decimal `json:"unit_price_box"`
	LotCode       string          `json:"lot_code"`
	ExpiryDate    time.Time       `json:"expiry_date"`
}

func (l ReceivingLine) Amount() decimal.Decimal {
	return l.UnitPriceBox.Mul(decimal.NewFromInt(l.QuantityBoxes))
}

// Receipt records one received line against the lot it landed in.
type Receipt struct {
	ID            int64
	OrderID       int64
	ItemID        int64
	LotID         int64
	QuantityBoxes int64
	UnitPriceBox  decimal.Decimal
	QtyBase       int64
	UnitCost      decimal.Decimal
	CreatedAt     time.Time
}

type ReceiptSummary struct {
	OrderID    int64
	Total      decimal.Decimal
	ReceivedAt time.Time
	Receipts   []Receipt
}

type NewOrder struct {
	Supplier  string      `json:"supplier"`
	CreatedBy int64       `json:"created_by"`
	Lines     []OrderLine `json:"lines" validate:"required,min=1,dive"`
}
