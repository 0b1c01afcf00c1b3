package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/purchasing"
	"github.com/Spok95/pharmacy-ledger/internal/domain/sales"
)

type orderView struct {
	ID         int64                  `json:"id"`
	Supplier   string                 `json:"supplier"`
	Status     purchasing.Status      `json:"status"`
	Total      decimal.Decimal        `json:"total"`
	CreatedBy  int64                  `json:"created_by"`
	CreatedAt  time.Time              `json:"created_at"`
	ReceivedAt *time.Time             `json:"received_at,omitempty"`
	Lines      []purchasing.OrderLine `json:"lines"`
}

func newOrderView(o *purchasing.Order) orderView {
	lines := o.Lines
	if lines == nil {
		lines = []purchasing.OrderLine{}
	}
	return orderView{
		ID:         o.ID,
		Supplier:   o.Supplier,
		Status:     o.Status,
		Total:      o.Total,
		CreatedBy:  o.CreatedBy,
		CreatedAt:  o.CreatedAt,
		ReceivedAt: o.ReceivedAt,
		Lines:      lines,
	}
}

type receivingLineView struct {
	ItemID        int64           `json:"item_id"`
	QuantityBoxes int64           `json:"quantity_boxes"`
	UnitPriceBox  decimal.Decimal `json:"unit_price_box"`
	LotCode       string          `json:"lot_code"`
	ExpiryDate    string          `json:"expiry_date"`
}

func newReceivingLineViews(lines []purchasing.ReceivingLine) []receivingLineView {
	out := make([]receivingLineView, 0, len(lines))
	for _, l := range lines {
		v := receivingLineView{
			ItemID:        l.ItemID,
			QuantityBoxes: l.QuantityBoxes,
			UnitPriceBox:  l.UnitPriceBox,
			LotCode:       l.LotCode,
		}
		if !l.ExpiryDate.IsZero() {
			v.ExpiryDate = l.ExpiryDate.Format(time.DateOnly)
		}
		out = append(out, v)
	}
	return out
}

type receiptView struct {
	ItemID        int64           `json:"item_id"`
	LotID         int64           `json:"lot_id"`
	QuantityBoxes int64           `json:"quantity_boxes"`
	QtyBase       int64           `json:"qty_base"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

type receiptSummaryView struct {
	OrderID    int64           `json:"order_id"`
	Total      decimal.Decimal `json:"total"`
	ReceivedAt time.Time       `json:"received_at"`
	Receipts   []receiptView   `json:"receipts"`
}

func newReceiptSummaryView(s *purchasing.ReceiptSummary) receiptSummaryView {
	v := receiptSummaryView{OrderID: s.OrderID, Total: s.Total, ReceivedAt: s.ReceivedAt, Receipts: []receiptView{}}
	for _, r := range s.Receipts {
		v.Receipts = append(v.Receipts, receiptView{
			ItemID:        r.ItemID,
			LotID:         r.LotID,
			QuantityBoxes: r.QuantityBoxes,
			QtyBase:       r.QtyBase,
			UnitCost:      r.UnitCost,
		})
	}
	return v
}

type lotView struct {
	ID         int64           `json:"id"`
	ItemID     int64           `json:"item_id"`
	Code       string          `json:"code"`
	ExpiryDate string          `json:"expiry_date"`
	QtyOnHand  int64           `json:"qty_on_hand"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

func newLotViews(lots []inventory.Lot) []lotView {
	out := make([]lotView, 0, len(lots))
	for _, l := range lots {
		out = append(out, lotView{
			ID:         l.ID,
			ItemID:     l.ItemID,
			Code:       l.Code,
			ExpiryDate: l.ExpiryDate.Format(time.DateOnly),
			QtyOnHand:  l.QtyOnHand,
			UnitCost:   l.UnitCost,
		})
	}
	return out
}

type movementView struct {
	ID        int64              `json:"id"`
	LotID     int64              `json:"lot_id"`
	Type      inventory.MoveType `json:"type"`
	Qty       int64              `json:"qty"`
	Reference string             `json:"reference"`
	ActorID   int64              `json:"actor_id"`
	Note      string             `json:"note,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

func newMovementView(m inventory.Movement) movementView {
	return movementView{
		ID:        m.ID,
		LotID:     m.LotID,
		Type:      m.Type,
		Qty:       m.Qty,
		Reference: m.Reference,
		ActorID:   m.ActorID,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}

type saleLineView struct {
	ID          int64           `json:"id"`
	LotID       int64           `json:"lot_id"`
	ItemID      int64           `json:"item_id"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func newSaleLineViews(lines []sales.SaleLine) []saleLineView {
	out := make([]saleLineView, 0, len(lines))
	for _, l := range lines {
		out = append(out, saleLineView{
			ID:          l.ID,
			LotID:       l.LotID,
			ItemID:      l.ItemID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			Subtotal:    l.Subtotal,
		})
	}
	return out
}

type saleView struct {
	ID            int64           `json:"id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Status        sales.Status    `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Sequential    int64           `json:"sequential,omitempty"`
	AccessKey     string          `json:"access_key,omitempty"`
	IssuedAt      *time.Time      `json:"issued_at,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Lines         []saleLineView  `json:"lines"`
}

func newSaleView(s *sales.Sale) saleView {
	return saleView{
		ID:            s.ID,
		CustomerID:    s.CustomerID,
		Status:        s.Status,
		PaymentMethod: s.PaymentMethod,
		Sequential:    s.Sequential,
		AccessKey:     s.AccessKey,
		IssuedAt:      s.IssuedAt,
		Subtotal:      s.Subtotal,
		Tax:           s.Tax,
		Total:         s.Total,
		Lines:         newSaleLineViews(s.Lines),
	}
}
