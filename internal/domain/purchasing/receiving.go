package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/infra/metrics"
)

// unit costs keep four decimals so box price / units round-trips closely
const costPlaces = 4

type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, log *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CheckReceivingLines rejects incomplete lines without touching the store.
// Lines are numbered from 1 in errors.
func CheckReceivingLines(lines []ReceivingLine, today time.Time) error {
	if len(lines) == 0 {
		return errs.Invalid("lines", "at least one line is required")
	}
	for i, l := range lines {
		n := i + 1
		if strings.TrimSpace(l.LotCode) == "" {
			return &errs.MissingTraceabilityDataError{Line: n, ItemID: l.ItemID, Field: "lot code"}
		}
		if l.ExpiryDate.IsZero() {
			return &errs.MissingTraceabilityDataError{Line: n, ItemID: l.ItemID, Field: "expiry date"}
		}
		if l.ItemID <= 0 {
			return errs.Invalid(fmt.Sprintf("lines[%d].item_id", n), "is required")
		}
		if l.QuantityBoxes <= 0 {
			return errs.Invalid(fmt.Sprintf("lines[%d].quantity_boxes", n), "must be greater than 0")
		}
		if !l.UnitPriceBox.IsPositive() {
			return errs.Invalid(fmt.Sprintf("lines[%d].unit_price_box", n), "must be greater than 0")
		}
		if inventory.Day(l.ExpiryDate).Before(inventory.Day(today)) {
			return errs.Invalid(fmt.Sprintf("lines[%d].expiry_date", n), "is already past")
		}
	}
	return nil
}

// Receive books reconciled receiving lines against a pending order: each
// line upserts its lot, adds a purchase_receipt movement and records a
// receipt. The order is then marked received. Nothing persists unless every
// line succeeds.
func (s *Service) Receive(ctx context.Context, orderID int64, lines []ReceivingLine, actorID int64) (*ReceiptSummary, error) {
	now := s.now()
	if err := CheckReceivingLines(lines, now); err != nil {
		inventory.RecordRejection(err)
		return nil, err
	}

	sum := &ReceiptSummary{OrderID: orderID, ReceivedAt: now}
	err := s.store.Atomic(ctx, func(tx Tx) error {
		sum.Receipts = sum.Receipts[:0]
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusPending {
			return errs.Invalid("status", fmt.Sprintf("order %d is %s", orderID, order.Status))
		}

		ref := fmt.Sprintf("PO-%d", orderID)
		total := decimal.Zero
		for i, l := range lines {
			r, err := receiveLine(ctx, tx, i+1, l, ref, actorID, now)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			r.OrderID = orderID
			if err := tx.InsertReceipt(ctx, r); err != nil {
				return fmt.Errorf("line %d: insert receipt: %w", i+1, err)
			}
			sum.Receipts = append(sum.Receipts, *r)
			total = total.Add(l.Amount())
		}

		sum.Total = total.Round(2)
		if !sum.Total.Equal(order.Total) {
			if err := tx.SetOrderTotal(ctx, orderID, sum.Total); err != nil {
				return err
			}
		}
		return tx.MarkReceived(ctx, orderID, now)
	})
	if err != nil {
		inventory.RecordRejection(err)
		return nil, err
	}

	metrics.Receipts.Inc()
	for _, r := range sum.Receipts {
		metrics.Moved(string(inventory.MovePurchaseReceipt), r.QtyBase)
	}
	s.log.Info("order received",
		"order_id", orderID,
		"lines", len(sum.Receipts),
		"total", sum.Total.StringFixed(2),
		"actor_id", actorID,
	)
	return sum, nil
}

func receiveLine(ctx context.Context, tx Tx, n int, l ReceivingLine, ref string, actorID int64, now time.Time) (*Receipt, error) {
	item, err := tx.Item(ctx, l.ItemID)
	if err != nil {
		return nil, err
	}
	if item.UnitsPerBox < 1 {
		return nil, errs.Invalid("units_per_box", fmt.Sprintf("item %d has %d", item.ID, item.UnitsPerBox))
	}

	if l.QuantityBoxes > math.MaxInt64/item.UnitsPerBox {
		return nil, errs.Invalid(fmt.Sprintf("lines[%d].quantity_boxes", n),
			fmt.Sprintf("%d boxes of %d units overflow the base quantity", l.QuantityBoxes, item.UnitsPerBox))
	}
	qtyBase := l.QuantityBoxes * item.UnitsPerBox
	unitCost := l.UnitPriceBox.Div(decimal.NewFromInt(item.UnitsPerBox)).Round(costPlaces)

	lot, err := inventory.UpsertLot(ctx, tx, inventory.LotSpec{
		ItemID:     l.ItemID,
		Code:       l.LotCode,
		ExpiryDate: l.ExpiryDate,
		UnitCost:   unitCost,
		ReceivedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if _, err := inventory.ApplyMovement(ctx, tx, inventory.MovementInput{
		LotID:     lot.ID,
		Type:      inventory.MovePurchaseReceipt,
		Qty:       qtyBase,
		Reference: ref,
		ActorID:   actorID,
		Note:      fmt.Sprintf("%d x %d %s", l.QuantityBoxes, item.UnitsPerBox, item.BaseUnit),
	}); err != nil {
		return nil, err
	}

	return &Receipt{
		ItemID:        l.ItemID,
		LotID:         lot.ID,
		QuantityBoxes: l.QuantityBoxes,
		UnitPriceBox:  l.UnitPriceBox,
		QtyBase:       qtyBase,
		UnitCost:      unitCost,
	}, nil
}

func (s *Service) Order(ctx context.Context, id int64) (*Order, error) {
	return s.store.Order(ctx, id)
}

func (s *Service) Receipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	if _, err := s.store.Order(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.Receipts(ctx, orderID)
}
