package purchasing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/validate"
)

// LineDiff is what UpdateLines has to do to turn the stored lines into the
// desired ones. Lines are matched by item.
type LineDiff struct {
	Add    []OrderLine
	Change []OrderLine
	Remove []OrderLine
}

func (d LineDiff) Empty() bool {
	return len(d.Add) == 0 && len(d.Change) == 0 && len(d.Remove) == 0
}

// DiffLines compares stored and desired order lines. Changed lines keep the
// stored id.
func DiffLines(current, desired []OrderLine) LineDiff {
	byItem := make(map[int64]OrderLine, len(current))
	for _, l := range current {
		byItem[l.ItemID] = l
	}

	var d LineDiff
	for _, want := range desired {
		have, ok := byItem[want.ItemID]
		if !ok {
			d.Add = append(d.Add, want)
			continue
		}
		delete(byItem, want.ItemID)
		if have.QuantityBoxes != want.QuantityBoxes || !have.UnitPriceBox.Equal(want.UnitPriceBox) {
			want.ID = have.ID
			want.OrderID = have.OrderID
			d.Change = append(d.Change, want)
		}
	}
	for _, l := range byItem {
		d.Remove = append(d.Remove, l)
	}
	sort.Slice(d.Remove, func(i, j int) bool { return d.Remove[i].ID < d.Remove[j].ID })
	return d
}

func checkLines(lines []OrderLine) error {
	seen := make(map[int64]bool, len(lines))
	for i, l := range lines {
		if err := validate.Struct(l); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if seen[l.ItemID] {
			return errs.Invalid(fmt.Sprintf("lines[%d].item_id", i+1), fmt.Sprintf("item %d appears twice", l.ItemID))
		}
		seen[l.ItemID] = true
	}
	return nil
}

func (s *Service) CreateOrder(ctx context.Context, in NewOrder) (*Order, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := checkLines(in.Lines); err != nil {
		return nil, err
	}

	o := &Order{
		Supplier:  in.Supplier,
		Status:    StatusPending,
		Total:     OrderTotal(in.Lines),
		CreatedBy: in.CreatedBy,
	}
	err := s.store.Atomic(ctx, func(tx Tx) error {
		o.Lines = o.Lines[:0]
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		for _, l := range in.Lines {
			if _, err := tx.Item(ctx, l.ItemID); err != nil {
				return err
			}
			l.OrderID = o.ID
			if err := tx.InsertOrderLine(ctx, &l); err != nil {
				return fmt.Errorf("insert line for item %d: %w", l.ItemID, err)
			}
			o.Lines = append(o.Lines, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order created", "order_id", o.ID, "lines", len(o.Lines), "total", o.Total.StringFixed(2))
	return o, nil
}

// UpdateLines applies the difference between the stored and desired lines
// of a pending order one statement at a time, then refreshes the total.
func (s *Service) UpdateLines(ctx context.Context, orderID int64, desired []OrderLine) (*Order, LineDiff, error) {
	if err := checkLines(desired); err != nil {
		return nil, LineDiff{}, err
	}

	var (
		out  *Order
		diff LineDiff
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			return errs.Invalid("status", fmt.Sprintf("order %d is %s", orderID, o.Status))
		}

		diff = DiffLines(o.Lines, desired)
		for i := range diff.Add {
			if _, err := tx.Item(ctx, diff.Add[i].ItemID); err != nil {
				return err
			}
			diff.Add[i].OrderID = orderID
			if err := tx.InsertOrderLine(ctx, &diff.Add[i]); err != nil {
				return err
			}
		}
		for _, l := range diff.Change {
			if err := tx.UpdateOrderLine(ctx, l); err != nil {
				return err
			}
		}
		for _, l := range diff.Remove {
			if err := tx.DeleteOrderLine(ctx, l.ID); err != nil {
				return err
			}
		}

		total := OrderTotal(desired)
		if !total.Equal(o.Total) {
			if err := tx.SetOrderTotal(ctx, orderID, total); err != nil {
				return err
			}
		}
		out, err = tx.OrderForUpdate(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, LineDiff{}, err
	}
	s.log.Info("order lines updated",
		"order_id", orderID,
		"added", len(diff.Add),
		"changed", len(diff.Change),
		"removed", len(diff.Remove),
	)
	return out, diff, nil
}

// DraftReceivingLines pre-fills one receiving line per order line. Lot codes
// stay empty for the operator; expiry is suggested from the item's shelf
// life when it has one.
func DraftReceivingLines(o Order, items map[int64]catalog.Item, now time.Time) []ReceivingLine {
	out := make([]ReceivingLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		rl := ReceivingLine{
			ItemID:        l.ItemID,
			QuantityBoxes: l.QuantityBoxes,
			UnitPriceBox:  l.UnitPriceBox,
		}
		if it, ok := items[l.ItemID]; ok {
			rl.ExpiryDate = it.SuggestExpiry(now)
		}
		out = append(out, rl)
	}
	return out
}

// Draft loads an order and its items and returns pre-filled receiving lines.
func (s *Service) Draft(ctx context.Context, orderID int64) ([]ReceivingLine, error) {
	o, err := s.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items := make(map[int64]catalog.Item, len(o.Lines))
	for _, l := range o.Lines {
		it, err := s.store.Item(ctx, l.ItemID)
		if err != nil {
			return nil, err
		}
		items[it.ID] = *it
	}
	return DraftReceivingLines(*o, items, s.now()), nil
}
