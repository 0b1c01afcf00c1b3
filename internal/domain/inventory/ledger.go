package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/infra/metrics"
)

// ApplyMovement changes a lot's on-hand quantity by in.Qty and appends the
// matching movement, inside the caller's unit of work. The stock check runs
// on the locked row, so a rejected movement leaves nothing behind.
func ApplyMovement(ctx context.Context, tx Tx, in MovementInput) (*Movement, error) {
	if err := checkMovement(in); err != nil {
		return nil, err
	}
	lot, err := tx.LotForUpdate(ctx, in.LotID)
	if err != nil {
		return nil, err
	}
	if in.Qty > 0 && lot.QtyOnHand > math.MaxInt64-in.Qty {
		return nil, errs.Invalid("quantity", fmt.Sprintf("lot %d would exceed the maximum quantity", lot.ID))
	}
	if lot.QtyOnHand+in.Qty < 0 {
		return nil, &errs.InsufficientStockError{
			LotID:     lot.ID,
			ItemID:    lot.ItemID,
			Available: lot.QtyOnHand,
			Requested: -in.Qty,
		}
	}
	if err := tx.AddLotQty(ctx, lot.ID, in.Qty); err != nil {
		return nil, fmt.Errorf("update lot %d: %w", lot.ID, err)
	}

	m := &Movement{
		LotID:     lot.ID,
		Type:      in.Type,
		Qty:       in.Qty,
		Reference: in.Reference,
		ActorID:   in.ActorID,
		Note:      in.Note,
	}
	if err := tx.InsertMovement(ctx, m); err != nil {
		return nil, fmt.Errorf("insert movement for lot %d: %w", lot.ID, err)
	}
	return m, nil
}

func checkMovement(in MovementInput) error {
	if !in.Type.Valid() {
		return errs.Invalid("type", fmt.Sprintf("unknown movement type %q", in.Type))
	}
	if in.Qty == 0 {
		return errs.Invalid("quantity", "must not be zero")
	}
	if in.Type.Inbound() != (in.Qty > 0) {
		return errs.Invalid("quantity", fmt.Sprintf("sign does not match movement type %s", in.Type))
	}
	return nil
}

// UpsertLot resolves the lot identified by (item, code), creating it empty
// when it does not exist yet. An existing lot is returned unchanged.
func UpsertLot(ctx context.Context, tx Tx, spec LotSpec) (*Lot, error) {
	code := strings.TrimSpace(spec.Code)
	switch {
	case spec.ItemID <= 0:
		return nil, errs.Invalid("item_id", "is required")
	case code == "":
		return nil, errs.Invalid("lot_code", "is required")
	case spec.ExpiryDate.IsZero():
		return nil, errs.Invalid("expiry_date", "is required")
	case spec.UnitCost.IsNegative():
		return nil, errs.Invalid("unit_cost", "must not be negative")
	}

	lot, err := tx.FindLot(ctx, spec.ItemID, code)
	if err != nil {
		return nil, err
	}
	if lot != nil {
		return lot, nil
	}

	lot = &Lot{
		ItemID:     spec.ItemID,
		Code:       code,
		ExpiryDate: Day(spec.ExpiryDate),
		UnitCost:   spec.UnitCost,
		ReceivedAt: spec.ReceivedAt,
	}
	if err := tx.InsertLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("insert lot %q: %w", code, err)
	}
	return lot, nil
}

// RecordRejection counts a failed ledger operation by error kind.
func RecordRejection(err error) {
	switch {
	case errors.Is(err, errs.ErrInsufficientStock):
		metrics.Rejected("insufficient_stock")
	case errors.Is(err, errs.ErrMissingTraceability):
		metrics.Rejected("missing_traceability")
	case errors.Is(err, errs.ErrValidation):
		metrics.Rejected("validation")
	case errors.Is(err, errs.ErrNotFound):
		metrics.Rejected("not_found")
	}
}

// Ledger runs standalone ledger operations, each in its own unit of work.
type Ledger struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

type Option func(*Ledger)

// WithClock overrides time.Now, which decides what "today" is for expiry.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store Store, log *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{store: store, log: log, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) Today() time.Time { return Day(l.now()) }

// Apply runs ApplyMovement in a unit of work of its own.
func (l *Ledger) Apply(ctx context.Context, in MovementInput) (*Movement, error) {
	var m *Movement
	err := l.store.Atomic(ctx, func(tx Tx) error {
		var err error
		m, err = ApplyMovement(ctx, tx, in)
		return err
	})
	if err != nil {
		RecordRejection(err)
		return nil, err
	}
	metrics.Moved(string(m.Type), m.Qty)
	l.log.Info("movement applied",
		"lot_id", m.LotID,
		"type", m.Type,
		"qty", m.Qty,
		"reference", m.Reference,
	)
	return m, nil
}

// Adjust corrects a lot by delta; history is never edited.
func (l *Ledger) Adjust(ctx context.Context, lotID, delta, actorID int64, note string) (*Movement, error) {
	t := MoveAdjustmentIn
	if delta < 0 {
		t = MoveAdjustmentOut
	}
	return l.Apply(ctx, MovementInput{
		LotID:     lotID,
		Type:      t,
		Qty:       delta,
		Reference: fmt.Sprintf("ADJ-%d", lotID),
		ActorID:   actorID,
		Note:      note,
	})
}

// Count brings a lot to a physically counted quantity with one adjustment.
// It returns nil when the count matches the lot.
func (l *Ledger) Count(ctx context.Context, lotID, counted, actorID int64) (*Movement, error) {
	if counted < 0 {
		return nil, errs.Invalid("counted", "must be greater than or equal to 0")
	}
	var m *Movement
	err := l.store.Atomic(ctx, func(tx Tx) error {
		lot, err := tx.LotForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		delta := counted - lot.QtyOnHand
		if delta == 0 {
			return nil
		}
		t := MoveAdjustmentIn
		if delta < 0 {
			t = MoveAdjustmentOut
		}
		m, err = ApplyMovement(ctx, tx, MovementInput{
			LotID:     lotID,
			Type:      t,
			Qty:       delta,
			Reference: fmt.Sprintf("CNT-%d", lotID),
			ActorID:   actorID,
			Note:      fmt.Sprintf("counted %d", counted),
		})
		return err
	})
	if err != nil {
		RecordRejection(err)
		return nil, err
	}
	if m != nil {
		metrics.Moved(string(m.Type), m.Qty)
		l.log.Info("lot counted", "lot_id", lotID, "delta", m.Qty)
	}
	return m, nil
}

// Return puts qty units sold earlier back into the lot.
func (l *Ledger) Return(ctx context.Context, lotID, qty int64, reference string, actorID int64, note string) (*Movement, error) {
	if qty <= 0 {
		return nil, errs.Invalid("quantity", "must be greater than 0")
	}
	return l.Apply(ctx, MovementInput{
		LotID:     lotID,
		Type:      MoveReturn,
		Qty:       qty,
		Reference: reference,
		ActorID:   actorID,
		Note:      note,
	})
}

// WriteOffExpired empties every expired lot that still has stock, all in
// one unit of work.
func (l *Ledger) WriteOffExpired(ctx context.Context, actorID int64) ([]Movement, error) {
	today := l.Today()
	var out []Movement
	err := l.store.Atomic(ctx, func(tx Tx) error {
		out = out[:0]
		lots, err := tx.ExpiredLotsForUpdate(ctx, today)
		if err != nil {
			return err
		}
		for _, lot := range lots {
			if lot.QtyOnHand <= 0 {
				continue
			}
			m, err := ApplyMovement(ctx, tx, MovementInput{
				LotID:     lot.ID,
				Type:      MoveExpiryWriteOff,
				Qty:       -lot.QtyOnHand,
				Reference: "EXP-" + today.Format("20060102"),
				ActorID:   actorID,
				Note:      "expired " + lot.ExpiryDate.Format(time.DateOnly),
			})
			if err != nil {
				return err
			}
			out = append(out, *m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		metrics.Moved(string(m.Type), m.Qty)
	}
	l.log.Info("expired lots written off", "lots", len(out), "day", today.Format(time.DateOnly))
	return out, nil
}

// Reconcile compares a lot's cached quantity with the sum of its movements.
func (l *Ledger) Reconcile(ctx context.Context, lotID int64) (Reconciliation, error) {
	lot, err := l.store.Lot(ctx, lotID)
	if err != nil {
		return Reconciliation{}, err
	}
	sum, err := l.store.MovementSum(ctx, lotID)
	if err != nil {
		return Reconciliation{}, err
	}
	r := Reconciliation{LotID: lotID, Cached: lot.QtyOnHand, Ledger: sum}
	if !r.Balanced() {
		l.log.Warn("lot out of balance", "lot_id", lotID, "cached", r.Cached, "ledger", r.Ledger)
	}
	return r, nil
}

func (l *Ledger) Lot(ctx context.Context, lotID int64) (*Lot, error) {
	return l.store.Lot(ctx, lotID)
}

func (l *Ledger) Movements(ctx context.Context, lotID int64) ([]Movement, error) {
	if _, err := l.store.Lot(ctx, lotID); err != nil {
		return nil, err
	}
	return l.store.Movements(ctx, lotID)
}

func (l *Ledger) AvailableLots(ctx context.Context, itemID int64) ([]Lot, error) {
	return l.store.AvailableLots(ctx, itemID, l.Today())
}

// ExpiringLots lists lots with stock that expire within the given number of
// days, today included.
func (l *Ledger) ExpiringLots(ctx context.Context, days int) ([]Lot, error) {
	today := l.Today()
	return l.store.ExpiringLots(ctx, today, today.AddDate(0, 0, days))
}

func (l *Ledger) OnHandLots(ctx context.Context) ([]Lot, error) {
	return l.store.OnHandLots(ctx)
}

// LowStock lists items whose total stock fell under their reorder threshold.
func (l *Ledger) LowStock(ctx context.Context) ([]StockLevel, error) {
	levels, err := l.store.StockLevels(ctx)
	if err != nil {
		return nil, err
	}
	var out []StockLevel
	for _, s := range levels {
		if s.BelowReorder() {
			out = append(out, s)
		}
	}
	return out, nil
}
