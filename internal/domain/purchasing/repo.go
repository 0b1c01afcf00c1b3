package purchasing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/infra/db"
)

// Queries runs the purchasing statements and, through the embedded ledger
// queries, the lot statements of the same transaction.
type Queries struct {
	*inventory.Queries
	items *catalog.Queries
	q     db.Querier
}

func NewQueries(q db.Querier) *Queries {
	return &Queries{Queries: inventory.NewQueries(q), items: catalog.NewQueries(q), q: q}
}

func (r *Queries) Item(ctx context.Context, id int64) (*catalog.Item, error) {
	return r.items.Item(ctx, id)
}

func (r *Queries) order(ctx context.Context, id int64, lock bool) (*Order, error) {
	q := `SELECT id, supplier, status, total, created_by, created_at, received_at FROM purchase_orders WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	var o Order
	var status string
	err := r.q.QueryRow(ctx, q, id).Scan(&o.ID, &o.Supplier, &status, &o.Total, &o.CreatedBy, &o.CreatedAt, &o.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("purchase order", id)
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)

	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, item_id, quantity_boxes, unit_price_box
		FROM purchase_order_lines
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.QuantityBoxes, &l.UnitPriceBox); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}

func (r *Queries) Order(ctx context.Context, id int64) (*Order, error) {
	return r.order(ctx, id, false)
}

func (r *Queries) OrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.order(ctx, id, true)
}

func (r *Queries) InsertOrder(ctx context.Context, o *Order) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO purchase_orders (supplier, status, total, created_by)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, o.Supplier, string(o.Status), o.Total, o.CreatedBy).Scan(&o.ID, &o.CreatedAt)
}

func (r *Queries) InsertOrderLine(ctx context.Context, l *OrderLine) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO purchase_order_lines (order_id, item_id, quantity_boxes, unit_price_box)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, l.OrderID, l.ItemID, l.QuantityBoxes, l.UnitPriceBox).Scan(&l.ID)
}

func (r *Queries) UpdateOrderLine(ctx context.Context, l OrderLine) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE purchase_order_lines SET quantity_boxes = $2, unit_price_box = $3 WHERE id = $1
	`, l.ID, l.QuantityBoxes, l.UnitPriceBox)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("order line", l.ID)
	}
	return nil
}

func (r *Queries) DeleteOrderLine(ctx context.Context, id int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM purchase_order_lines WHERE id = $1`, id)
	return err
}

func (r *Queries) SetOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	_, err := r.q.Exec(ctx, `UPDATE purchase_orders SET total = $2 WHERE id = $1`, id, total)
	return err
}

func (r *Queries) MarkReceived(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE purchase_orders SET status = 'received', received_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Invalid("status", "order is no longer pending")
	}
	return nil
}

func (r *Queries) InsertReceipt(ctx context.Context, rc *Receipt) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO purchase_receipts (order_id, item_id, lot_id, quantity_boxes, unit_price_box, qty_base, unit_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, rc.OrderID, rc.ItemID, rc.LotID, rc.QuantityBoxes, rc.UnitPriceBox, rc.QtyBase, rc.UnitCost).Scan(&rc.ID, &rc.CreatedAt)
}

func (r *Queries) Receipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, item_id, lot_id, quantity_boxes, unit_price_box, qty_base, unit_cost, created_at
		FROM purchase_receipts
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var rc Receipt
		if err := rows.Scan(&rc.ID, &rc.OrderID, &rc.ItemID, &rc.LotID, &rc.QuantityBoxes,
			&rc.UnitPriceBox, &rc.QtyBase, &rc.UnitCost, &rc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// Repo is the PostgreSQL purchasing store.
type Repo struct {
	*Queries
	db *db.DB
}

func NewRepo(d *db.DB) *Repo { return &Repo{Queries: NewQueries(d.Pool), db: d} }

func (r *Repo) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return r.db.RunAtomic(ctx, func(q db.Querier) error {
		return fn(NewQueries(q))
	})
}
