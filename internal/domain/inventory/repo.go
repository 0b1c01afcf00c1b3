package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/infra/db"
)

const lotColumns = `id, item_id, code, expiry_date, qty_on_hand, unit_cost, received_at`

// Queries runs the ledger statements on a pool or inside a transaction.
type Queries struct{ q db.Querier }

func NewQueries(q db.Querier) *Queries { return &Queries{q: q} }

func scanLot(row pgx.Row) (*Lot, error) {
	var l Lot
	if err := row.Scan(&l.ID, &l.ItemID, &l.Code, &l.ExpiryDate, &l.QtyOnHand, &l.UnitCost, &l.ReceivedAt); err != nil {
		return nil, err
	}
	l.ExpiryDate = Day(l.ExpiryDate)
	return &l, nil
}

func (r *Queries) lots(ctx context.Context, q string, args ...any) ([]Lot, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *Queries) Lot(ctx context.Context, lotID int64) (*Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1`, lotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("lot", lotID)
	}
	return l, err
}

func (r *Queries) LotForUpdate(ctx context.Context, lotID int64) (*Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1 FOR UPDATE`, lotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("lot", lotID)
	}
	return l, err
}

func (r *Queries) FindLot(ctx context.Context, itemID int64, code string) (*Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE item_id = $1 AND code = $2 FOR UPDATE`, itemID, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (r *Queries) InsertLot(ctx context.Context, l *Lot) error {
	receivedAt := l.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return r.q.QueryRow(ctx, `
		INSERT INTO lots (item_id, code, expiry_date, qty_on_hand, unit_cost, received_at)
		VALUES ($1,$2,$3,0,$4,$5)
		RETURNING id, qty_on_hand, received_at
	`, l.ItemID, l.Code, l.ExpiryDate, l.UnitCost, receivedAt).Scan(&l.ID, &l.QtyOnHand, &l.ReceivedAt)
}

func (r *Queries) AddLotQty(ctx context.Context, lotID int64, delta int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE lots SET qty_on_hand = qty_on_hand + $2 WHERE id = $1`, lotID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("lot", lotID)
	}
	return nil
}

func (r *Queries) InsertMovement(ctx context.Context, m *Movement) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO stock_movements (lot_id, kind, qty, reference, actor_id, note)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, m.LotID, string(m.Type), m.Qty, m.Reference, m.ActorID, m.Note).Scan(&m.ID, &m.CreatedAt)
}

func (r *Queries) ExpiredLotsForUpdate(ctx context.Context, today time.Time) ([]Lot, error) {
	return r.lots(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE expiry_date < $1 AND qty_on_hand > 0
		ORDER BY expiry_date, id
		FOR UPDATE
	`, Day(today))
}

func (r *Queries) AvailableLots(ctx context.Context, itemID int64, today time.Time) ([]Lot, error) {
	return r.lots(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE item_id = $1 AND qty_on_hand > 0 AND expiry_date >= $2
		ORDER BY expiry_date, id
	`, itemID, Day(today))
}

func (r *Queries) ExpiringLots(ctx context.Context, today, until time.Time) ([]Lot, error) {
	return r.lots(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE qty_on_hand > 0 AND expiry_date >= $1 AND expiry_date <= $2
		ORDER BY expiry_date, id
	`, Day(today), Day(until))
}

func (r *Queries) OnHandLots(ctx context.Context) ([]Lot, error) {
	return r.lots(ctx, `SELECT `+lotColumns+` FROM lots WHERE qty_on_hand > 0 ORDER BY expiry_date, id`)
}

func (r *Queries) Movements(ctx context.Context, lotID int64) ([]Movement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, lot_id, kind, qty, reference, actor_id, note, created_at
		FROM stock_movements
		WHERE lot_id = $1
		ORDER BY id
	`, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.LotID, &kind, &m.Qty, &m.Reference, &m.ActorID, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MoveType(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Queries) MovementSum(ctx context.Context, lotID int64) (int64, error) {
	var sum int64
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(qty), 0) FROM stock_movements WHERE lot_id = $1`, lotID).Scan(&sum)
	return sum, err
}

func (r *Queries) StockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.q.Query(ctx, `
		SELECT i.id, i.name, COALESCE(SUM(l.qty_on_hand), 0), i.reorder_threshold
		FROM items i
		LEFT JOIN lots l ON l.item_id = i.id
		WHERE i.active = TRUE
		GROUP BY i.id, i.name, i.reorder_threshold
		ORDER BY i.name, i.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockLevel
	for rows.Next() {
		var s StockLevel
		if err := rows.Scan(&s.ItemID, &s.ItemName, &s.QtyOnHand, &s.ReorderThreshold); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Repo is the PostgreSQL ledger store.
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
