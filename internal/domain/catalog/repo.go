package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/infra/db"
)

const itemColumns = `id, product_id, name, base_unit, units_per_box, purchase_price, sale_price,
	reorder_threshold, shelf_life_months, tax_rate, active, created_at`

// Queries runs the catalog statements on a pool or inside a transaction.
type Queries struct{ q db.Querier }

func NewQueries(q db.Querier) *Queries { return &Queries{q: q} }

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	if err := row.Scan(
		&it.ID,
		&it.ProductID,
		&it.Name,
		&it.BaseUnit,
		&it.UnitsPerBox,
		&it.PurchasePrice,
		&it.SalePrice,
		&it.ReorderThreshold,
		&it.ShelfLifeMonths,
		&it.TaxRate,
		&it.Active,
		&it.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Queries) Item(ctx context.Context, id int64) (*Item, error) {
	it, err := scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("item", id)
	}
	return it, err
}

func (r *Queries) ItemsByProduct(ctx context.Context, productID int64) ([]Item, error) {
	return r.listItems(ctx, `SELECT `+itemColumns+` FROM items WHERE product_id = $1 ORDER BY id`, productID)
}

func (r *Queries) ListItems(ctx context.Context, onlyActive bool) ([]Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items`
	if onlyActive {
		q += ` WHERE active = TRUE`
	}
	q += ` ORDER BY name, id`
	return r.listItems(ctx, q)
}

func (r *Queries) listItems(ctx context.Context, q string, args ...any) ([]Item, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *Queries) InsertItem(ctx context.Context, it *Item) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO items (product_id, name, base_unit, units_per_box, purchase_price, sale_price,
		                   reorder_threshold, shelf_life_months, tax_rate, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at
	`, it.ProductID, it.Name, it.BaseUnit, it.UnitsPerBox, it.PurchasePrice, it.SalePrice,
		it.ReorderThreshold, it.ShelfLifeMonths, it.TaxRate, it.Active).Scan(&it.ID, &it.CreatedAt)
}

func (r *Queries) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE items SET name=$2, base_unit=$3, units_per_box=$4, purchase_price=$5, sale_price=$6,
		       reorder_threshold=$7, shelf_life_months=$8, tax_rate=$9, active=$10
		WHERE id=$1
	`, it.ID, it.Name, it.BaseUnit, it.UnitsPerBox, it.PurchasePrice, it.SalePrice,
		it.ReorderThreshold, it.ShelfLifeMonths, it.TaxRate, it.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("item", it.ID)
	}
	return nil
}

func (r *Queries) DeleteItem(ctx context.Context, id int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM items WHERE id=$1`, id)
	return err
}

func (r *Queries) ItemHasLots(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lots WHERE item_id = $1)`, id).Scan(&used)
	return used, err
}

func (r *Queries) CreateProduct(ctx context.Context, name string) (*Product, error) {
	var p Product
	err := r.q.QueryRow(ctx, `
		INSERT INTO products (name) VALUES ($1)
		RETURNING id, name, active, created_at
	`, name).Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Repo is the PostgreSQL catalog store.
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
