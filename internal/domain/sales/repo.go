package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/infra/db"
)

// Queries runs the sales statements and, through the embedded ledger
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

func (r *Queries) sale(ctx context.Context, id int64, lock bool) (*Sale, error) {
	q := `
		SELECT id, customer_id, status, payment_method, COALESCE(sequential, 0), COALESCE(access_key, ''),
		       issued_at, subtotal, tax, total, created_by, created_at
		FROM sales WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	var s Sale
	var status string
	err := r.q.QueryRow(ctx, q, id).Scan(&s.ID, &s.CustomerID, &status, &s.PaymentMethod, &s.Sequential,
		&s.AccessKey, &s.IssuedAt, &s.Subtotal, &s.Tax, &s.Total, &s.CreatedBy, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("sale", id)
	}
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)

	rows, err := r.q.Query(ctx, `
		SELECT id, sale_id, lot_id, item_id, description, quantity, unit_price, tax_rate, subtotal
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.LotID, &l.ItemID, &l.Description,
			&l.Quantity, &l.UnitPrice, &l.TaxRate, &l.Subtotal); err != nil {
			return nil, err
		}
		s.Lines = append(s.Lines, l)
	}
	return &s, rows.Err()
}

func (r *Queries) Sale(ctx context.Context, id int64) (*Sale, error) {
	return r.sale(ctx, id, false)
}

func (r *Queries) SaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	return r.sale(ctx, id, true)
}

func (r *Queries) InsertSale(ctx context.Context, s *Sale) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO sales (customer_id, status, payment_method, created_by)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, s.CustomerID, string(s.Status), s.PaymentMethod, s.CreatedBy).Scan(&s.ID, &s.CreatedAt)
}

func (r *Queries) InsertSaleLine(ctx context.Context, l *SaleLine) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO sale_lines (sale_id, lot_id, item_id, description, quantity, unit_price, tax_rate, subtotal)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, l.SaleID, l.LotID, l.ItemID, l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.Subtotal).Scan(&l.ID)
}

func (r *Queries) NextSequential(ctx context.Context, establishment, emissionPoint, docType string) (int64, error) {
	var next int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO document_sequences (establishment, emission_point, doc_type, last_value)
		VALUES ($1,$2,$3,1)
		ON CONFLICT (establishment, emission_point, doc_type)
		DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value
	`, establishment, emissionPoint, docType).Scan(&next)
	return next, err
}

func (r *Queries) FinalizeSale(ctx context.Context, s Sale) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sales
		SET status = 'finalized', sequential = $2, access_key = $3, issued_at = $4,
		    subtotal = $5, tax = $6, total = $7
		WHERE id = $1 AND status = 'open'
	`, s.ID, s.Sequential, s.AccessKey, s.IssuedAt, s.Subtotal, s.Tax, s.Total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Invalid("status", "sale is already finalized")
	}
	return nil
}

func (r *Queries) Customer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.q.QueryRow(ctx, `
		SELECT id, identification, name, address, email FROM customers WHERE id = $1
	`, id).Scan(&c.ID, &c.Identification, &c.Name, &c.Address, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("customer", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Queries) InsertCustomer(ctx context.Context, c *Customer) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO customers (identification, name, address, email)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, c.Identification, c.Name, c.Address, c.Email).Scan(&c.ID)
}

// Repo is the PostgreSQL sales store.
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
