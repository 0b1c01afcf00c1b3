package sales

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/sri"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusFinalized Status = "finalized"
)

type Sale struct {
	ID            int64
	CustomerID    *int64
	Status        Status
	PaymentMethod string
	Sequential    int64
	AccessKey     string
	IssuedAt      *time.Time
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	CreatedBy     int64
	CreatedAt     time.Time
	Lines         []SaleLine
}

// SaleLine draws Quantity base units from exactly one lot.
type SaleLine struct {
	ID          int64
	SaleID      int64
	LotID       int64
	ItemID      int64
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
	Subtotal    decimal.Decimal
}

type Customer struct {
	ID             int64  `json:"id"`
	Identification string `json:"identification"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	Email          string `json:"email" validate:"omitempty,email"`
}

type NewSale struct {
	CustomerID    *int64    `json:"customer_id"`
	Customer      *Customer `json:"customer"`
	PaymentMethod string    `json:"payment_method" validate:"omitempty,len=2,numeric"`
	CreatedBy     int64     `json:"created_by"`
}

type AllocateRequest struct {
	LotID     int64           `json:"lot_id" validate:"gt=0"`
	Quantity  int64           `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gt=0"`
	ActorID   int64           `json:"actor_id"`
}

// Totals sums the lines: subtotal, IVA per line and the grand total.
func Totals(lines []SaleLine) (subtotal, tax, total decimal.Decimal) {
	for _, l := range lines {
		il := l.invoiceLine()
		subtotal = subtotal.Add(il.Subtotal())
		tax = tax.Add(il.Tax())
	}
	return subtotal, tax, subtotal.Add(tax)
}

func (l SaleLine) invoiceLine() sri.InvoiceLine {
	return sri.InvoiceLine{
		Code:        strconv.FormatInt(l.ItemID, 10),
		Description: l.Description,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		TaxRate:     l.TaxRate,
	}
}

// Invoice is the renderer's view of a finalized sale.
func (s Sale) Invoice() sri.Invoice {
	inv := sri.Invoice{
		AccessKey:     s.AccessKey,
		Sequential:    s.Sequential,
		PaymentMethod: s.PaymentMethod,
	}
	if s.IssuedAt != nil {
		inv.IssuedAt = *s.IssuedAt
	}
	for _, l := range s.Lines {
		inv.Lines = append(inv.Lines, l.invoiceLine())
	}
	return inv
}

func (c *Customer) Buyer() *sri.Buyer {
	if c == nil {
		return nil
	}
	return &sri.Buyer{
		Identification: c.Identification,
		Name:           c.Name,
		Address:        c.Address,
		Email:          c.Email,
	}
}
