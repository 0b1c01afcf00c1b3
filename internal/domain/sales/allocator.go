package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/infra/metrics"
	"github.com/Spok95/pharmacy-ledger/internal/sri"
	"github.com/Spok95/pharmacy-ledger/internal/validate"
)

type Service struct {
	store    Store
	merchant sri.MerchantConfig
	signer   sri.Signer
	cred     sri.Credential
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSigner makes RenderInvoice return signed documents.
func WithSigner(signer sri.Signer, cred sri.Credential) Option {
	return func(s *Service) {
		s.signer = signer
		s.cred = cred
	}
}

func NewService(store Store, merchant sri.MerchantConfig, log *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, merchant: merchant, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) today() time.Time { return inventory.Day(s.now()) }

// ListAvailableLots returns the sellable lots of an item, soonest expiry
// first, ties by lot id.
func (s *Service) ListAvailableLots(ctx context.Context, itemID int64) ([]inventory.Lot, error) {
	lots, err := s.store.AvailableLots(ctx, itemID, s.today())
	if err != nil {
		return nil, err
	}
	SortFEFO(lots)
	return lots, nil
}

func (s *Service) OpenSale(ctx context.Context, in NewSale) (*Sale, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	sale := &Sale{
		CustomerID:    in.CustomerID,
		Status:        StatusOpen,
		PaymentMethod: in.PaymentMethod,
		CreatedBy:     in.CreatedBy,
	}
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = sri.PaymentCash
	}

	switch {
	case in.CustomerID != nil:
		if _, err := s.store.Customer(ctx, *in.CustomerID); err != nil {
			return nil, err
		}
	case in.Customer != nil:
		if err := validate.Struct(in.Customer); err != nil {
			return nil, err
		}
		c := *in.Customer
		if err := s.store.InsertCustomer(ctx, &c); err != nil {
			return nil, fmt.Errorf("insert customer: %w", err)
		}
		sale.CustomerID = &c.ID
	}

	if err := s.store.InsertSale(ctx, sale); err != nil {
		return nil, err
	}
	s.log.Info("sale opened", "sale_id", sale.ID, "created_by", sale.CreatedBy)
	return sale, nil
}

func (s *Service) Sale(ctx context.Context, id int64) (*Sale, error) {
	return s.store.Sale(ctx, id)
}

// Allocate draws req.Quantity units from a single lot into an open sale.
// Stock is checked on the locked lot before anything is written.
func (s *Service) Allocate(ctx context.Context, saleID int64, req AllocateRequest) (*SaleLine, error) {
	if err := validate.Struct(req); err != nil {
		inventory.RecordRejection(err)
		return nil, err
	}

	var line *SaleLine
	err := s.store.Atomic(ctx, func(tx Tx) error {
		sale, err := openSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		line, err = s.allocate(ctx, tx, sale.ID, req)
		return err
	})
	if err != nil {
		inventory.RecordRejection(err)
		return nil, err
	}

	metrics.Allocations.Inc()
	metrics.Moved(string(inventory.MoveSaleIssue), line.Quantity)
	s.log.Info("sale line allocated",
		"sale_id", saleID,
		"lot_id", line.LotID,
		"qty", line.Quantity,
	)
	return line, nil
}

// AllocateFEFO sells qty units of an item across as many lots as needed,
// soonest expiry first, one line per lot, in one unit of work.
func (s *Service) AllocateFEFO(ctx context.Context, saleID, itemID, qty int64, price decimal.Decimal, actorID int64) ([]SaleLine, error) {
	lots, err := s.store.AvailableLots(ctx, itemID, s.today())
	if err != nil {
		return nil, err
	}
	picks, err := PlanFEFO(lots, qty, s.today())
	if err != nil {
		inventory.RecordRejection(err)
		return nil, err
	}

	var out []SaleLine
	err = s.store.Atomic(ctx, func(tx Tx) error {
		out = out[:0]
		sale, err := openSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		for _, p := range picks {
			req := AllocateRequest{LotID: p.LotID, Quantity: p.Quantity, UnitPrice: price, ActorID: actorID}
			if err := validate.Struct(req); err != nil {
				return err
			}
			line, err := s.allocate(ctx, tx, sale.ID, req)
			if err != nil {
				return err
			}
			out = append(out, *line)
		}
		return nil
	})
	if err != nil {
		inventory.RecordRejection(err)
		return nil, err
	}

	for _, l := range out {
		metrics.Allocations.Inc()
		metrics.Moved(string(inventory.MoveSaleIssue), l.Quantity)
	}
	s.log.Info("sale allocated fefo", "sale_id", saleID, "item_id", itemID, "qty", qty, "lines", len(out))
	return out, nil
}

func openSale(ctx context.Context, tx Tx, saleID int64) (*Sale, error) {
	sale, err := tx.SaleForUpdate(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != StatusOpen {
		return nil, errs.Invalid("status", fmt.Sprintf("sale %d is %s", saleID, sale.Status))
	}
	return sale, nil
}

func (s *Service) allocate(ctx context.Context, tx Tx, saleID int64, req AllocateRequest) (*SaleLine, error) {
	lot, err := tx.LotForUpdate(ctx, req.LotID)
	if err != nil {
		return nil, err
	}
	if lot.ExpiredOn(s.today()) {
		return nil, errs.Invalid("lot_id", fmt.Sprintf("lot %d expired on %s", lot.ID, lot.ExpiryDate.Format(time.DateOnly)))
	}
	if req.Quantity > lot.QtyOnHand {
		return nil, &errs.InsufficientStockError{
			LotID:     lot.ID,
			ItemID:    lot.ItemID,
			Available: lot.QtyOnHand,
			Requested: req.Quantity,
		}
	}
	item, err := tx.Item(ctx, lot.ItemID)
	if err != nil {
		return nil, err
	}

	line := &SaleLine{
		SaleID:      saleID,
		LotID:       lot.ID,
		ItemID:      lot.ItemID,
		Description: item.Name,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TaxRate:     item.TaxRate,
		Subtotal:    req.UnitPrice.Mul(decimal.NewFromInt(req.Quantity)).Round(2),
	}
	if err := tx.InsertSaleLine(ctx, line); err != nil {
		return nil, fmt.Errorf("insert sale line: %w", err)
	}
	if _, err := inventory.ApplyMovement(ctx, tx, inventory.MovementInput{
		LotID:     lot.ID,
		Type:      inventory.MoveSaleIssue,
		Qty:       -req.Quantity,
		Reference: fmt.Sprintf("SALE-%d", saleID),
		ActorID:   req.ActorID,
	}); err != nil {
		return nil, err
	}
	return line, nil
}
