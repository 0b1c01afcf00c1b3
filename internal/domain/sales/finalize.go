package sales

import (
	"context"
	"fmt"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/infra/metrics"
	"github.com/Spok95/pharmacy-ledger/internal/sri"
)

// Finalize numbers the sale, derives its access key and freezes its totals.
// A sale is finalized at most once; the key is never recomputed.
func (s *Service) Finalize(ctx context.Context, saleID, actorID int64) (*Sale, error) {
	if err := s.merchant.Validate(); err != nil {
		return nil, fmt.Errorf("merchant config: %w", err)
	}

	var out *Sale
	err := s.store.Atomic(ctx, func(tx Tx) error {
		sale, err := openSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if len(sale.Lines) == 0 {
			return errs.Invalid("lines", fmt.Sprintf("sale %d has no lines", saleID))
		}

		seq, err := tx.NextSequential(ctx, s.merchant.Establishment, s.merchant.EmissionPoint, sri.DocInvoice)
		if err != nil {
			return fmt.Errorf("next sequential: %w", err)
		}
		issued := s.now()
		key, err := sri.GenerateAccessKey(issued, sri.DocInvoice, seq, s.merchant)
		if err != nil {
			return err
		}

		sale.Status = StatusFinalized
		sale.Sequential = seq
		sale.AccessKey = key
		sale.IssuedAt = &issued
		sale.Subtotal, sale.Tax, sale.Total = Totals(sale.Lines)
		if err := tx.FinalizeSale(ctx, *sale); err != nil {
			return err
		}
		out = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Invoices.Inc()
	s.log.Info("sale finalized",
		"sale_id", saleID,
		"sequential", out.Sequential,
		"access_key", out.AccessKey,
		"total", out.Total.StringFixed(2),
		"actor_id", actorID,
	)
	return out, nil
}

// RenderInvoice renders the factura of a finalized sale, signed when the
// service has a Signer.
func (s *Service) RenderInvoice(ctx context.Context, saleID int64) ([]byte, error) {
	sale, err := s.store.Sale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != StatusFinalized {
		return nil, errs.Invalid("status", fmt.Sprintf("sale %d is not finalized", saleID))
	}
	if sale.IssuedAt != nil {
		issued := sale.IssuedAt.In(s.now().Location())
		sale.IssuedAt = &issued
	}

	var customer *Customer
	if sale.CustomerID != nil {
		if customer, err = s.store.Customer(ctx, *sale.CustomerID); err != nil {
			return nil, err
		}
	}

	doc, err := sri.RenderDocument(sale.Invoice(), s.merchant, customer.Buyer())
	if err != nil {
		return nil, fmt.Errorf("render sale %d: %w", saleID, err)
	}
	if s.signer == nil {
		return doc, nil
	}
	signed, err := s.signer.Sign(ctx, doc, s.cred)
	if err != nil {
		return nil, fmt.Errorf("sign sale %d: %w", saleID, err)
	}
	return signed, nil
}
