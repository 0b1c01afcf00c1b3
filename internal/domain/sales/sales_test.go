package sales_test

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/sales"
	"github.com/Spok95/pharmacy-ledger/internal/sri"
	"github.com/Spok95/pharmacy-ledger/internal/storage/memstore"
)

var now = time.Date(2024, 4, 1, 16, 45, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func merchant() sri.MerchantConfig {
	return sri.MerchantConfig{
		RUC:               "1792146739001",
		LegalName:         "FARMACIA EJEMPLO S.A.",
		HeadOfficeAddress: "Quito",
		Environment:       1,
		Establishment:     "001",
		EmissionPoint:     "002",
	}
}

func newService(t *testing.T, opts ...sales.Option) (*memstore.Store, *sales.Service) {
	t.Helper()
	ms := memstore.New()
	opts = append([]sales.Option{sales.WithClock(func() time.Time { return now })}, opts...)
	svc := sales.NewService(ms.Sales(), merchant(), slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	return ms, svc
}

func openSale(t *testing.T, svc *sales.Service) *sales.Sale {
	t.Helper()
	s, err := svc.OpenSale(context.Background(), sales.NewSale{CreatedBy: 1})
	require.NoError(t, err)
	return s
}

func TestListAvailableLots_SoonestExpiryFirst(t *testing.T) {
	ms, svc := newService(t)
	it := ms.AddItem(catalog.Item{Name: "Loratadina 10mg"})
	june := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "JUN", ExpiryDate: date(2024, 6, 1), QtyOnHand: 50})
	may := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "MAY", ExpiryDate: date(2024, 5, 1), QtyOnHand: 30})
	mayTwin := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "MAY-B", ExpiryDate: date(2024, 5, 1), QtyOnHand: 3})
	ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "OLD", ExpiryDate: date(2024, 3, 31), QtyOnHand: 9})
	ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "EMPTY", ExpiryDate: date(2024, 4, 15), QtyOnHand: 0})

	lots, err := svc.ListAvailableLots(context.Background(), it.ID)
	require.NoError(t, err)
	require.Len(t, lots, 3)
	assert.Equal(t, may.ID, lots[0].ID)
	assert.Equal(t, mayTwin.ID, lots[1].ID)
	assert.Equal(t, june.ID, lots[2].ID)
}

func TestAllocate_FEFOScenario(t *testing.T) {
	ms, svc := newService(t)
	ctx := context.Background()
	it := ms.AddItem(catalog.Item{Name: "Metformina 850mg", TaxRate: decimal.Zero})
	a := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "A", ExpiryDate: date(2024, 8, 1), QtyOnHand: 5})
	b := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "B", ExpiryDate: date(2025, 8, 1), QtyOnHand: 100})
	sale := openSale(t, svc)

	lots, err := svc.ListAvailableLots(ctx, it.ID)
	require.NoError(t, err)
	picks, err := sales.PlanFEFO(lots, 5, now)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, a.ID, picks[0].LotID)

	line, err := svc.Allocate(ctx, sale.ID, sales.AllocateRequest{LotID: picks[0].LotID, Quantity: 5, UnitPrice: dec("0.30"), ActorID: 4})
	require.NoError(t, err)
	assert.Equal(t, "1.50", line.Subtotal.StringFixed(2))
	assert.Equal(t, "Metformina 850mg", line.Description)

	after := map[int64]int64{}
	for _, l := range ms.Lots() {
		after[l.ID] = l.QtyOnHand
	}
	assert.Equal(t, int64(0), after[a.ID])
	assert.Equal(t, int64(100), after[b.ID])

	moves := ms.AllMovements()
	last := moves[len(moves)-1]
	assert.Equal(t, inventory.MoveSaleIssue, last.Type)
	assert.Equal(t, int64(-5), last.Qty)
	assert.Equal(t, "SALE-1", last.Reference)
	assert.Equal(t, int64(4), last.ActorID)
}

func TestAllocate_OverAllocationLeavesStateUnchanged(t *testing.T) {
	ms, svc := newService(t)
	it := ms.AddItem(catalog.Item{Name: "Salbutamol"})
	lot := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "S1", ExpiryDate: date(2025, 1, 1), QtyOnHand: 5})
	sale := openSale(t, svc)
	moves := len(ms.AllMovements())

	_, err := svc.Allocate(context.Background(), sale.ID, sales.AllocateRequest{LotID: lot.ID, Quantity: 6, UnitPrice: dec("2.00")})
	require.ErrorIs(t, err, errs.ErrInsufficientStock)
	var ise *errs.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(5), ise.Available)
	assert.Equal(t, int64(6), ise.Requested)

	assert.Equal(t, int64(5), ms.Lots()[0].QtyOnHand)
	assert.Len(t, ms.AllMovements(), moves)
	assert.Empty(t, ms.AllSaleLines())
}

func TestAllocate_Rejects(t *testing.T) {
	ms, svc := newService(t)
	ctx := context.Background()
	it := ms.AddItem(catalog.Item{Name: "Diclofenaco gel"})
	good := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "G", ExpiryDate: date(2025, 1, 1), QtyOnHand: 10})
	expired := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "X", ExpiryDate: date(2024, 3, 31), QtyOnHand: 10})
	sale := openSale(t, svc)

	cases := []struct {
		name string
		sale int64
		req  sales.AllocateRequest
		want error
	}{
		{name: "zero quantity", sale: sale.ID, req: sales.AllocateRequest{LotID: good.ID, Quantity: 0, UnitPrice: dec("1")}, want: errs.ErrValidation},
		{name: "negative quantity", sale: sale.ID, req: sales.AllocateRequest{LotID: good.ID, Quantity: -2, UnitPrice: dec("1")}, want: errs.ErrValidation},
		{name: "zero price", sale: sale.ID, req: sales.AllocateRequest{LotID: good.ID, Quantity: 1, UnitPrice: decimal.Zero}, want: errs.ErrValidation},
		{name: "expired lot", sale: sale.ID, req: sales.AllocateRequest{LotID: expired.ID, Quantity: 1, UnitPrice: dec("1")}, want: errs.ErrValidation},
		{name: "unknown lot", sale: sale.ID, req: sales.AllocateRequest{LotID: 404, Quantity: 1, UnitPrice: dec("1")}, want: errs.ErrNotFound},
		{name: "unknown sale", sale: 404, req: sales.AllocateRequest{LotID: good.ID, Quantity: 1, UnitPrice: dec("1")}, want: errs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Allocate(ctx, tc.sale, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, ms.AllSaleLines())
}

func TestAllocateFEFO_SpansLotsInOneUnit(t *testing.T) {
	ms, svc := newService(t)
	ctx := context.Background()
	it := ms.AddItem(catalog.Item{Name: "Cetirizina"})
	first := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "C1", ExpiryDate: date(2024, 5, 1), QtyOnHand: 4})
	second := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "C2", ExpiryDate: date(2024, 9, 1), QtyOnHand: 10})
	sale := openSale(t, svc)

	lines, err := svc.AllocateFEFO(ctx, sale.ID, it.ID, 7, dec("0.50"), 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, first.ID, lines[0].LotID)
	assert.Equal(t, int64(4), lines[0].Quantity)
	assert.Equal(t, second.ID, lines[1].LotID)
	assert.Equal(t, int64(3), lines[1].Quantity)

	_, err = svc.AllocateFEFO(ctx, sale.ID, it.ID, 8, dec("0.50"), 1)
	require.ErrorIs(t, err, errs.ErrInsufficientStock)
	assert.Len(t, ms.AllSaleLines(), 2)
}

func TestFinalizeAndRender(t *testing.T) {
	ms, svc := newService(t)
	ctx := context.Background()
	taxed := ms.AddItem(catalog.Item{Name: "Shampoo anticaspa", TaxRate: decimal.NewFromInt(15)})
	exempt := ms.AddItem(catalog.Item{Name: "Amoxicilina 500mg", TaxRate: decimal.Zero})
	tl := ms.AddLot(inventory.Lot{ItemID: taxed.ID, Code: "T", ExpiryDate: date(2026, 1, 1), QtyOnHand: 10})
	el := ms.AddLot(inventory.Lot{ItemID: exempt.ID, Code: "E", ExpiryDate: date(2026, 1, 1), QtyOnHand: 10})

	sale, err := svc.OpenSale(ctx, sales.NewSale{Customer: &sales.Customer{Identification: "1712345678", Name: "Ana Pérez"}})
	require.NoError(t, err)
	require.NotNil(t, sale.CustomerID)
	assert.Equal(t, sri.PaymentCash, sale.PaymentMethod)

	_, err = svc.Finalize(ctx, sale.ID, 1)
	assert.ErrorIs(t, err, errs.ErrValidation, "a sale without lines cannot be finalized")

	_, err = svc.Allocate(ctx, sale.ID, sales.AllocateRequest{LotID: tl.ID, Quantity: 1, UnitPrice: dec("8.00")})
	require.NoError(t, err)
	_, err = svc.Allocate(ctx, sale.ID, sales.AllocateRequest{LotID: el.ID, Quantity: 2, UnitPrice: dec("1.25")})
	require.NoError(t, err)

	_, err = svc.RenderInvoice(ctx, sale.ID)
	assert.ErrorIs(t, err, errs.ErrValidation, "open sales have no invoice")

	done, err := svc.Finalize(ctx, sale.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusFinalized, done.Status)
	assert.Equal(t, int64(1), done.Sequential)
	assert.NoError(t, sri.ValidateAccessKey(done.AccessKey))
	assert.Equal(t, "01042024", done.AccessKey[:8])
	assert.Equal(t, "001002", done.AccessKey[24:30])
	assert.Equal(t, "10.50", done.Subtotal.StringFixed(2))
	assert.Equal(t, "1.20", done.Tax.StringFixed(2))
	assert.Equal(t, "11.70", done.Total.StringFixed(2))

	_, err = svc.Finalize(ctx, sale.ID, 1)
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.Allocate(ctx, sale.ID, sales.AllocateRequest{LotID: el.ID, Quantity: 1, UnitPrice: dec("1.25")})
	assert.ErrorIs(t, err, errs.ErrValidation, "finalized sales take no more lines")

	stored, err := svc.Sale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, done.AccessKey, stored.AccessKey)

	doc, err := svc.RenderInvoice(ctx, sale.ID)
	require.NoError(t, err)
	var parsed struct {
		Key    string `xml:"infoTributaria>claveAcceso"`
		IDType string `xml:"infoFactura>tipoIdentificacionComprador"`
		Total  string `xml:"infoFactura>importeTotal"`
	}
	require.NoError(t, xml.Unmarshal(doc, &parsed))
	assert.Equal(t, done.AccessKey, parsed.Key)
	assert.Equal(t, sri.IDTypeCedula, parsed.IDType)
	assert.Equal(t, "11.70", parsed.Total)

	next := openSale(t, svc)
	_, err = svc.Allocate(ctx, next.ID, sales.AllocateRequest{LotID: el.ID, Quantity: 1, UnitPrice: dec("1.25")})
	require.NoError(t, err)
	second, err := svc.Finalize(ctx, next.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Sequential)
	assert.NotEqual(t, done.AccessKey, second.AccessKey)
}

type stampSigner struct{ cred sri.Credential }

func (s *stampSigner) Sign(_ context.Context, doc []byte, cred sri.Credential) ([]byte, error) {
	s.cred = cred
	return append(doc, []byte("<!-- signed -->")...), nil
}

func TestRenderInvoice_UsesSigner(t *testing.T) {
	signer := &stampSigner{}
	cred := sri.Credential{Path: "/etc/pharmacy/firma.p12", Password: "secret"}
	ms, svc := newService(t, sales.WithSigner(signer, cred))
	ctx := context.Background()
	it := ms.AddItem(catalog.Item{Name: "Alcohol 70%"})
	lot := ms.AddLot(inventory.Lot{ItemID: it.ID, Code: "AL", ExpiryDate: date(2027, 1, 1), QtyOnHand: 3})

	sale := openSale(t, svc)
	_, err := svc.Allocate(ctx, sale.ID, sales.AllocateRequest{LotID: lot.ID, Quantity: 1, UnitPrice: dec("2.00")})
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, sale.ID, 1)
	require.NoError(t, err)

	doc, err := svc.RenderInvoice(ctx, sale.ID)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<!-- signed -->")
	assert.Contains(t, string(doc), "<identificacionComprador>9999999999999</identificacionComprador>")
	assert.Equal(t, cred, signer.cred)
}
