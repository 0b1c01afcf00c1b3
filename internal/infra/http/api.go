package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/purchasing"
	"github.com/Spok95/pharmacy-ledger/internal/domain/sales"
	"github.com/Spok95/pharmacy-ledger/internal/report"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// API exposes the ledger, receiving and sales operations as JSON endpoints.
type API struct {
	catalog    *catalog.Service
	ledger     *inventory.Ledger
	purchasing *purchasing.Service
	sales      *sales.Service
	log        *slog.Logger
}

func NewAPI(cat *catalog.Service, ledger *inventory.Ledger, purch *purchasing.Service, sal *sales.Service, log *slog.Logger) *API {
	return &API{catalog: cat, ledger: ledger, purchasing: purch, sales: sal, log: log}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/purchase-orders", a.createOrder)
	mux.HandleFunc("GET /api/purchase-orders/{id}", a.getOrder)
	mux.HandleFunc("PUT /api/purchase-orders/{id}/lines", a.updateLines)
	mux.HandleFunc("GET /api/purchase-orders/{id}/draft", a.draft)
	mux.HandleFunc("POST /api/purchase-orders/{id}/receive", a.receive)

	mux.HandleFunc("GET /api/items/{id}/lots", a.availableLots)

	mux.HandleFunc("POST /api/sales", a.openSale)
	mux.HandleFunc("GET /api/sales/{id}", a.getSale)
	mux.HandleFunc("POST /api/sales/{id}/lines", a.allocate)
	mux.HandleFunc("POST /api/sales/{id}/finalize", a.finalize)
	mux.HandleFunc("GET /api/sales/{id}/invoice.xml", a.invoice)

	mux.HandleFunc("POST /api/lots/{id}/adjustments", a.adjust)
	mux.HandleFunc("POST /api/lots/{id}/returns", a.returnStock)
	mux.HandleFunc("GET /api/lots/{id}/movements", a.movements)
	mux.HandleFunc("GET /api/lots/{id}/kardex.xlsx", a.kardex)
	mux.HandleFunc("GET /api/stock.xlsx", a.stockSheet)
}

// purchasing

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var in purchasing.NewOrder
	if err := decode(r, &in); err != nil {
		writeError(w, a.log, err)
		return
	}
	o, err := a.purchasing.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderView(o))
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	o, err := a.purchasing.Order(r.Context(), id)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}

func (a *API) updateLines(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	var in struct {
		Lines []purchasing.OrderLine `json:"lines"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, a.log, err)
		return
	}
	o, _, err := a.purchasing.UpdateLines(r.Context(), id, in.Lines)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}

func (a *API) draft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	lines, err := a.purchasing.Draft(r.Context(), id)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": newReceivingLineViews(lines)})
}

type receiveRequest struct {
	ActorID int64               `json:"actor_id"`
	Lines   []receivingLineView `json:"lines"`
}

func (req receiveRequest) lines() ([]purchasing.ReceivingLine, error) {
	out := make([]purchasing.ReceivingLine, 0, len(req.Lines))
	for i, l := range req.Lines {
		rl := purchasing.ReceivingLine{
			ItemID:        l.ItemID,
			QuantityBoxes: l.QuantityBoxes,
			UnitPriceBox:  l.UnitPriceBox,
			LotCode:       l.LotCode,
		}
		if l.ExpiryDate != "" {
			d, err := time.Parse(time.DateOnly, l.ExpiryDate)
			if err != nil {
				return nil, errs.Invalid(fmt.Sprintf("lines[%d].expiry_date", i+1), "must be a date like 2006-01-02")
			}
			rl.ExpiryDate = d
		}
		out = append(out, rl)
	}
	return out, nil
}

func (a *API) receive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	var req receiveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, a.log, err)
		return
	}
	lines, err := req.lines()
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	sum, err := a.purchasing.Receive(r.Context(), id, lines, req.ActorID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptSummaryView(sum))
}

// sales

func (a *API) availableLots(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	lots, err := a.sales.ListAvailableLots(r.Context(), id)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lots": newLotViews(lots)})
}

func (a *API) openSale(w http.ResponseWriter, r *http.Request) {
	var in sales.NewSale
	if err := decode(r, &in); err != nil {
		writeError(w, a.log, err)
		return
	}
	s, err := a.sales.OpenSale(r.Context(), in)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSaleView(s))
}

func (a *API) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	s, err := a.sales.Sale(r.Context(), id)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSaleView(s))
}

// allocateRequest names either a lot, or an item to allocate FEFO across
// its lots.
type allocateRequest struct {
	LotID     int64           `json:"lot_id"`
	ItemID    int64           `json:"item_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ActorID   int64           `json:"actor_id"`
}

func (a *API) allocate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	var req allocateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, a.log, err)
		return
	}

	var lines []sales.SaleLine
	switch {
	case req.LotID != 0:
		line, err := a.sales.Allocate(r.Context(), id, sales.AllocateRequest{
			LotID:     req.LotID,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			ActorID:   req.ActorID,
		})
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		lines = []sales.SaleLine{*line}
	case req.ItemID != 0:
		lines, err = a.sales.AllocateFEFO(r.Context(), id, req.ItemID, req.Quantity, req.UnitPrice, req.ActorID)
		if err != nil {
			writeError(w, a.log, err)
			return
		}
	default:
		writeError(w, a.log, errs.Invalid("lot_id", "or item_id is required"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"lines": newSaleLineViews(lines)})
}

func (a *API) finalize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	var req struct {
		ActorID int64 `json:"actor_id"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, a.log, err)
			return
		}
	}
	s, err := a.sales.Finalize(r.Context(), id, req.ActorID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSaleView(s))
}

func (a *API) invoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	doc, err := a.sales.RenderInvoice(r.Context(), id)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeFile(w, "application/xml", "", doc)
}

// ledger

func (a *API) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	var req struct {
		Delta   int64  `json:"delta"`
		ActorID int64  `json:"actor_id"`
		Note    string `json:"note"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.log, err)
		return
	}
	m, err := a.ledger.Adjust(r.Context(), id, req.Delta, req.ActorID, req.Note)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMovementView(*m))
}

func (a *API) returnStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	var req struct {
		Quantity  int64  `json:"quantity"`
		Reference string `json:"reference"`
		ActorID   int64  `json:"actor_id"`
		Note      string `json:"note"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, a.log, err)
		return
	}
	m, err := a.ledger.Return(r.Context(), id, req.Quantity, req.Reference, req.ActorID, req.Note)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMovementView(*m))
}

func (a *API) movements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	moves, err := a.ledger.Movements(r.Context(), id)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	out := make([]movementView, 0, len(moves))
	for _, m := range moves {
		out = append(out, newMovementView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": out})
}

func (a *API) kardex(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	lot, err := a.ledger.Lot(r.Context(), id)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	it, err := a.catalog.Item(r.Context(), lot.ItemID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	moves, err := a.ledger.Movements(r.Context(), id)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	data, err := report.Kardex(*it, *lot, moves)
	if err != nil {
		writeError(w, a.log, fmt.Errorf("kardex: %w", err))
		return
	}
	writeFile(w, xlsxType, fmt.Sprintf("kardex_%s_%s.xlsx", lot.Code, a.ledger.Today().Format("20060102")), data)
}

func (a *API) stockSheet(w http.ResponseWriter, r *http.Request) {
	lots, err := a.ledger.OnHandLots(r.Context())
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	data, err := report.StockSheet(r.Context(), lots, a.catalog)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeFile(w, xlsxType, fmt.Sprintf("stock_%s.xlsx", a.ledger.Today().Format("20060102")), data)
}
