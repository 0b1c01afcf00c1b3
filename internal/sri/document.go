package sri

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
)

const (
	IDTypeRUC           = "04"
	IDTypeCedula        = "05"
	IDTypePassport      = "06"
	IDTypeFinalConsumer = "07"

	finalConsumerID   = "9999999999999"
	finalConsumerName = "CONSUMIDOR FINAL"

	taxIVA          = "2"
	PaymentCash     = "01"
	documentVersion = "1.1.0"
)

// IVA rate (percent) to SRI codigoPorcentaje.
var ivaCodes = map[string]string{
	"0":  "0",
	"5":  "5",
	"8":  "8",
	"12": "2",
	"13": "10",
	"14": "3",
	"15": "4",
}

// Invoice is what a finalized sale hands to the renderer.
type Invoice struct {
	AccessKey     string
	Sequential    int64
	IssuedAt      time.Time
	PaymentMethod string
	Lines         []InvoiceLine
}

type InvoiceLine struct {
	Code        string
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal // percent
}

func (l InvoiceLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)).Round(2)
}

func (l InvoiceLine) Tax() decimal.Decimal {
	return l.Subtotal().Mul(l.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
}

// Buyer is the customer block; nil or an empty identification renders a
// final consumer.
type Buyer struct {
	Identification string
	Name           string
	Address        string
	Email          string
}

// BuyerIDType resolves the identification type from the identification
// length and returns the identification to print.
func BuyerIDType(identification string) (code, id string) {
	id = strings.TrimSpace(identification)
	switch len(id) {
	case 0:
		return IDTypeFinalConsumer, finalConsumerID
	case 10:
		return IDTypeCedula, id
	case 13:
		return IDTypeRUC, id
	}
	return IDTypePassport, id
}

// TaxBucket is the sum of the lines sharing one IVA rate.
type TaxBucket struct {
	Rate  decimal.Decimal
	Code  string
	Base  decimal.Decimal
	Value decimal.Decimal
}

// Totals groups lines by tax rate, lowest rate first.
func Totals(lines []InvoiceLine) ([]TaxBucket, error) {
	byRate := map[string]*TaxBucket{}
	for i, l := range lines {
		code, err := ivaCode(l.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		key := l.TaxRate.String()
		b, ok := byRate[key]
		if !ok {
			b = &TaxBucket{Rate: l.TaxRate, Code: code}
			byRate[key] = b
		}
		b.Base = b.Base.Add(l.Subtotal())
		b.Value = b.Value.Add(l.Tax())
	}
	out := make([]TaxBucket, 0, len(byRate))
	for _, b := range byRate {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate.LessThan(out[j].Rate) })
	return out, nil
}

func ivaCode(rate decimal.Decimal) (string, error) {
	code, ok := ivaCodes[rate.String()]
	if !ok {
		return "", errs.Invalid("tax_rate", fmt.Sprintf("unsupported IVA rate %s", rate))
	}
	return code, nil
}

type factura struct {
	XMLName         xml.Name         `xml:"factura"`
	ID              string           `xml:"id,attr"`
	Version         string           `xml:"version,attr"`
	InfoTributaria  infoTributaria   `xml:"infoTributaria"`
	InfoFactura     infoFactura      `xml:"infoFactura"`
	Detalles        []detalle        `xml:"detalles>detalle"`
	CamposAdicional []campoAdicional `xml:"infoAdicional>campoAdicional,omitempty"`
}

type infoTributaria struct {
	Ambiente        int    `xml:"ambiente"`
	TipoEmision     string `xml:"tipoEmision"`
	RazonSocial     string `xml:"razonSocial"`
	NombreComercial string `xml:"nombreComercial,omitempty"`
	RUC             string `xml:"ruc"`
	ClaveAcceso     string `xml:"claveAcceso"`
	CodDoc          string `xml:"codDoc"`
	Estab           string `xml:"estab"`
	PtoEmi          string `xml:"ptoEmi"`
	Secuencial      string `xml:"secuencial"`
	DirMatriz       string `xml:"dirMatriz"`
}

type infoFactura struct {
	FechaEmision                string          `xml:"fechaEmision"`
	DirEstablecimiento          string          `xml:"dirEstablecimiento,omitempty"`
	ObligadoContabilidad        string          `xml:"obligadoContabilidad"`
	TipoIdentificacionComprador string          `xml:"tipoIdentificacionComprador"`
	RazonSocialComprador        string          `xml:"razonSocialComprador"`
	IdentificacionComprador     string          `xml:"identificacionComprador"`
	DireccionComprador          string          `xml:"direccionComprador,omitempty"`
	TotalSinImpuestos           string          `xml:"totalSinImpuestos"`
	TotalDescuento              string          `xml:"totalDescuento"`
	TotalConImpuestos           []totalImpuesto `xml:"totalConImpuestos>totalImpuesto"`
	Propina                     string          `xml:"propina"`
	ImporteTotal                string          `xml:"importeTotal"`
	Moneda                      string          `xml:"moneda"`
	Pagos                       []pago          `xml:"pagos>pago"`
}

type totalImpuesto struct {
	Codigo           string `xml:"codigo"`
	CodigoPorcentaje string `xml:"codigoPorcentaje"`
	BaseImponible    string `xml:"baseImponible"`
	Valor            string `xml:"valor"`
}

type pago struct {
	FormaPago string `xml:"formaPago"`
	Total     string `xml:"total"`
}

type detalle struct {
	CodigoPrincipal        string     `xml:"codigoPrincipal"`
	Descripcion            string     `xml:"descripcion"`
	Cantidad               string     `xml:"cantidad"`
	PrecioUnitario         string     `xml:"precioUnitario"`
	Descuento              string     `xml:"descuento"`
	PrecioTotalSinImpuesto string     `xml:"precioTotalSinImpuesto"`
	Impuestos              []impuesto `xml:"impuestos>impuesto"`
}

type impuesto struct {
	Codigo           string `xml:"codigo"`
	CodigoPorcentaje string `xml:"codigoPorcentaje"`
	Tarifa           string `xml:"tarifa"`
	BaseImponible    string `xml:"baseImponible"`
	Valor            string `xml:"valor"`
}

type campoAdicional struct {
	Nombre string `xml:"nombre,attr"`
	Valor  string `xml:",chardata"`
}

// RenderDocument serializes an invoice as a factura v1.1.0 document. It does
// no I/O and does not sign.
func RenderDocument(inv Invoice, m MerchantConfig, buyer *Buyer) ([]byte, error) {
	// fechaEmision must be the key's date, whatever zone IssuedAt was read in.
	issued, err := KeyDate(inv.AccessKey)
	if err != nil {
		return nil, err
	}
	if len(inv.Lines) == 0 {
		return nil, errs.Invalid("lines", "invoice has no lines")
	}
	buckets, err := Totals(inv.Lines)
	if err != nil {
		return nil, err
	}

	var b Buyer
	if buyer != nil {
		b = *buyer
	}
	idType, id := BuyerIDType(b.Identification)
	name := b.Name
	if idType == IDTypeFinalConsumer || name == "" {
		name = finalConsumerName
	}

	subtotal, tax := decimal.Zero, decimal.Zero
	totals := make([]totalImpuesto, 0, len(buckets))
	for _, bk := range buckets {
		subtotal = subtotal.Add(bk.Base)
		tax = tax.Add(bk.Value)
		totals = append(totals, totalImpuesto{
			Codigo:           taxIVA,
			CodigoPorcentaje: bk.Code,
			BaseImponible:    money(bk.Base),
			Valor:            money(bk.Value),
		})
	}
	total := subtotal.Add(tax)

	payment := inv.PaymentMethod
	if payment == "" {
		payment = PaymentCash
	}
	accounting := "NO"
	if m.KeepsAccounting {
		accounting = "SI"
	}

	doc := factura{
		ID:      "comprobante",
		Version: documentVersion,
		InfoTributaria: infoTributaria{
			Ambiente:        m.Environment,
			TipoEmision:     emissionFixed,
			RazonSocial:     m.LegalName,
			NombreComercial: m.TradeName,
			RUC:             m.RUC,
			ClaveAcceso:     inv.AccessKey,
			CodDoc:          DocInvoice,
			Estab:           pad(m.Establishment, 3),
			PtoEmi:          pad(m.EmissionPoint, 3),
			Secuencial:      fmt.Sprintf("%09d", inv.Sequential),
			DirMatriz:       m.HeadOfficeAddress,
		},
		InfoFactura: infoFactura{
			FechaEmision:                issued.Format("02/01/2006"),
			DirEstablecimiento:          m.EstablishmentAddress,
			ObligadoContabilidad:        accounting,
			TipoIdentificacionComprador: idType,
			RazonSocialComprador:        name,
			IdentificacionComprador:     id,
			DireccionComprador:          b.Address,
			TotalSinImpuestos:           money(subtotal),
			TotalDescuento:              money(decimal.Zero),
			TotalConImpuestos:           totals,
			Propina:                     money(decimal.Zero),
			ImporteTotal:                money(total),
			Moneda:                      "DOLAR",
			Pagos:                       []pago{{FormaPago: payment, Total: money(total)}},
		},
	}

	for _, l := range inv.Lines {
		code, _ := ivaCode(l.TaxRate) // checked by Totals
		doc.Detalles = append(doc.Detalles, detalle{
			CodigoPrincipal:        l.Code,
			Descripcion:            l.Description,
			Cantidad:               strconv.FormatInt(l.Quantity, 10),
			PrecioUnitario:         l.UnitPrice.StringFixed(4),
			Descuento:              money(decimal.Zero),
			PrecioTotalSinImpuesto: money(l.Subtotal()),
			Impuestos: []impuesto{{
				Codigo:           taxIVA,
				CodigoPorcentaje: code,
				Tarifa:           l.TaxRate.String(),
				BaseImponible:    money(l.Subtotal()),
				Valor:            money(l.Tax()),
			}},
		})
	}
	if b.Email != "" {
		doc.CamposAdicional = append(doc.CamposAdicional, campoAdicional{Nombre: "Email", Valor: b.Email})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal factura: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }
