package printing

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"maps"
	"strings"
	"time"

	"github.com/pos/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/receipt.html.tmpl
var receiptTemplate string

const htmlExt = ".html"

// HTMLRenderer binds invoices to the receipt template using Go's
// html/template package with formatting functions for pt-PT receipts.
type HTMLRenderer struct {
	funcMap template.FuncMap
	tmpl    *template.Template
}

// HTMLRendererOption configures the renderer
type HTMLRendererOption func(*HTMLRenderer)

// WithTemplate replaces the embedded receipt template
func WithTemplate(content string) HTMLRendererOption {
	return func(r *HTMLRenderer) {
		r.tmpl = template.Must(template.New("receipt").Funcs(r.funcMap).Parse(content))
	}
}

// WithFuncs adds extra template functions
func WithFuncs(funcs template.FuncMap) HTMLRendererOption {
	return func(r *HTMLRenderer) {
		maps.Copy(r.funcMap, funcs)
	}
}

// NewHTMLRenderer creates a renderer for the embedded receipt template
func NewHTMLRenderer(opts ...HTMLRendererOption) *HTMLRenderer {
	r := &HTMLRenderer{
		funcMap: template.FuncMap{
			"formatMoney":    formatMoney,
			"formatDecimal":  formatDecimal,
			"formatPercent":  formatPercent,
			"formatDate":     formatDate,
			"formatDateTime": formatDateTime,
			"title":          titleCase,
			"upper":          strings.ToUpper,
			"truncate":       truncate,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tmpl == nil {
		r.tmpl = template.Must(template.New("receipt").Funcs(r.funcMap).Parse(receiptTemplate))
	}
	return r
}

// receiptView is the data bound to the receipt template
type receiptView struct {
	Number       string
	Company      string
	ShopType     string
	Seller       string
	IssuedAt     time.Time
	Items        []receiptLine
	TotalExclTax decimal.Decimal
	TaxRate      decimal.Decimal
	TaxAmount    decimal.Decimal
	TotalInclTax decimal.Decimal
}

type receiptLine struct {
	Code      string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

func newReceiptView(inv *ledger.Invoice) receiptView {
	lines := make([]receiptLine, len(inv.Items))
	for i, item := range inv.Items {
		lines[i] = receiptLine{
			Code:      item.Code,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		}
	}
	return receiptView{
		Number:       inv.Number,
		Company:      inv.Tenant.Company,
		ShopType:     string(inv.Tenant.ShopType),
		Seller:       inv.Seller,
		IssuedAt:     inv.IssuedAt,
		Items:        lines,
		TotalExclTax: inv.TotalExclTax,
		TaxRate:      inv.TaxRate,
		TaxAmount:    inv.TaxAmount,
		TotalInclTax: inv.TotalInclTax,
	}
}

// Render produces the self-contained HTML receipt for an invoice
func (r *HTMLRenderer) Render(ctx context.Context, inv *ledger.Invoice) (*Document, error) {
	if inv == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "invoice is nil", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "operation cancelled", err)
	}

	startTime := time.Now()

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, newReceiptView(inv)); err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to execute receipt template", err)
	}

	return &Document{
		Content:        buf.Bytes(),
		Ext:            htmlExt,
		RenderDuration: time.Since(startTime),
	}, nil
}

// =============================================================================
// Template Functions
// =============================================================================

// formatMoney formats an amount in pt-PT style with the euro sign
// Example: 1234.5 -> "1.234,50 €"
func formatMoney(v any) string {
	d := toDecimal(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	intPart, decPart, _ := strings.Cut(d.StringFixed(2), ".")

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune('.')
		}
		result.WriteRune(c)
	}

	return sign + result.String() + "," + decPart + " €"
}

// formatDecimal formats a decimal with the given precision
func formatDecimal(v any, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatPercent formats a rate as a percentage without trailing zeros
// Example: 0.23 -> "23%", 0.065 -> "6.5%"
func formatPercent(v any) string {
	return toDecimal(v).Mul(decimal.NewFromInt(100)).String() + "%"
}

// formatDate formats a time as dd/mm/yyyy
func formatDate(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// formatDateTime formats a time as dd/mm/yyyy hh:mm
func formatDateTime(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}

// titleCase converts an upper-case label to title case using Portuguese rules
// Example: "RESTAURACAO" -> "Restauracao"
func titleCase(s string) string {
	return cases.Title(language.Portuguese).String(strings.ToLower(s))
}

// truncate truncates a string to max runes, adding an ellipsis
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// toDecimal converts various types to decimal.Decimal
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// toTime converts various types to time.Time
func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case string:
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

var _ ReceiptRenderer = (*HTMLRenderer)(nil)
