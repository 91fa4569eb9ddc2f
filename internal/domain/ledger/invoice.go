package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the VAT rate applied when the caller supplies none
var DefaultTaxRate = decimal.RequireFromString("0.23")

const moneyPlaces = 2

// InvoiceItem is one line of a sale
type InvoiceItem struct {
	ProductID uuid.UUID
	Code      string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal // excluding tax
	Subtotal  decimal.Decimal // Quantity * UnitPrice, unrounded
}

// NewInvoiceItem creates a line item
func NewInvoiceItem(productID uuid.UUID, code, name string, quantity int, unitPrice decimal.Decimal) (InvoiceItem, error) {
	if strings.TrimSpace(code) == "" {
		return InvoiceItem{}, shared.NewDomainError("INVALID_ITEM", "Item code cannot be empty")
	}
	if quantity <= 0 {
		return InvoiceItem{}, shared.NewDomainError("INVALID_QUANTITY",
			fmt.Sprintf("Quantity for %s must be positive", code))
	}
	if unitPrice.IsNegative() {
		return InvoiceItem{}, shared.NewDomainError("INVALID_PRICE",
			fmt.Sprintf("Unit price for %s cannot be negative", code))
	}
	return InvoiceItem{
		ProductID: productID,
		Code:      code,
		Name:      name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// Totals are the amounts derived from an invoice's lines and tax rate
type Totals struct {
	ExclTax decimal.Decimal
	Tax     decimal.Decimal
	InclTax decimal.Decimal
}

// ComputeTotals derives the invoice amounts, rounding each to cents:
// excl = round(sum(qty*price)), tax = round(excl*rate), incl = round(excl+tax).
func ComputeTotals(items []InvoiceItem, taxRate decimal.Decimal) Totals {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	excl := sum.Round(moneyPlaces)
	tax := excl.Mul(taxRate).Round(moneyPlaces)
	return Totals{
		ExclTax: excl,
		Tax:     tax,
		InclTax: excl.Add(tax).Round(moneyPlaces),
	}
}

// Invoice is a committed sale. It is immutable once created except for the
// single attachment of its receipt reference.
type Invoice struct {
	shared.BaseEntity
	Number       string
	Sequence     int64
	Tenant       shared.Tenant
	Seller       string
	Items        []InvoiceItem
	TotalExclTax decimal.Decimal
	TaxRate      decimal.Decimal
	TaxAmount    decimal.Decimal
	TotalInclTax decimal.Decimal
	ReceiptRef   string
	IssuedAt     time.Time
}

// NewInvoice builds an invoice with totals computed from its items
func NewInvoice(tenant shared.Tenant, seller string, items []InvoiceItem, taxRate decimal.Decimal, number string, sequence int64, issuedAt time.Time) (*Invoice, error) {
	if _, err := shared.NewTenant(tenant.Company, tenant.ShopType); err != nil {
		return nil, err
	}
	if strings.TrimSpace(seller) == "" {
		return nil, shared.NewDomainError("INVALID_SELLER", "Seller cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("EMPTY_INVOICE", "Invoice must have at least one item")
	}
	if err := validateTaxRate(taxRate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Invoice number cannot be empty")
	}

	totals := ComputeTotals(items, taxRate)
	lines := make([]InvoiceItem, len(items))
	copy(lines, items)

	base := shared.NewBaseEntity()
	base.CreatedAt = issuedAt
	base.UpdatedAt = issuedAt

	return &Invoice{
		BaseEntity:   base,
		Number:       number,
		Sequence:     sequence,
		Tenant:       tenant,
		Seller:       strings.TrimSpace(seller),
		Items:        lines,
		TotalExclTax: totals.ExclTax,
		TaxRate:      taxRate,
		TaxAmount:    totals.Tax,
		TotalInclTax: totals.InclTax,
		IssuedAt:     issuedAt,
	}, nil
}

// AttachReceipt records where the receipt document was written. It can
// only happen once.
func (inv *Invoice) AttachReceipt(ref string) error {
	if inv.ReceiptRef != "" {
		return shared.NewDomainError(shared.ErrInvalidState.Code, "Invoice "+inv.Number+" already has a receipt")
	}
	if strings.TrimSpace(ref) == "" {
		return shared.NewDomainError("INVALID_RECEIPT", "Receipt reference cannot be empty")
	}
	inv.ReceiptRef = ref
	inv.UpdatedAt = time.Now()
	return nil
}

// HasReceipt reports whether the receipt reference is attached
func (inv *Invoice) HasReceipt() bool {
	return inv.ReceiptRef != ""
}

// Month returns the calendar month key (YYYY-MM) of the invoice
func (inv *Invoice) Month() string {
	return inv.IssuedAt.Format("2006-01")
}

// ItemCount returns the total number of units sold
func (inv *Invoice) ItemCount() int {
	n := 0
	for _, item := range inv.Items {
		n += item.Quantity
	}
	return n
}

// Validate checks that the stored totals agree with a recomputation from
// the items and tax rate.
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.Number) == "" {
		return shared.NewDomainError("INVALID_NUMBER", "Invoice number cannot be empty")
	}
	if strings.TrimSpace(inv.Seller) == "" {
		return shared.NewDomainError("INVALID_SELLER", "Seller cannot be empty")
	}
	if len(inv.Items) == 0 {
		return shared.NewDomainError("EMPTY_INVOICE", "Invoice must have at least one item")
	}
	for _, item := range inv.Items {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return shared.NewDomainError("INVALID_ITEM", "Invalid line for "+item.Code)
		}
	}
	if err := validateTaxRate(inv.TaxRate); err != nil {
		return err
	}
	totals := ComputeTotals(inv.Items, inv.TaxRate)
	if !totals.ExclTax.Equal(inv.TotalExclTax) || !totals.InclTax.Equal(inv.TotalInclTax) {
		return shared.NewDomainError("INCONSISTENT_TOTALS",
			fmt.Sprintf("Invoice %s totals %s/%s do not match items (%s/%s)",
				inv.Number, inv.TotalExclTax, inv.TotalInclTax, totals.ExclTax, totals.InclTax))
	}
	return nil
}

// InvoiceNotFoundError names the number that could not be resolved
func InvoiceNotFoundError(number string) error {
	return shared.NewDomainError(shared.ErrInvoiceNotFound.Code, "Invoice "+number+" not found")
}

func validateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError("INVALID_TAX_RATE", "Tax rate must be between 0 and 1")
	}
	return nil
}
