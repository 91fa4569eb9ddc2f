package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/ledger"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest represents a sale to commit to the ledger
type CreateInvoiceRequest struct {
	Company  string               `json:"company" validate:"notblank,max=200"`
	ShopType string               `json:"shop_type" validate:"shoptype"`
	Seller   string               `json:"seller" validate:"notblank,max=100"`
	Items    []InvoiceLineRequest `json:"items" validate:"min=1,dive"`
	// TaxRate overrides the configured default when set
	TaxRate *decimal.Decimal `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Tenant returns the tenant named by the request
func (r CreateInvoiceRequest) Tenant() shared.Tenant {
	return shared.Tenant{Company: r.Company, ShopType: shared.ShopType(r.ShopType)}
}

// InvoiceLineRequest is one requested line; the unit price defaults to the
// catalog price
type InvoiceLineRequest struct {
	Code      string           `json:"code" validate:"notblank,max=50"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

// InvoiceItemResponse represents an invoice line in responses
type InvoiceItemResponse struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// InvoiceResponse represents a committed invoice in responses
type InvoiceResponse struct {
	ID           uuid.UUID             `json:"id"`
	Number       string                `json:"number"`
	Sequence     int64                 `json:"sequence"`
	Company      string                `json:"company"`
	ShopType     string                `json:"shop_type"`
	Seller       string                `json:"seller"`
	Items        []InvoiceItemResponse `json:"items"`
	ItemCount    int                   `json:"item_count"`
	TotalExclTax decimal.Decimal       `json:"total_excl_tax"`
	TaxRate      decimal.Decimal       `json:"tax_rate"`
	TaxAmount    decimal.Decimal       `json:"tax_amount"`
	TotalInclTax decimal.Decimal       `json:"total_incl_tax"`
	ReceiptRef   string                `json:"receipt,omitempty"`
	IssuedAt     time.Time             `json:"issued_at"`
}

// ToInvoiceResponse converts a domain invoice to a response
func ToInvoiceResponse(inv *ledger.Invoice) InvoiceResponse {
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = InvoiceItemResponse{
			Code:      item.Code,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		}
	}
	return InvoiceResponse{
		ID:           inv.ID,
		Number:       inv.Number,
		Sequence:     inv.Sequence,
		Company:      inv.Tenant.Company,
		ShopType:     string(inv.Tenant.ShopType),
		Seller:       inv.Seller,
		Items:        items,
		ItemCount:    inv.ItemCount(),
		TotalExclTax: inv.TotalExclTax,
		TaxRate:      inv.TaxRate,
		TaxAmount:    inv.TaxAmount,
		TotalInclTax: inv.TotalInclTax,
		ReceiptRef:   inv.ReceiptRef,
		IssuedAt:     inv.IssuedAt,
	}
}

// ToInvoiceResponses converts a slice of domain invoices to responses
func ToInvoiceResponses(invoices []*ledger.Invoice) []InvoiceResponse {
	responses := make([]InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		responses[i] = ToInvoiceResponse(inv)
	}
	return responses
}
