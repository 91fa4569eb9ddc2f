package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice domain entity.
type InvoiceModel struct {
	BaseModel
	TenantColumns
	Number       string             `gorm:"type:varchar(100);not null;uniqueIndex"`
	Sequence     int64              `gorm:"not null;uniqueIndex"`
	Seller       string             `gorm:"type:varchar(100);not null;index"`
	TotalExclTax decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	TaxRate      decimal.Decimal    `gorm:"type:decimal(6,4);not null"`
	TaxAmount    decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	TotalInclTax decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	ReceiptRef   string             `gorm:"type:varchar(500)"`
	IssuedAt     time.Time          `gorm:"not null;index"`
	Items        []InvoiceItemModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceItemModel is the persistence model for one invoice line.
type InvoiceItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Line      int             `gorm:"not null"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Code      string          `gorm:"type:varchar(50);not null"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain Invoice entity.
// Items must be preloaded.
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	items := make([]ledger.InvoiceItem, len(m.Items))
	for i, item := range m.Items {
		items[i] = ledger.InvoiceItem{
			ProductID: item.ProductID,
			Code:      item.Code,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		}
	}
	return &ledger.Invoice{
		BaseEntity:   m.BaseModel.ToDomain(),
		Number:       m.Number,
		Sequence:     m.Sequence,
		Tenant:       m.Tenant(),
		Seller:       m.Seller,
		Items:        items,
		TotalExclTax: m.TotalExclTax,
		TaxRate:      m.TaxRate,
		TaxAmount:    m.TaxAmount,
		TotalInclTax: m.TotalInclTax,
		ReceiptRef:   m.ReceiptRef,
		IssuedAt:     m.IssuedAt,
	}
}

// InvoiceModelFromDomain creates a new InvoiceModel, items included.
func InvoiceModelFromDomain(inv *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		TenantColumns: NewTenantColumns(inv.Tenant),
		Number:        inv.Number,
		Sequence:      inv.Sequence,
		Seller:        inv.Seller,
		TotalExclTax:  inv.TotalExclTax,
		TaxRate:       inv.TaxRate,
		TaxAmount:     inv.TaxAmount,
		TotalInclTax:  inv.TotalInclTax,
		ReceiptRef:    inv.ReceiptRef,
		IssuedAt:      inv.IssuedAt,
		Items:         make([]InvoiceItemModel, len(inv.Items)),
	}
	m.FromDomainBaseEntity(inv.BaseEntity)
	for i, item := range inv.Items {
		m.Items[i] = InvoiceItemModel{
			ID:        uuid.New(),
			InvoiceID: inv.ID,
			Line:      i + 1,
			ProductID: item.ProductID,
			Code:      item.Code,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		}
	}
	return m
}

// LedgerSequenceModel holds the last value handed out by a named sequence.
type LedgerSequenceModel struct {
	Name      string `gorm:"type:varchar(50);primary_key"`
	LastValue int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (LedgerSequenceModel) TableName() string {
	return "ledger_sequences"
}

// InvoiceSequenceName names the sequence behind invoice numbers
const InvoiceSequenceName = "invoice"

// All returns every model managed by the schema migration, in dependency order
func All() []any {
	return []any{
		&AccountModel{},
		&ProductModel{},
		&StockMovementModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&LedgerSequenceModel{},
	}
}
