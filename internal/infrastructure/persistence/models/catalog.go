package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
// A code is unique per tenant under case folding.
type ProductModel struct {
	AggregateModel
	Company  string          `gorm:"type:varchar(200);not null;uniqueIndex:idx_product_tenant_code,priority:1"`
	ShopType shared.ShopType `gorm:"type:varchar(20);not null;uniqueIndex:idx_product_tenant_code,priority:2"`
	CodeKey  string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_product_tenant_code,priority:3"`
	Code     string          `gorm:"type:varchar(50);not null"`
	Name     string          `gorm:"type:varchar(200);not null"`
	Price    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Type     string          `gorm:"type:varchar(100)"`
	Stock    int             `gorm:"not null;default:0;check:chk_products_stock,stock >= 0"`
	MinStock int             `gorm:"not null;default:0"`
	ImageRef string          `gorm:"type:varchar(500)"`
	Position int64           `gorm:"not null;default:0;index"` // insertion order, assigned on create
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: m.ToDomainAggregateRoot(),
			Tenant:            shared.Tenant{Company: m.Company, ShopType: m.ShopType},
		},
		Code:     m.Code,
		Name:     m.Name,
		Price:    m.Price,
		Type:     m.Type,
		Stock:    m.Stock,
		MinStock: m.MinStock,
		ImageRef: m.ImageRef,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Company = p.Tenant.Company
	m.ShopType = p.Tenant.ShopType
	m.CodeKey = p.CodeKey()
	m.Code = p.Code
	m.Name = p.Name
	m.Price = p.Price
	m.Type = p.Type
	m.Stock = p.Stock
	m.MinStock = p.MinStock
	m.ImageRef = p.ImageRef
}

// ProductModelFromDomain creates a new ProductModel from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// StockMovementModel is the persistence model for a stock journal entry.
type StockMovementModel struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantColumns
	ProductID uuid.UUID              `gorm:"type:uuid;not null;index"`
	Code      string                 `gorm:"type:varchar(50);not null"`
	Reason    catalog.MovementReason `gorm:"type:varchar(20);not null"`
	Requested int                    `gorm:"not null"`
	Applied   int                    `gorm:"not null"`
	Before    int                    `gorm:"column:stock_before;not null"`
	After     int                    `gorm:"column:stock_after;not null"`
	Reference string                 `gorm:"type:varchar(100);index"`
	CreatedAt time.Time              `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *catalog.StockMovement {
	return &catalog.StockMovement{
		ID:        m.ID,
		Tenant:    m.Tenant(),
		ProductID: m.ProductID,
		Code:      m.Code,
		Reason:    m.Reason,
		Requested: m.Requested,
		Applied:   m.Applied,
		Before:    m.Before,
		After:     m.After,
		Reference: m.Reference,
		CreatedAt: m.CreatedAt,
	}
}

// StockMovementModelFromDomain creates a new StockMovementModel from a domain StockMovement.
func StockMovementModelFromDomain(s *catalog.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:            s.ID,
		TenantColumns: NewTenantColumns(s.Tenant),
		ProductID:     s.ProductID,
		Code:          s.Code,
		Reason:        s.Reason,
		Requested:     s.Requested,
		Applied:       s.Applied,
		Before:        s.Before,
		After:         s.After,
		Reference:     s.Reference,
		CreatedAt:     s.CreatedAt,
	}
}
