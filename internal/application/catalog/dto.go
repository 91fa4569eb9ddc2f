package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CreateProductRequest represents a request to add a product to a tenant's catalog
type CreateProductRequest struct {
	Company  string          `json:"company" validate:"notblank,max=200"`
	ShopType string          `json:"shop_type" validate:"shoptype"`
	Code     string          `json:"code" validate:"notblank,max=50"`
	Name     string          `json:"name" validate:"notblank,max=200"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Type     string          `json:"type" validate:"max=100"`
	Stock    int             `json:"stock" validate:"gte=0"`
	MinStock int             `json:"min_stock" validate:"gte=0"`
	Image    string          `json:"image,omitempty" validate:"max=500"`
}

// Tenant returns the tenant named by the request
func (r CreateProductRequest) Tenant() shared.Tenant {
	return shared.Tenant{Company: r.Company, ShopType: shared.ShopType(r.ShopType)}
}

// UpdateProductRequest carries the fields to change; nil or blank fields
// keep their current value
type UpdateProductRequest struct {
	Name     *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Price    *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
	Type     *string          `json:"type,omitempty" validate:"omitempty,max=100"`
	MinStock *int             `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
	Image    *string          `json:"image,omitempty" validate:"omitempty,max=500"`
}

func (r UpdateProductRequest) toDomain() catalog.ProductUpdate {
	return catalog.ProductUpdate{
		Name:     r.Name,
		Price:    r.Price,
		Type:     r.Type,
		MinStock: r.MinStock,
		ImageRef: r.Image,
	}
}

// ProductListFilter narrows ListProducts. An empty filter lists every
// product of every tenant in insertion order.
type ProductListFilter struct {
	Company      string `json:"company,omitempty"`
	ShopType     string `json:"shop_type,omitempty" validate:"required_with=Company,omitempty,shoptype"`
	Search       string `json:"search,omitempty" validate:"max=100"`
	LowStockOnly bool   `json:"low_stock_only,omitempty"`
	SortBy       string `json:"sort_by,omitempty" validate:"omitempty,oneof=code name price stock created_at"`
	SortOrder    string `json:"sort_order,omitempty" validate:"omitempty,oneof=asc desc"`
}

func (f ProductListFilter) toDomain() catalog.ProductFilter {
	filter := catalog.ProductFilter{
		Search:       f.Search,
		LowStockOnly: f.LowStockOnly,
		SortBy:       f.SortBy,
		SortOrder:    f.SortOrder,
	}
	if f.Company != "" {
		filter.Tenant = &shared.Tenant{Company: f.Company, ShopType: shared.ShopType(f.ShopType)}
	}
	return filter
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID         uuid.UUID       `json:"id"`
	Company    string          `json:"company"`
	ShopType   string          `json:"shop_type"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Type       string          `json:"type,omitempty"`
	Stock      int             `json:"stock"`
	MinStock   int             `json:"min_stock"`
	ImageRef   string          `json:"image,omitempty"`
	LowStock   bool            `json:"low_stock"`
	OutOfStock bool            `json:"out_of_stock"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ToProductResponse converts a domain product to a response
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:         p.ID,
		Company:    p.Tenant.Company,
		ShopType:   string(p.Tenant.ShopType),
		Code:       p.Code,
		Name:       p.Name,
		Price:      p.Price,
		Type:       p.Type,
		Stock:      p.Stock,
		MinStock:   p.MinStock,
		ImageRef:   p.ImageRef,
		LowStock:   p.IsLowStock(),
		OutOfStock: p.IsOutOfStock(),
		Version:    p.Version,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// ToProductResponses converts a slice of domain products to responses
func ToProductResponses(products []*catalog.Product) []ProductResponse {
	responses := make([]ProductResponse, len(products))
	for i, p := range products {
		responses[i] = ToProductResponse(p)
	}
	return responses
}

// StockMovementResponse represents one journal entry of a product's stock
type StockMovementResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
	Requested int       `json:"requested"`
	Applied   int       `json:"applied"`
	Before    int       `json:"before"`
	After     int       `json:"after"`
	Clamped   bool      `json:"clamped,omitempty"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToStockMovementResponses converts domain movements to responses
func ToStockMovementResponses(movements []*catalog.StockMovement) []StockMovementResponse {
	responses := make([]StockMovementResponse, len(movements))
	for i, m := range movements {
		responses[i] = StockMovementResponse{
			ID:        m.ID,
			Code:      m.Code,
			Reason:    string(m.Reason),
			Requested: m.Requested,
			Applied:   m.Applied,
			Before:    m.Before,
			After:     m.After,
			Clamped:   m.WasClamped(),
			Reference: m.Reference,
			CreatedAt: m.CreatedAt,
		}
	}
	return responses
}
