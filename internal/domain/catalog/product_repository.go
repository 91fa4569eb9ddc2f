package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/shared"
)

// ProductFilter narrows a product listing; the zero value lists everything
type ProductFilter struct {
	Tenant       *shared.Tenant
	Search       string
	LowStockOnly bool
	SortBy       string // code, name, price, stock or created_at
	SortOrder    string // asc or desc
}

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// Create stores a new product; returns shared.ErrDuplicateProductCode when
	// the (code, company, shop type) triple is taken
	Create(ctx context.Context, product *Product) error

	// Save persists field and stock changes of an existing product
	Save(ctx context.Context, product *Product) error

	// FindByCode finds a tenant's product by code, case-insensitively
	FindByCode(ctx context.Context, tenant shared.Tenant, code string) (*Product, error)

	// ExistsByCode checks if the tenant already has the code, case-insensitively
	ExistsByCode(ctx context.Context, tenant shared.Tenant, code string) (bool, error)

	// FindAll lists matching products, in insertion order unless the filter
	// asks for another sort
	FindAll(ctx context.Context, filter ProductFilter) ([]*Product, error)

	// DecrementStock removes quantity units only if that many are on hand and
	// reports whether the row was updated
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
}

// StockMovementRepository is the append-only journal of stock changes
type StockMovementRepository interface {
	Create(ctx context.Context, movement *StockMovement) error

	// FindByProduct returns the product's movements, newest first
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]*StockMovement, error)
}
