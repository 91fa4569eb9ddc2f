package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Product represents a sellable item of one tenant
// It is the aggregate root for product and stock operations
type Product struct {
	shared.TenantAggregateRoot
	Code     string
	Name     string
	Price    decimal.Decimal // excluding tax
	Type     string
	Stock    int
	MinStock int
	ImageRef string
}

// NewProduct creates a new product with zero stock
func NewProduct(tenant shared.Tenant, code, name string, price decimal.Decimal, productType string) (*Product, error) {
	if _, err := shared.NewTenant(tenant.Company, tenant.ShopType); err != nil {
		return nil, err
	}
	if err := validateProductCode(code); err != nil {
		return nil, err
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	return &Product{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenant),
		Code:                strings.TrimSpace(code),
		Name:                strings.TrimSpace(name),
		Price:               price,
		Type:                strings.TrimSpace(productType),
	}, nil
}

// CodeKey returns the folded code used for tenant-scoped uniqueness
func (p *Product) CodeKey() string {
	return shared.Fold(p.Code)
}

// MatchesCode reports whether code identifies this product, case-insensitively
func (p *Product) MatchesCode(code string) bool {
	return p.CodeKey() == shared.Fold(code)
}

// Matches reports whether the search text appears in the name or code
func (p *Product) Matches(search string) bool {
	needle := shared.Fold(search)
	if needle == "" {
		return true
	}
	return strings.Contains(shared.Fold(p.Name), needle) || strings.Contains(p.CodeKey(), needle)
}

// ProductUpdate carries the fields of a partial product update; nil or
// empty values leave the current value untouched.
type ProductUpdate struct {
	Name     *string
	Price    *decimal.Decimal
	Type     *string
	MinStock *int
	ImageRef *string
}

// IsEmpty reports whether the update would change nothing
func (u ProductUpdate) IsEmpty() bool {
	return nonEmpty(u.Name) == "" && u.Price == nil && nonEmpty(u.Type) == "" &&
		u.MinStock == nil && nonEmpty(u.ImageRef) == ""
}

// Apply merges the supplied fields into the product
func (p *Product) Apply(u ProductUpdate) error {
	if name := nonEmpty(u.Name); name != "" {
		if err := validateProductName(name); err != nil {
			return err
		}
		p.Name = name
	}
	if u.Price != nil {
		if err := validatePrice(*u.Price); err != nil {
			return err
		}
		p.Price = *u.Price
	}
	if productType := nonEmpty(u.Type); productType != "" {
		p.Type = productType
	}
	if u.MinStock != nil {
		if *u.MinStock < 0 {
			return shared.NewDomainError("INVALID_MIN_STOCK", "Minimum stock cannot be negative")
		}
		p.MinStock = *u.MinStock
	}
	if ref := nonEmpty(u.ImageRef); ref != "" {
		p.ImageRef = ref
	}
	p.IncrementVersion()
	return nil
}

// SetInitialStock sets the opening stock and threshold of a new product
func (p *Product) SetInitialStock(stock, minStock int) error {
	if stock < 0 {
		return shared.NewDomainError("INVALID_STOCK", "Stock cannot be negative")
	}
	if minStock < 0 {
		return shared.NewDomainError("INVALID_MIN_STOCK", "Minimum stock cannot be negative")
	}
	p.Stock = stock
	p.MinStock = minStock
	return nil
}

// StockChange describes the effect of a stock mutation
type StockChange struct {
	Requested int
	Applied   int
	Before    int
	After     int
}

// AdjustStock adds delta to the stock. A result below zero is clamped to
// zero instead of rejected; a result past the int range is rejected.
func (p *Product) AdjustStock(delta int) (StockChange, error) {
	before := p.Stock
	if delta > 0 && before > math.MaxInt-delta {
		return StockChange{}, shared.NewDomainError("INVALID_QUANTITY",
			fmt.Sprintf("Adjusting stock of '%s' by %d exceeds the maximum stock", p.Name, delta))
	}
	after := before + delta
	if after < 0 {
		after = 0
	}
	p.Stock = after
	p.IncrementVersion()
	return StockChange{Requested: delta, Applied: after - before, Before: before, After: after}, nil
}

// CanFulfill reports whether quantity units are on hand
func (p *Product) CanFulfill(quantity int) bool {
	return quantity > 0 && p.Stock >= quantity
}

// Deduct removes quantity units for a sale, failing without change when
// the stock does not cover it.
func (p *Product) Deduct(quantity int) (StockChange, error) {
	if quantity <= 0 {
		return StockChange{}, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if !p.CanFulfill(quantity) {
		return StockChange{}, InsufficientStockError(p, quantity)
	}
	before := p.Stock
	p.Stock -= quantity
	p.IncrementVersion()
	return StockChange{Requested: -quantity, Applied: -quantity, Before: before, After: p.Stock}, nil
}

// IsLowStock reports whether stock is below the minimum threshold
func (p *Product) IsLowStock() bool {
	return p.Stock < p.MinStock
}

// IsOutOfStock reports whether nothing is left to sell
func (p *Product) IsOutOfStock() bool {
	return p.Stock == 0
}

// Validate checks the invariants of a product rebuilt from storage or a snapshot
func (p *Product) Validate() error {
	if _, err := shared.NewTenant(p.Tenant.Company, p.Tenant.ShopType); err != nil {
		return err
	}
	if err := validateProductCode(p.Code); err != nil {
		return err
	}
	if err := validateProductName(p.Name); err != nil {
		return err
	}
	if err := validatePrice(p.Price); err != nil {
		return err
	}
	if p.Stock < 0 || p.MinStock < 0 {
		return shared.NewDomainError("INVALID_STOCK", "Stock values cannot be negative")
	}
	return nil
}

// InsufficientStockError names the product whose stock cannot cover quantity
func InsufficientStockError(p *Product, quantity int) error {
	return shared.NewDomainError(shared.ErrInsufficientStock.Code,
		fmt.Sprintf("Insufficient stock for '%s': requested %d, available %d", p.Name, quantity, p.Stock))
}

// ProductNotFoundError names the code that could not be resolved
func ProductNotFoundError(code string) error {
	return shared.NewDomainError(shared.ErrProductNotFound.Code,
		fmt.Sprintf("Product %s not found", code))
}

func validateProductCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot exceed 50 characters")
	}
	return nil
}

func validateProductName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	return nil
}

func nonEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
