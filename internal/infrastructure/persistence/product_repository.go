package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/persistence/models"
	"github.com/pos/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Create stores a new product after the last one created
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	var last int64
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
		return fmt.Errorf("failed to read product position: %w", err)
	}
	model.Position = last + 1
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicate(err) {
			return shared.ErrDuplicateProductCode
		}
		return err
	}
	return nil
}

// Save persists field and stock changes of an existing product. The code
// and tenant are immutable and left untouched.
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", product.ID).
		Select("name", "price", "type", "stock", "min_stock", "image_ref", "version", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ProductNotFoundError(product.Code)
	}
	return nil
}

// FindByCode finds a tenant's product by code, case-insensitively
func (r *GormProductRepository) FindByCode(ctx context.Context, t shared.Tenant, code string) (*catalog.Product, error) {
	var model models.ProductModel
	err := r.db.WithContext(ctx).Scopes(tenant.Scope(t)).
		Where("code_key = ?", shared.Fold(code)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ProductNotFoundError(code)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByCode checks if the tenant already has the code
func (r *GormProductRepository) ExistsByCode(ctx context.Context, t shared.Tenant, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).Scopes(tenant.Scope(t)).
		Where("code_key = ?", shared.Fold(code)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll lists products matching the filter. The text search is applied
// after loading so it follows the same Unicode folding as code lookups.
func (r *GormProductRepository) FindAll(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.ProductModel{})
	if filter.Tenant != nil {
		query = query.Scopes(tenant.Scope(*filter.Tenant))
	}
	if filter.LowStockOnly {
		query = query.Where("stock < min_stock")
	}

	var rows []models.ProductModel
	if err := query.Order(productOrder(filter.SortBy, filter.SortOrder)).Find(&rows).Error; err != nil {
		return nil, err
	}

	products := make([]*catalog.Product, 0, len(rows))
	for i := range rows {
		p := rows[i].ToDomain()
		if p.Matches(filter.Search) {
			products = append(products, p)
		}
	}
	return products, nil
}

// DecrementStock removes quantity units only when that many are on hand.
// The guard lives in the WHERE clause so the check and the write are one
// statement.
func (r *GormProductRepository) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", quantity),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)

// GormStockMovementRepository implements StockMovementRepository using GORM
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Create appends a movement
func (r *GormStockMovementRepository) Create(ctx context.Context, movement *catalog.StockMovement) error {
	return r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(movement)).Error
}

// FindByProduct returns the product's movements, newest first
func (r *GormStockMovementRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]*catalog.StockMovement, error) {
	var rows []models.StockMovementModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	movements := make([]*catalog.StockMovement, len(rows))
	for i := range rows {
		movements[i] = rows[i].ToDomain()
	}
	return movements, nil
}

var _ catalog.StockMovementRepository = (*GormStockMovementRepository)(nil)
