package telemetry

import (
	"context"

	"github.com/pos/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormLowStockProvider implements LowStockProvider using GORM.
// It aggregates the products table directly.
type GormLowStockProvider struct {
	db *gorm.DB
}

// NewGormLowStockProvider creates a new GormLowStockProvider.
func NewGormLowStockProvider(db *gorm.DB) *GormLowStockProvider {
	return &GormLowStockProvider{db: db}
}

// LowStockCounts returns the number of products with stock below their
// minimum, per tenant. Tenants with none are omitted.
func (p *GormLowStockProvider) LowStockCounts(ctx context.Context) (map[shared.Tenant]int64, error) {
	type result struct {
		Company  string `gorm:"column:company"`
		ShopType string `gorm:"column:shop_type"`
		Count    int64  `gorm:"column:low_count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("products").
		Select("company, shop_type, COUNT(*) AS low_count").
		Where("stock < min_stock").
		Group("company, shop_type").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	m := make(map[shared.Tenant]int64, len(results))
	for _, r := range results {
		m[shared.Tenant{Company: r.Company, ShopType: shared.ShopType(r.ShopType)}] = r.Count
	}
	return m, nil
}

var _ LowStockProvider = (*GormLowStockProvider)(nil)
