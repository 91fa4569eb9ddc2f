// Package tenant scopes GORM queries and writers to one tenant.
//
// A tenant is the (company, shop type) pair stored in the company and
// shop_type columns of every tenant-owned table.
//
// Usage:
//
//	db.Scopes(tenant.Scope(t)).Find(&products) // WHERE company = ? AND shop_type = ?
package tenant

import (
	"errors"

	"github.com/pos/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ErrTenantRequired is returned when a scoped query is built for an unset tenant
var ErrTenantRequired = errors.New("tenant is required")

// Scope applies tenant filtering to GORM queries. An unset tenant adds an
// error to the statement instead of silently matching every row.
func Scope(t shared.Tenant) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if t.IsZero() {
			_ = db.AddError(ErrTenantRequired)
			return db
		}
		return db.Where("company = ? AND shop_type = ?", t.Company, t.ShopType)
	}
}
