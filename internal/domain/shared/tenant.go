package shared

import (
	"strings"

	"golang.org/x/text/cases"
)

// ShopType is the kind of store a tenant runs
type ShopType string

const (
	ShopTypeRestauracao ShopType = "RESTAURACAO"
	ShopTypeFarmacia    ShopType = "FARMACIA"
	ShopTypeOficina     ShopType = "OFICINA"
	ShopTypeOutro       ShopType = "OUTRO"
)

// AllShopTypes returns every supported shop type
func AllShopTypes() []ShopType {
	return []ShopType{ShopTypeRestauracao, ShopTypeFarmacia, ShopTypeOficina, ShopTypeOutro}
}

// IsValid checks if the shop type is one of the supported values
func (s ShopType) IsValid() bool {
	switch s {
	case ShopTypeRestauracao, ShopTypeFarmacia, ShopTypeOficina, ShopTypeOutro:
		return true
	}
	return false
}

// Tenant is the (company, shop type) pair that scopes products, invoices
// and the accounts allowed to sell on its behalf.
type Tenant struct {
	Company  string
	ShopType ShopType
}

// NewTenant creates a validated tenant
func NewTenant(company string, shopType ShopType) (Tenant, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return Tenant{}, NewDomainError("INVALID_TENANT", "Company cannot be empty")
	}
	if !shopType.IsValid() {
		return Tenant{}, NewDomainError("INVALID_TENANT", "Unsupported shop type: "+string(shopType))
	}
	return Tenant{Company: company, ShopType: shopType}, nil
}

// Key returns a stable string identifying the tenant
func (t Tenant) Key() string {
	return t.Company + "|" + string(t.ShopType)
}

// String implements fmt.Stringer
func (t Tenant) String() string {
	return t.Company + " (" + string(t.ShopType) + ")"
}

// IsZero reports whether the tenant is unset
func (t Tenant) IsZero() bool {
	return t.Company == "" && t.ShopType == ""
}

// Fold returns the case-folded form of s used for case-insensitive keys
// such as usernames and product codes.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// EqualFold compares two strings under Unicode case folding
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}
