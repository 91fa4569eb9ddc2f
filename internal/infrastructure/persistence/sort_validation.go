package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a sort direction to ASC or DESC, defaulting
// to ASC so listings keep insertion order unless asked otherwise.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "DESC" {
		return "DESC"
	}
	return "ASC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.ToLower(strings.TrimSpace(sortField))
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ProductSortFields contains allowed sort fields for products
var ProductSortFields = map[string]bool{
	"created_at": true,
	"code_key":   true,
	"name":       true,
	"price":      true,
	"stock":      true,
}

// productSortAliases maps user facing names to columns
var productSortAliases = map[string]string{
	"code": "code_key",
}

// productOrder builds the ORDER BY clause of a product listing. Ties fall
// back to insertion order, so rows created in the same instant (a snapshot
// import) still list in the order they were added.
func productOrder(sortBy, sortOrder string) string {
	field := strings.ToLower(strings.TrimSpace(sortBy))
	if alias, ok := productSortAliases[field]; ok {
		field = alias
	}
	field = ValidateSortField(field, ProductSortFields, "created_at")
	return field + " " + ValidateSortOrder(sortOrder) + ", position ASC"
}
