package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/shared"
)

// RegisterAdminRequest contains the input for registering a tenant administrator
type RegisterAdminRequest struct {
	Company  string `json:"company" validate:"notblank,max=200"`
	VAT      string `json:"vat" validate:"max=50"`
	ShopType string `json:"shop_type" validate:"shoptype"`
	Username string `json:"username" validate:"notblank,max=100,excludesall= \t"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,max=72"`
	Photo    string `json:"photo,omitempty" validate:"max=500"`
}

// Tenant returns the tenant named by the request
func (r RegisterAdminRequest) Tenant() shared.Tenant {
	return shared.Tenant{Company: r.Company, ShopType: shared.ShopType(r.ShopType)}
}

// AddVendorRequest contains the input for adding a seller account
type AddVendorRequest struct {
	Username string `json:"username" validate:"notblank,max=100,excludesall= \t"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,max=72"`
	Company  string `json:"company" validate:"notblank,max=200"`
	ShopType string `json:"shop_type" validate:"shoptype"`
	Photo    string `json:"photo,omitempty" validate:"max=500"`
}

// Tenant returns the tenant named by the request
func (r AddVendorRequest) Tenant() shared.Tenant {
	return shared.Tenant{Company: r.Company, ShopType: shared.ShopType(r.ShopType)}
}

// AccountResponse is an account without its credentials
type AccountResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Company   string    `json:"company"`
	ShopType  string    `json:"shop_type"`
	VAT       string    `json:"vat,omitempty"`
	PhotoRef  string    `json:"photo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToAccountResponse converts a domain account to a response
func ToAccountResponse(a *identity.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      string(a.Role),
		Company:   a.Tenant.Company,
		ShopType:  string(a.Tenant.ShopType),
		VAT:       a.VAT,
		PhotoRef:  a.PhotoRef,
		CreatedAt: a.CreatedAt,
	}
}

// ToAccountResponses converts a slice of domain accounts to responses
func ToAccountResponses(accounts []*identity.Account) []AccountResponse {
	responses := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		responses[i] = ToAccountResponse(a)
	}
	return responses
}
