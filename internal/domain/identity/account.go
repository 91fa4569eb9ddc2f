package identity

import (
	"regexp"
	"strings"

	"github.com/pos/backend/internal/domain/shared"
)

// Role is the tag that distinguishes the account variants
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleVendor Role = "VENDOR"
)

// IsValid checks if the role is a known account variant
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleVendor
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Account is a user of the point of sale, either the administrator that
// registered a tenant or a vendor selling on its behalf.
type Account struct {
	shared.BaseAggregateRoot
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Tenant       shared.Tenant
	VAT          string // ADMIN only
	PhotoRef     string
}

// NewAdmin creates the administrator account of a tenant
func NewAdmin(tenant shared.Tenant, vat, username, email, password string, hasher PasswordHasher) (*Account, error) {
	account, err := newAccount(RoleAdmin, tenant, username, email, password, hasher)
	if err != nil {
		return nil, err
	}
	account.VAT = strings.TrimSpace(vat)
	return account, nil
}

// NewVendor creates a seller account tagged with a tenant
func NewVendor(tenant shared.Tenant, username, email, password string, hasher PasswordHasher) (*Account, error) {
	return newAccount(RoleVendor, tenant, username, email, password, hasher)
}

func newAccount(role Role, tenant shared.Tenant, username, email, password string, hasher PasswordHasher) (*Account, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if _, err := shared.NewTenant(tenant.Company, tenant.ShopType); err != nil {
		return nil, err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}

	return &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Username:          strings.TrimSpace(username),
		Email:             strings.TrimSpace(email),
		PasswordHash:      hash,
		Role:              role,
		Tenant:            tenant,
	}, nil
}

// UsernameKey returns the folded username used for uniqueness and lookup
func (a *Account) UsernameKey() string {
	return shared.Fold(a.Username)
}

// IsAdmin reports whether the account is the tenant administrator
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// BelongsTo reports whether the account is tagged with the tenant
func (a *Account) BelongsTo(tenant shared.Tenant) bool {
	return a.Tenant == tenant
}

// VerifyPassword checks a plain password against the stored hash
func (a *Account) VerifyPassword(hasher PasswordHasher, password string) bool {
	return hasher.Verify(a.PasswordHash, password)
}

// ChangePassword replaces the password after verifying the current one
func (a *Account) ChangePassword(hasher PasswordHasher, oldPassword, newPassword string) error {
	if !a.VerifyPassword(hasher, oldPassword) {
		return shared.NewDomainError("INVALID_PASSWORD", "Current password is incorrect")
	}
	return a.SetPassword(hasher, newPassword)
}

// SetPassword replaces the password without checking the old one
func (a *Account) SetPassword(hasher PasswordHasher, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := hasher.Hash(newPassword)
	if err != nil {
		return shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}
	a.PasswordHash = hash
	a.IncrementVersion()
	return nil
}

// SetPhoto sets or replaces the profile photo reference
func (a *Account) SetPhoto(ref string) {
	a.PhotoRef = strings.TrimSpace(ref)
	a.IncrementVersion()
}

// Validate checks the invariants of a fully built account, including one
// rebuilt from storage or a snapshot.
func (a *Account) Validate() error {
	if err := validateUsername(a.Username); err != nil {
		return err
	}
	if !a.Role.IsValid() {
		return shared.NewDomainError("INVALID_ROLE", "Unknown account role: "+string(a.Role))
	}
	if a.Role == RoleVendor && a.VAT != "" {
		return shared.NewDomainError("INVALID_ROLE", "Vendor accounts do not carry a VAT number")
	}
	if a.PasswordHash == "" {
		return shared.NewDomainError("INVALID_PASSWORD", "Password hash cannot be empty")
	}
	if _, err := shared.NewTenant(a.Tenant.Company, a.Tenant.ShopType); err != nil {
		return err
	}
	return nil
}

func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if len(username) > 100 {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot exceed 100 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot contain whitespace")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot be empty")
	}
	// bcrypt only uses the first 72 bytes
	if len(password) > 72 {
		return shared.NewDomainError("INVALID_PASSWORD", "Password cannot exceed 72 bytes")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if len(email) > 200 {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}
	if !emailRegex.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return nil
}
