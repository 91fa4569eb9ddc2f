package identity

import (
	"context"

	"github.com/pos/backend/internal/domain/shared"
)

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	// Create stores a new account; returns shared.ErrDuplicateUsername when
	// the folded username is taken
	Create(ctx context.Context, account *Account) error

	// Update persists credential and profile changes of an existing account
	Update(ctx context.Context, account *Account) error

	// FindByUsername finds an account by username, case-insensitively
	FindByUsername(ctx context.Context, username string) (*Account, error)

	// FindByEmail finds the first account registered with the email, case-insensitively
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// ExistsByUsername checks if a username is taken, case-insensitively
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// FindAll returns every account in registration order
	FindAll(ctx context.Context) ([]*Account, error)

	// FindByTenant returns the tenant's accounts with any of the given roles
	// (all roles when none given), in registration order
	FindByTenant(ctx context.Context, tenant shared.Tenant, roles ...Role) ([]*Account, error)
}
