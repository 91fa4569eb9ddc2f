package shared

import (
	"context"

	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/ledger"
	"github.com/pos/backend/internal/domain/shared"
)

// TransactionScope provides transactional access to the repositories.
// Every repository handed to fn shares one database transaction that is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
type TransactionalRepositories interface {
	Accounts() identity.AccountRepository
	Products() catalog.ProductRepository
	Movements() catalog.StockMovementRepository
	Invoices() ledger.InvoiceRepository
}

// TenantLocker serializes writers of one tenant. fn runs while the tenant
// lock is held; writers of other tenants are not blocked.
type TenantLocker interface {
	WithLock(ctx context.Context, tenant shared.Tenant, fn func(ctx context.Context) error) error
}

// NoOpTransactionScope runs fn directly against the given repositories.
// It is meant for unit tests with mocked repositories.
type NoOpTransactionScope struct {
	AccountRepo  identity.AccountRepository
	ProductRepo  catalog.ProductRepository
	MovementRepo catalog.StockMovementRepository
	InvoiceRepo  ledger.InvoiceRepository
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Accounts() identity.AccountRepository       { return s.AccountRepo }
func (s *NoOpTransactionScope) Products() catalog.ProductRepository        { return s.ProductRepo }
func (s *NoOpTransactionScope) Movements() catalog.StockMovementRepository { return s.MovementRepo }
func (s *NoOpTransactionScope) Invoices() ledger.InvoiceRepository         { return s.InvoiceRepo }

// NoOpLocker runs fn without locking.
type NoOpLocker struct{}

// WithLock implements TenantLocker
func (NoOpLocker) WithLock(ctx context.Context, _ shared.Tenant, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
	_ TenantLocker              = NoOpLocker{}
)
