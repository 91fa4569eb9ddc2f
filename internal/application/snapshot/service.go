// Package snapshot exports the live store to JSON snapshot files and
// imports snapshots, including ledgers written by older installs.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	appshared "github.com/pos/backend/internal/application/shared"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/ledger"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/store"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Counts tallies one collection of an import
type Counts struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportResult reports what an import did per collection
type ImportResult struct {
	Accounts Counts `json:"accounts"`
	Products Counts `json:"products"`
	Invoices Counts `json:"invoices"`
}

// ExportResult reports how many records were written per collection
type ExportResult struct {
	Accounts int `json:"accounts"`
	Products int `json:"products"`
	Invoices int `json:"invoices"`
}

// Service moves the store to and from snapshot directories
type Service struct {
	fs       afero.Fs
	accounts identity.AccountRepository
	products catalog.ProductRepository
	invoices ledger.InvoiceRepository
	txScope  appshared.TransactionScope
	hasher   identity.PasswordHasher
	logger   *zap.Logger
}

// NewService creates a new snapshot Service
func NewService(
	fs afero.Fs,
	accounts identity.AccountRepository,
	products catalog.ProductRepository,
	invoices ledger.InvoiceRepository,
	txScope appshared.TransactionScope,
	hasher identity.PasswordHasher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fs:       fs,
		accounts: accounts,
		products: products,
		invoices: invoices,
		txScope:  txScope,
		hasher:   hasher,
		logger:   logger,
	}
}

// Export writes the three collections into dir, replacing existing files
func (s *Service) Export(ctx context.Context, dir string) (*ExportResult, error) {
	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.products.FindAll(ctx, catalog.ProductFilter{SortBy: "created_at"})
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	accountRecords := make([]AccountRecord, len(accounts))
	for i, a := range accounts {
		accountRecords[i] = accountRecordFrom(a)
	}
	productRecords := make([]ProductRecord, len(products))
	for i, p := range products {
		productRecords[i] = productRecordFrom(p)
	}
	invoiceRecords := make([]InvoiceRecord, len(invoices))
	for i, inv := range invoices {
		invoiceRecords[i] = invoiceRecordFrom(inv)
	}

	if err := s.accountCollection(dir).Save(ctx, accountRecords); err != nil {
		return nil, err
	}
	if err := s.productCollection(dir).Save(ctx, productRecords); err != nil {
		return nil, err
	}
	if err := s.invoiceCollection(dir).Save(ctx, invoiceRecords); err != nil {
		return nil, err
	}

	result := &ExportResult{
		Accounts: len(accountRecords),
		Products: len(productRecords),
		Invoices: len(invoiceRecords),
	}
	s.logger.Info("Snapshot exported",
		zap.String("dir", dir),
		zap.Int("accounts", result.Accounts),
		zap.Int("products", result.Products),
		zap.Int("invoices", result.Invoices))
	return result, nil
}

// Import loads the snapshot in dir and inserts everything not already in
// the store, in one transaction. Accounts go first so that invoices can
// resolve their seller.
func (s *Service) Import(ctx context.Context, dir string) (*ImportResult, error) {
	accounts := s.accountCollection(dir).Load(ctx)
	products := s.productCollection(dir).Load(ctx)
	invoices := s.invoiceCollection(dir).Load(ctx)

	result := &ImportResult{}
	err := s.txScope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		*result = ImportResult{}
		if err := s.importAccounts(ctx, repos, accounts, &result.Accounts); err != nil {
			return fmt.Errorf("import accounts: %w", err)
		}
		if err := s.importProducts(ctx, repos, products, &result.Products); err != nil {
			return fmt.Errorf("import products: %w", err)
		}
		if err := s.importInvoices(ctx, repos, invoices, &result.Invoices); err != nil {
			return fmt.Errorf("import invoices: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Snapshot import rolled back", zap.String("dir", dir), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Snapshot imported",
		zap.String("dir", dir),
		zap.Any("result", result))
	return result, nil
}

func (s *Service) importAccounts(ctx context.Context, repos appshared.TransactionalRepositories, records []AccountRecord, counts *Counts) error {
	for _, rec := range records {
		exists, err := repos.Accounts().ExistsByUsername(ctx, rec.Username)
		if err != nil {
			return err
		}
		if exists {
			counts.Skipped++
			continue
		}
		account, err := rec.toDomain(s.hasher)
		if err != nil {
			s.logger.Warn("Skipping account", zap.String("username", rec.Username), zap.Error(err))
			counts.Skipped++
			continue
		}
		if err := repos.Accounts().Create(ctx, account); err != nil {
			return err
		}
		counts.Imported++
	}
	return nil
}

func (s *Service) importProducts(ctx context.Context, repos appshared.TransactionalRepositories, records []ProductRecord, counts *Counts) error {
	for _, rec := range records {
		exists, err := repos.Products().ExistsByCode(ctx, rec.Tenant(), rec.Code)
		if err != nil {
			return err
		}
		if exists {
			counts.Skipped++
			continue
		}
		product, err := rec.toDomain()
		if err != nil {
			return err
		}
		if err := repos.Products().Create(ctx, product); err != nil {
			return err
		}
		if product.Stock > 0 {
			change := catalog.StockChange{Requested: product.Stock, Applied: product.Stock, After: product.Stock}
			movement := catalog.NewStockMovement(product, catalog.MovementInitial, change).WithReference("snapshot")
			if err := repos.Movements().Create(ctx, movement); err != nil {
				return err
			}
		}
		counts.Imported++
	}
	return nil
}

func (s *Service) importInvoices(ctx context.Context, repos appshared.TransactionalRepositories, records []InvoiceRecord, counts *Counts) error {
	for _, rec := range records {
		exists, err := repos.Invoices().ExistsByNumber(ctx, rec.Number)
		if err != nil {
			return err
		}
		if exists {
			counts.Skipped++
			continue
		}

		seller, err := repos.Accounts().FindByUsername(ctx, rec.Seller)
		if err != nil {
			if errors.Is(err, shared.ErrAccountNotFound) {
				s.logger.Warn("Skipping invoice of unknown seller",
					zap.String("number", rec.Number), zap.String("seller", rec.Seller))
				counts.Skipped++
				continue
			}
			return err
		}
		tenant := seller.Tenant
		if rec.HasTenant() {
			tenant = rec.Tenant()
		}

		var lookupErr error
		productID := func(code string) uuid.UUID {
			p, err := repos.Products().FindByCode(ctx, tenant, code)
			if err != nil {
				if !errors.Is(err, shared.ErrProductNotFound) && lookupErr == nil {
					lookupErr = err
				}
				return uuid.Nil
			}
			return p.ID
		}

		seq, err := repos.Invoices().NextSequence(ctx)
		if err != nil {
			return err
		}
		invoice, err := rec.toDomain(tenant, seq, productID)
		if lookupErr != nil {
			return lookupErr
		}
		if err != nil {
			return err
		}
		if err := repos.Invoices().Create(ctx, invoice); err != nil {
			return err
		}
		counts.Imported++
	}
	return nil
}

func (s *Service) accountCollection(dir string) *store.FileCollection[AccountRecord] {
	return store.NewFileCollection[AccountRecord](s.fs, filepath.Join(dir, AccountsFile), s.logger)
}

func (s *Service) productCollection(dir string) *store.FileCollection[ProductRecord] {
	return store.NewFileCollection[ProductRecord](s.fs, filepath.Join(dir, ProductsFile), s.logger)
}

func (s *Service) invoiceCollection(dir string) *store.FileCollection[InvoiceRecord] {
	return store.NewFileCollection[InvoiceRecord](s.fs, filepath.Join(dir, InvoicesFile), s.logger)
}
