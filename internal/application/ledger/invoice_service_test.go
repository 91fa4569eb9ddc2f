package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	appshared "github.com/pos/backend/internal/application/shared"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/config"
	"github.com/pos/backend/internal/infrastructure/persistence"
	"github.com/pos/backend/internal/infrastructure/persistence/tenant"
	infra "github.com/pos/backend/internal/infrastructure/printing"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	cafe   = shared.Tenant{Company: "Cafe Lisboa", ShopType: shared.ShopTypeRestauracao}
	garage = shared.Tenant{Company: "Auto Porto", ShopType: shared.ShopTypeOficina}
)

const receiptDir = "/receipts"

type ledgerFixture struct {
	db       *persistence.Database
	svc      *InvoiceService
	fs       afero.Fs
	receipts *infra.FileReceiptStore
	products *persistence.GormProductRepository
	invoices *persistence.GormInvoiceRepository
}

type fixtureOption func(*fixtureSetup)

type fixtureSetup struct {
	store func(infra.ReceiptStore) infra.ReceiptStore
	scope func(appshared.TransactionScope) appshared.TransactionScope
}

func withReceiptStore(wrap func(infra.ReceiptStore) infra.ReceiptStore) fixtureOption {
	return func(s *fixtureSetup) { s.store = wrap }
}

func withScope(wrap func(appshared.TransactionScope) appshared.TransactionScope) fixtureOption {
	return func(s *fixtureSetup) { s.scope = wrap }
}

func newLedgerFixture(t *testing.T, opts ...fixtureOption) *ledgerFixture {
	t.Helper()
	setup := &fixtureSetup{
		store: func(s infra.ReceiptStore) infra.ReceiptStore { return s },
		scope: func(s appshared.TransactionScope) appshared.TransactionScope { return s },
	}
	for _, opt := range opts {
		opt(setup)
	}

	db, err := persistence.NewDatabase(&config.StoreConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "pos.db"),
		BusyTimeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	fs := afero.NewMemMapFs()
	receipts := infra.NewFileReceiptStore(fs, receiptDir, nil)
	invoices := persistence.NewGormInvoiceRepository(db.DB)

	svc := NewInvoiceService(
		invoices,
		setup.scope(persistence.NewGormTransactionScope(db.DB)),
		tenant.NewLocks(),
		infra.NewHTMLRenderer(),
		setup.store(receipts),
		DefaultInvoiceServiceConfig(),
		nil,
	)

	return &ledgerFixture{
		db:       db,
		svc:      svc,
		fs:       fs,
		receipts: receipts,
		products: persistence.NewGormProductRepository(db.DB),
		invoices: invoices,
	}
}

func (f *ledgerFixture) seedSeller(t *testing.T, tn shared.Tenant, username string) {
	t.Helper()
	account, err := identity.NewVendor(tn, username, username+"@example.pt", "segredo1", identity.NewBcryptHasher(bcrypt.MinCost))
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormAccountRepository(f.db.DB).Create(context.Background(), account))
}

func (f *ledgerFixture) seedProduct(t *testing.T, tn shared.Tenant, code, name, price string, stock int) {
	t.Helper()
	p, err := catalog.NewProduct(tn, code, name, decimal.RequireFromString(price), "")
	require.NoError(t, err)
	require.NoError(t, p.SetInitialStock(stock, 0))
	require.NoError(t, f.products.Create(context.Background(), p))
}

func (f *ledgerFixture) stockOf(t *testing.T, tn shared.Tenant, code string) int {
	t.Helper()
	p, err := f.products.FindByCode(context.Background(), tn, code)
	require.NoError(t, err)
	return p.Stock
}

func (f *ledgerFixture) ledgerLen(t *testing.T) int64 {
	t.Helper()
	n, err := f.invoices.Count(context.Background())
	require.NoError(t, err)
	return n
}

func saleRequest(tn shared.Tenant, seller string, lines ...InvoiceLineRequest) CreateInvoiceRequest {
	return CreateInvoiceRequest{
		Company:  tn.Company,
		ShopType: string(tn.ShopType),
		Seller:   seller,
		Items:    lines,
	}
}

func line(code string, qty int) InvoiceLineRequest {
	return InvoiceLineRequest{Code: code, Quantity: qty}
}

func pricedLine(code string, qty int, price string) InvoiceLineRequest {
	p := decimal.RequireFromString(price)
	return InvoiceLineRequest{Code: code, Quantity: qty, UnitPrice: &p}
}

func TestInvoiceService_CreateInvoice_Totals(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 10)

	resp, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui", pricedLine("C01", 2, "1.00")))
	require.NoError(t, err)

	assert.Equal(t, "2.00", resp.TotalExclTax.StringFixed(2))
	assert.Equal(t, "0.46", resp.TaxAmount.StringFixed(2))
	assert.Equal(t, "2.46", resp.TotalInclTax.StringFixed(2))
	assert.True(t, resp.TaxRate.Equal(decimal.RequireFromString("0.23")))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Café", resp.Items[0].Name)
	assert.Equal(t, 8, f.stockOf(t, cafe, "C01"))
}

func TestInvoiceService_CreateInvoice_CatalogPriceAndMergedLines(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 10)
	f.seedProduct(t, cafe, "B02", "Bolo", "1.50", 4)

	resp, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "RUI",
		line("C01", 1), line("B02", 1), line("c01", 2)))
	require.NoError(t, err)

	require.Len(t, resp.Items, 2)
	assert.Equal(t, "C01", resp.Items[0].Code)
	assert.Equal(t, 3, resp.Items[0].Quantity)
	assert.Equal(t, "0.80", resp.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "rui", resp.Seller)
	// 3*0.80 + 1.50 = 3.90; tax 0.90 (0.897); total 4.80
	assert.Equal(t, "3.90", resp.TotalExclTax.StringFixed(2))
	assert.Equal(t, "4.80", resp.TotalInclTax.StringFixed(2))
	assert.Equal(t, 7, f.stockOf(t, cafe, "C01"))
	assert.Equal(t, 3, f.stockOf(t, cafe, "B02"))
}

func TestInvoiceService_CreateInvoice_SameProductAtDifferentPrices(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 10)

	resp, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui",
		pricedLine("C01", 1, "1.00"), pricedLine("c01", 1, "2.00"), pricedLine("C01", 2, "1.0")))
	require.NoError(t, err)

	require.Len(t, resp.Items, 2)
	assert.Equal(t, 3, resp.Items[0].Quantity)
	assert.Equal(t, "1.00", resp.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, 1, resp.Items[1].Quantity)
	assert.Equal(t, "2.00", resp.Items[1].UnitPrice.StringFixed(2))
	// 3*1.00 + 2.00 = 5.00; tax 1.15; total 6.15
	assert.Equal(t, "5.00", resp.TotalExclTax.StringFixed(2))
	assert.Equal(t, "6.15", resp.TotalInclTax.StringFixed(2))
	assert.Equal(t, 6, f.stockOf(t, cafe, "C01"))

	stored, err := f.svc.GetInvoice(ctx, resp.Number)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "6.15", stored.TotalInclTax.StringFixed(2))
}

func TestInvoiceService_CreateInvoice_StockCheckSumsPricedLines(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 3)

	_, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui",
		pricedLine("C01", 2, "1.00"), pricedLine("C01", 2, "2.00")))
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, 3, f.stockOf(t, cafe, "C01"))
	assert.Equal(t, int64(0), f.ledgerLen(t))
}

func TestInvoiceService_CreateInvoice_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Água", "0.60", 5)
	f.seedProduct(t, cafe, "B02", "Bolo", "1.50", 4)

	_, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui", line("B02", 1), line("C01", 6)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	assert.Contains(t, err.Error(), "Água")

	assert.Equal(t, 5, f.stockOf(t, cafe, "C01"))
	assert.Equal(t, 4, f.stockOf(t, cafe, "B02"))
	assert.Equal(t, int64(0), f.ledgerLen(t))
}

func TestInvoiceService_CreateInvoice_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedSeller(t, garage, "eva")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 10)
	f.seedProduct(t, garage, "OL5", "Óleo 5W30", "12.00", 3)

	tests := []struct {
		name string
		req  CreateInvoiceRequest
		is   error
		code string
	}{
		{"unknown product", saleRequest(cafe, "rui", line("X99", 1)), shared.ErrProductNotFound, ""},
		{"product of another tenant", saleRequest(cafe, "rui", line("OL5", 1)), shared.ErrProductNotFound, ""},
		{"unknown seller", saleRequest(cafe, "ghost", line("C01", 1)), shared.ErrAccountNotFound, ""},
		{"seller of another tenant", saleRequest(cafe, "eva", line("C01", 1)), nil, "INVALID_SELLER"},
		{"no items", saleRequest(cafe, "rui"), shared.ErrInvalidInput, ""},
		{"zero quantity", saleRequest(cafe, "rui", line("C01", 0)), shared.ErrInvalidInput, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateInvoice(ctx, tt.req)
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
			if tt.code != "" {
				var de *shared.DomainError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, tt.code, de.Code)
			}
		})
	}

	assert.Equal(t, 10, f.stockOf(t, cafe, "C01"))
	assert.Equal(t, int64(0), f.ledgerLen(t))
}

func TestInvoiceService_CreateInvoice_Receipt(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 10)

	resp, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui", line("C01", 1)))
	require.NoError(t, err)

	require.NotEmpty(t, resp.ReceiptRef)
	assert.True(t, strings.HasSuffix(resp.ReceiptRef, resp.Number+".html"))

	content, err := afero.ReadFile(f.fs, receiptDir+"/"+resp.ReceiptRef)
	require.NoError(t, err)
	assert.Contains(t, string(content), resp.Number)
	assert.Contains(t, string(content), "rui")

	stored, err := f.svc.GetInvoice(ctx, resp.Number)
	require.NoError(t, err)
	assert.Equal(t, resp.ReceiptRef, stored.ReceiptRef)

	p, err := f.svc.ReceiptPath(ctx, resp.Number)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(receiptDir, filepath.FromSlash(resp.ReceiptRef)), p)
}

// failingStore refuses every write
type failingStore struct {
	infra.ReceiptStore
}

func (failingStore) Write(context.Context, string, time.Time, *infra.Document) (string, error) {
	return "", infra.NewRenderError(infra.ErrCodeStorageFailed, "disk full", nil)
}

func TestInvoiceService_CreateInvoice_ReceiptWriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, withReceiptStore(func(s infra.ReceiptStore) infra.ReceiptStore {
		return failingStore{ReceiptStore: s}
	}))
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 10)

	_, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui", line("C01", 3)))
	require.Error(t, err)
	var renderErr *infra.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, infra.ErrCodeStorageFailed, renderErr.Code)

	assert.Equal(t, 10, f.stockOf(t, cafe, "C01"))
	assert.Equal(t, int64(0), f.ledgerLen(t))
}

// failingCommitScope runs fn in a real transaction and then rolls it back
// as if the commit had failed
type failingCommitScope struct {
	inner appshared.TransactionScope
}

var errCommit = errors.New("commit failed")

func (s failingCommitScope) Execute(ctx context.Context, fn func(repos appshared.TransactionalRepositories) error) error {
	return s.inner.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		if err := fn(repos); err != nil {
			return err
		}
		return errCommit
	})
}

func TestInvoiceService_CreateInvoice_CommitFailureRemovesReceipt(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, withScope(func(s appshared.TransactionScope) appshared.TransactionScope {
		return failingCommitScope{inner: s}
	}))
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 10)

	_, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui", line("C01", 1)))
	require.ErrorIs(t, err, errCommit)

	assert.Equal(t, 10, f.stockOf(t, cafe, "C01"))
	assert.Equal(t, int64(0), f.ledgerLen(t))

	var files []string
	require.NoError(t, afero.Walk(f.fs, receiptDir, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, p)
		}
		return nil
	}))
	assert.Empty(t, files)
}

func TestInvoiceService_CreateInvoice_ConcurrentNeverOversells(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 5)

	const buyers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		numbers   []string
		rejected  int
		otherErrs []error
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui", line("C01", 1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				numbers = append(numbers, resp.Number)
			case errors.Is(err, shared.ErrInsufficientStock):
				rejected++
			default:
				otherErrs = append(otherErrs, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, otherErrs)
	assert.Len(t, numbers, 5)
	assert.Equal(t, buyers-5, rejected)
	assert.Equal(t, 0, f.stockOf(t, cafe, "C01"))
	assert.Equal(t, int64(5), f.ledgerLen(t))

	unique := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		unique[n] = struct{}{}
	}
	assert.Len(t, unique, len(numbers), "invoice numbers must be unique")
}

func TestInvoiceService_ListInvoices_OldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "0.80", 10)

	for range 3 {
		_, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui", line("C01", 1)))
		require.NoError(t, err)
	}

	list, err := f.svc.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i].Sequence, list[i-1].Sequence)
	}
	assert.True(t, strings.HasSuffix(list[0].Number, "-000001"))
}

func TestInvoiceService_GetInvoice_NotFound(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.svc.GetInvoice(context.Background(), "INV-NOPE")
	assert.True(t, errors.Is(err, shared.ErrInvoiceNotFound))
}

func TestInvoiceService_ExportCSV(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.seedSeller(t, cafe, "rui")
	f.seedProduct(t, cafe, "C01", "Café", "1.00", 10)

	resp, err := f.svc.CreateInvoice(ctx, saleRequest(cafe, "rui", line("C01", 2)))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportCSV(ctx, &buf))

	r := csv.NewReader(&buf)
	r.Comma = ';'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, resp.Number, rows[1][0])
	_, err = time.Parse(time.RFC3339, rows[1][1])
	assert.NoError(t, err)
	assert.Equal(t, []string{"rui", "2.00", "0.23", "2.46"}, rows[1][2:])
}

func TestMergeLines(t *testing.T) {
	price := decimal.RequireFromString("2.00")
	lines := mergeLines([]InvoiceLineRequest{
		{Code: "A1", Quantity: 1, UnitPrice: &price},
		{Code: "b2", Quantity: 2},
		{Code: " a1 ", Quantity: 4},
	})
	require.Len(t, lines, 3)
	assert.Equal(t, "A1", lines[0].code)
	assert.Equal(t, 1, lines[0].quantity)
	assert.Equal(t, &price, lines[0].unitPrice)
	assert.Equal(t, 2, lines[1].quantity)
	assert.Equal(t, 4, lines[2].quantity)
	assert.Nil(t, lines[2].unitPrice)

	same := decimal.RequireFromString("2")
	merged := mergeLines([]InvoiceLineRequest{
		{Code: "A1", Quantity: 1, UnitPrice: &price},
		{Code: "a1", Quantity: 3, UnitPrice: &same},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, 4, merged[0].quantity)
}
