package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/ledger"
	"github.com/pos/backend/internal/domain/report"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInvoiceRepository is a mock implementation of ledger.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) NextSequence(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) AttachReceipt(ctx context.Context, id uuid.UUID, ref string) error {
	args := m.Called(ctx, id, ref)
	return args.Error(0)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, number string) (*ledger.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context) ([]*ledger.Invoice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// stubDirectory returns fixed sellers per tenant
type stubDirectory map[shared.Tenant][]string

func (d stubDirectory) SellersForTenant(_ context.Context, company string, shopType shared.ShopType) ([]string, error) {
	return d[shared.Tenant{Company: company, ShopType: shopType}], nil
}

var (
	cafe   = shared.Tenant{Company: "Cafe Lisboa", ShopType: shared.ShopTypeRestauracao}
	garage = shared.Tenant{Company: "Auto Porto", ShopType: shared.ShopTypeOficina}
	empty  = shared.Tenant{Company: "Nova", ShopType: shared.ShopTypeOutro}
)

func invoiceAt(seller string, at time.Time, total string) *ledger.Invoice {
	return &ledger.Invoice{
		Seller:       seller,
		IssuedAt:     at,
		TotalInclTax: decimal.RequireFromString(total),
	}
}

func testLedger() []*ledger.Invoice {
	sep := time.Date(2026, 9, 30, 23, 0, 0, 0, time.UTC)
	oct := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return []*ledger.Invoice{
		invoiceAt("rui", sep, "10.00"),
		invoiceAt("ana", oct, "2.46"),
		invoiceAt("eva", oct, "100.00"),
		invoiceAt("rui", oct, "5.54"),
		invoiceAt("rui", time.Time{}, "7.00"),
	}
}

func newTestService(t *testing.T) *ReportService {
	t.Helper()
	repo := new(MockInvoiceRepository)
	repo.On("FindAll", mock.Anything).Return(testLedger(), nil)
	dir := stubDirectory{
		cafe:   {"rui", "ana"},
		garage: {"eva"},
	}
	return NewReportService(repo, dir, nil)
}

func TestReportService_MonthlyTotals(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	t.Run("unscoped", func(t *testing.T) {
		totals, err := svc.MonthlyTotals(ctx, nil)
		require.NoError(t, err)
		require.Len(t, totals.Buckets, 2)
		assert.Equal(t, "2026-09", totals.Buckets[0].Key)
		assert.Equal(t, "2026-10", totals.Buckets[1].Key)
		assert.Equal(t, "108.00", totals.Get("2026-10").StringFixed(2))
		assert.Equal(t, "118.00", totals.GrandTotal.StringFixed(2))
		assert.Equal(t, int64(4), totals.InvoiceCount)
	})

	t.Run("scoped", func(t *testing.T) {
		totals, err := svc.MonthlyTotals(ctx, report.NewScope("rui"))
		require.NoError(t, err)
		assert.Equal(t, "10.00", totals.Get("2026-09").StringFixed(2))
		assert.Equal(t, "5.54", totals.Get("2026-10").StringFixed(2))
		assert.Equal(t, "15.54", totals.GrandTotal.StringFixed(2))
	})

	t.Run("empty scope yields nothing", func(t *testing.T) {
		totals, err := svc.MonthlyTotals(ctx, report.NewScope())
		require.NoError(t, err)
		assert.Empty(t, totals.Buckets)
		assert.True(t, totals.GrandTotal.IsZero())
	})
}

func TestReportService_TotalsBySeller(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	totals, err := svc.TotalsBySeller(ctx, nil)
	require.NoError(t, err)

	keys := make([]string, len(totals.Buckets))
	for i, b := range totals.Buckets {
		keys[i] = b.Key
	}
	assert.Equal(t, []string{"ana", "eva", "rui"}, keys)
	assert.Equal(t, "22.54", totals.Get("rui").StringFixed(2))
}

func TestReportService_TenantScoped(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	bySeller, err := svc.TenantTotalsBySeller(ctx, cafe)
	require.NoError(t, err)
	assert.True(t, bySeller.Get("eva").IsZero(), "sellers of other tenants are excluded")
	assert.Equal(t, "25.00", bySeller.GrandTotal.StringFixed(2))

	monthly, err := svc.TenantMonthlyTotals(ctx, garage)
	require.NoError(t, err)
	require.Len(t, monthly.Buckets, 1)
	assert.Equal(t, "100.00", monthly.Get("2026-10").StringFixed(2))

	none, err := svc.TenantMonthlyTotals(ctx, empty)
	require.NoError(t, err)
	assert.Empty(t, none.Buckets)
}

func TestReportService_RepositoryError(t *testing.T) {
	repo := new(MockInvoiceRepository)
	boom := errors.New("database is locked")
	repo.On("FindAll", mock.Anything).Return(nil, boom)
	svc := NewReportService(repo, stubDirectory{}, nil)

	_, err := svc.MonthlyTotals(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}
