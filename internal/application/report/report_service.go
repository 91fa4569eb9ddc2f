package report

import (
	"context"

	"github.com/pos/backend/internal/domain/ledger"
	"github.com/pos/backend/internal/domain/report"
	"github.com/pos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SellerDirectory resolves the usernames allowed to sell for a tenant
type SellerDirectory interface {
	SellersForTenant(ctx context.Context, company string, shopType shared.ShopType) ([]string, error)
}

// ReportService aggregates the ledger into sales totals
type ReportService struct {
	invoices ledger.InvoiceRepository
	sellers  SellerDirectory
	logger   *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(invoices ledger.InvoiceRepository, sellers SellerDirectory, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		invoices: invoices,
		sellers:  sellers,
		logger:   logger,
	}
}

// MonthlyTotals sums total including tax per calendar month. A nil scope
// covers every seller; an empty scope covers none.
func (s *ReportService) MonthlyTotals(ctx context.Context, scope *report.Scope) (*report.Totals, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	totals := report.MonthlyTotals(entries, scope)
	return &totals, nil
}

// TotalsBySeller sums total including tax per seller username
func (s *ReportService) TotalsBySeller(ctx context.Context, scope *report.Scope) (*report.Totals, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	totals := report.TotalsBySeller(entries, scope)
	return &totals, nil
}

// TenantMonthlyTotals is MonthlyTotals scoped to the tenant's sellers
func (s *ReportService) TenantMonthlyTotals(ctx context.Context, tenant shared.Tenant) (*report.Totals, error) {
	scope, err := s.tenantScope(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return s.MonthlyTotals(ctx, scope)
}

// TenantTotalsBySeller is TotalsBySeller scoped to the tenant's sellers
func (s *ReportService) TenantTotalsBySeller(ctx context.Context, tenant shared.Tenant) (*report.Totals, error) {
	scope, err := s.tenantScope(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return s.TotalsBySeller(ctx, scope)
}

func (s *ReportService) tenantScope(ctx context.Context, tenant shared.Tenant) (*report.Scope, error) {
	sellers, err := s.sellers.SellersForTenant(ctx, tenant.Company, tenant.ShopType)
	if err != nil {
		return nil, err
	}
	if len(sellers) == 0 {
		s.logger.Warn("Tenant has no sellers; report is empty", zap.String("tenant", tenant.Key()))
	}
	return report.NewScope(sellers...), nil
}

func (s *ReportService) entries(ctx context.Context) ([]report.Entry, error) {
	invoices, err := s.invoices.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]report.Entry, len(invoices))
	for i, inv := range invoices {
		entries[i] = report.Entry{
			Seller:       inv.Seller,
			IssuedAt:     inv.IssuedAt,
			TotalInclTax: inv.TotalInclTax,
		}
	}
	return entries, nil
}
