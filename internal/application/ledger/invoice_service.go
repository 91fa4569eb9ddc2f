package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	appshared "github.com/pos/backend/internal/application/shared"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/ledger"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/logger"
	infra "github.com/pos/backend/internal/infrastructure/printing"
	"github.com/pos/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CSVHeader is the first row written by ExportCSV
var CSVHeader = []string{"id", "timestamp", "seller", "total_no_vat", "vat_rate", "total_with_vat"}

// InvoiceServiceConfig holds ledger settings
type InvoiceServiceConfig struct {
	// DefaultTaxRate applies when a request carries none; zero is a valid rate
	DefaultTaxRate decimal.Decimal
	NumberPrefix   string
	Now            func() time.Time
}

// DefaultInvoiceServiceConfig returns the default ledger configuration
func DefaultInvoiceServiceConfig() InvoiceServiceConfig {
	return InvoiceServiceConfig{
		DefaultTaxRate: ledger.DefaultTaxRate,
		NumberPrefix:   ledger.DefaultNumberPrefix,
		Now:            time.Now,
	}
}

// InvoiceService commits sales to the ledger. Creating an invoice validates
// stock, decrements it, appends the invoice and attaches its receipt in one
// transaction under the tenant lock.
type InvoiceService struct {
	invoices        ledger.InvoiceRepository
	txScope         appshared.TransactionScope
	locker          appshared.TenantLocker
	renderer        infra.ReceiptRenderer
	receipts        infra.ReceiptStore
	config          InvoiceServiceConfig
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoices ledger.InvoiceRepository,
	txScope appshared.TransactionScope,
	locker appshared.TenantLocker,
	renderer infra.ReceiptRenderer,
	receipts infra.ReceiptStore,
	config InvoiceServiceConfig,
	logger *zap.Logger,
) *InvoiceService {
	defaults := DefaultInvoiceServiceConfig()
	if config.NumberPrefix == "" {
		config.NumberPrefix = defaults.NumberPrefix
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoices: invoices,
		txScope:  txScope,
		locker:   locker,
		renderer: renderer,
		receipts: receipts,
		config:   config,
		logger:   logger,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *InvoiceService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// saleLine is a requested line after repeated lines are merged
type saleLine struct {
	code      string
	quantity  int
	unitPrice *decimal.Decimal
}

func samePrice(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// mergeLines sums the quantities of lines sharing a code (case-insensitively)
// and a requested unit price. Lines of one product at different prices stay
// separate so every line is billed at its own price.
func mergeLines(items []InvoiceLineRequest) []saleLine {
	index := make(map[string][]int, len(items))
	lines := make([]saleLine, 0, len(items))
next:
	for _, item := range items {
		key := shared.Fold(item.Code)
		for _, i := range index[key] {
			if samePrice(lines[i].unitPrice, item.UnitPrice) {
				lines[i].quantity += item.Quantity
				continue next
			}
		}
		index[key] = append(index[key], len(lines))
		lines = append(lines, saleLine{
			code:      strings.TrimSpace(item.Code),
			quantity:  item.Quantity,
			unitPrice: item.UnitPrice,
		})
	}
	return lines
}

// demand is the total quantity a sale takes from one product
type demand struct {
	product  *catalog.Product
	quantity int
}

// CreateInvoice commits a sale. When any line cannot be resolved or covered
// nothing is written: no stock moves, no invoice and no receipt exist.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	if err := appshared.Validate(req); err != nil {
		return nil, err
	}

	tenant := req.Tenant()
	taxRate := s.config.DefaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	lines := mergeLines(req.Items)
	ctx = logger.WithTenant(ctx, tenant.Key())

	var (
		invoice    *ledger.Invoice
		receiptRef string
		doc        *infra.Document
	)
	err := s.locker.WithLock(ctx, tenant, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
			seller, err := repos.Accounts().FindByUsername(ctx, req.Seller)
			if err != nil {
				return err
			}
			if !seller.BelongsTo(tenant) {
				return shared.NewDomainError("INVALID_SELLER",
					fmt.Sprintf("Account '%s' cannot sell for %s", seller.Username, tenant))
			}

			// Resolve and check every line before touching stock
			byCode := make(map[string]int, len(lines))
			var demands []demand
			items := make([]ledger.InvoiceItem, len(lines))
			for i, line := range lines {
				key := shared.Fold(line.code)
				j, ok := byCode[key]
				if !ok {
					product, err := repos.Products().FindByCode(ctx, tenant, line.code)
					if err != nil {
						return err
					}
					j = len(demands)
					byCode[key] = j
					demands = append(demands, demand{product: product})
				}
				demands[j].quantity += line.quantity
				product := demands[j].product

				unitPrice := product.Price
				if line.unitPrice != nil {
					unitPrice = *line.unitPrice
				}
				item, err := ledger.NewInvoiceItem(product.ID, product.Code, product.Name, line.quantity, unitPrice)
				if err != nil {
					return err
				}
				items[i] = item
			}
			for _, d := range demands {
				if !d.product.CanFulfill(d.quantity) {
					return catalog.InsufficientStockError(d.product, d.quantity)
				}
			}

			seq, err := repos.Invoices().NextSequence(ctx)
			if err != nil {
				return fmt.Errorf("failed to advance invoice sequence: %w", err)
			}
			issuedAt := s.config.Now()
			number := ledger.FormatNumber(s.config.NumberPrefix, issuedAt, seq)
			invoice, err = ledger.NewInvoice(tenant, seller.Username, items, taxRate, number, seq, issuedAt)
			if err != nil {
				return err
			}

			for _, d := range demands {
				product, qty := d.product, d.quantity
				ok, err := repos.Products().DecrementStock(ctx, product.ID, qty)
				if err != nil {
					return fmt.Errorf("failed to decrement stock of %s: %w", product.Code, err)
				}
				if !ok {
					return catalog.InsufficientStockError(product, qty)
				}
				change, err := product.Deduct(qty)
				if err != nil {
					return err
				}
				movement := catalog.NewStockMovement(product, catalog.MovementSale, change).WithReference(number)
				if err := repos.Movements().Create(ctx, movement); err != nil {
					return err
				}
			}

			if err := repos.Invoices().Create(ctx, invoice); err != nil {
				return err
			}

			doc, err = s.renderer.Render(ctx, invoice)
			if err != nil {
				return err
			}
			receiptRef, err = s.receipts.Write(ctx, invoice.Number, invoice.IssuedAt, doc)
			if err != nil {
				return err
			}
			if err := invoice.AttachReceipt(receiptRef); err != nil {
				return err
			}
			return repos.Invoices().AttachReceipt(ctx, invoice.ID, receiptRef)
		})
	})
	if err != nil {
		s.discardReceipt(ctx, receiptRef)
		log := logger.WithLogger(ctx, s.logger)
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.businessMetrics.RecordInsufficientStock(ctx, tenant)
			log.Warn("Invoice rejected", zap.Error(err))
		} else {
			log.Warn("Invoice not committed", zap.Error(err))
		}
		return nil, err
	}

	for _, item := range invoice.Items {
		s.businessMetrics.RecordStockMovement(ctx, tenant, string(catalog.MovementSale), -item.Quantity)
	}
	s.businessMetrics.RecordInvoice(ctx, tenant, invoice.Seller, invoice.TotalInclTax)
	s.businessMetrics.RecordReceiptRendered(ctx, strings.TrimPrefix(doc.Ext, "."), doc.RenderDuration)

	logger.WithLogger(ctx, s.logger).Info("Invoice committed",
		zap.String("number", invoice.Number),
		zap.String("seller", invoice.Seller),
		zap.String("total_incl_tax", invoice.TotalInclTax.StringFixed(2)),
		zap.String("receipt", receiptRef))

	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// discardReceipt removes a receipt written by a transaction that did not commit
func (s *InvoiceService) discardReceipt(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.receipts.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Error("Failed to remove orphaned receipt", zap.String("ref", ref), zap.Error(err))
	}
}

// ListInvoices returns the whole ledger, oldest first
func (s *InvoiceService) ListInvoices(ctx context.Context) ([]InvoiceResponse, error) {
	invoices, err := s.invoices.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponses(invoices), nil
}

// GetInvoice returns the invoice with the given number
func (s *InvoiceService) GetInvoice(ctx context.Context, number string) (*InvoiceResponse, error) {
	invoice, err := s.invoices.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(invoice)
	return &resp, nil
}

// ReceiptPath returns where the receipt of an invoice is stored
func (s *InvoiceService) ReceiptPath(ctx context.Context, number string) (string, error) {
	invoice, err := s.invoices.FindByNumber(ctx, number)
	if err != nil {
		return "", err
	}
	if !invoice.HasReceipt() {
		return "", shared.NewDomainError(shared.ErrNotFound.Code, "Invoice "+number+" has no receipt")
	}
	return s.receipts.Path(invoice.ReceiptRef), nil
}

// ExportCSV writes the ledger as a ';'-delimited table, oldest first
func (s *InvoiceService) ExportCSV(ctx context.Context, w io.Writer) error {
	invoices, err := s.invoices.FindAll(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return err
		}
		record := []string{
			inv.Number,
			inv.IssuedAt.Format(time.RFC3339),
			inv.Seller,
			inv.TotalExclTax.StringFixed(2),
			inv.TaxRate.String(),
			inv.TotalInclTax.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", inv.Number, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
