package telemetry

import (
	"context"
	"time"

	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics tracks sales, stock movements and credential failures.
// A nil *BusinessMetrics records nothing.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	invoiceCreatedTotal    *Counter
	invoiceAmountTotal     *Counter
	stockMovedUnits        *Counter
	insufficientStockTotal *Counter
	authFailureTotal       *Counter

	receiptRenderDuration *Histogram

	// Gauge metrics (point-in-time values)
	lowStockCount *Gauge
}

// LowStockProvider reports how many products sit below their minimum
// stock, per tenant
type LowStockProvider interface {
	LowStockCounts(ctx context.Context) (map[shared.Tenant]int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	bm.invoiceCreatedTotal, err = NewCounter(cfg.Meter,
		"pos_invoice_created_total",
		"Total number of invoices committed",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	bm.invoiceAmountTotal, err = NewCounter(cfg.Meter,
		"pos_invoice_amount_total",
		"Total invoiced amount including tax, in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	bm.stockMovedUnits, err = NewCounter(cfg.Meter,
		"pos_stock_moved_units_total",
		"Units added to or removed from stock",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	bm.insufficientStockTotal, err = NewCounter(cfg.Meter,
		"pos_insufficient_stock_total",
		"Invoices rejected for insufficient stock",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	bm.authFailureTotal, err = NewCounter(cfg.Meter,
		"pos_auth_failure_total",
		"Failed authentication and password recovery attempts",
		"{attempts}",
	)
	if err != nil {
		return nil, err
	}

	bm.receiptRenderDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "pos_receipt_render_duration_seconds",
		Description: "Time spent rendering receipt documents",
		Unit:        "s",
		Boundaries:  RenderDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	bm.lowStockCount, err = NewGauge(cfg.Meter,
		"pos_low_stock_products",
		"Number of products below minimum stock",
		"{products}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

func tenantAttrs(t shared.Tenant) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCompany.String(t.Company),
		AttrShopType.String(string(t.ShopType)),
	}
}

// =============================================================================
// Sales
// =============================================================================

// RecordInvoice records a committed invoice and its amount including tax.
func (bm *BusinessMetrics) RecordInvoice(ctx context.Context, tenant shared.Tenant, seller string, totalInclTax decimal.Decimal) {
	if bm == nil {
		return
	}
	attrs := append(tenantAttrs(tenant), AttrSeller.String(seller))
	bm.invoiceCreatedTotal.Inc(ctx, attrs...)

	cents := totalInclTax.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	bm.invoiceAmountTotal.Add(ctx, cents, attrs...)
}

// RecordInsufficientStock records an invoice rejected for lack of stock.
func (bm *BusinessMetrics) RecordInsufficientStock(ctx context.Context, tenant shared.Tenant) {
	if bm == nil {
		return
	}
	bm.insufficientStockTotal.Inc(ctx, tenantAttrs(tenant)...)
}

// RecordReceiptRendered records how long a receipt took to render.
func (bm *BusinessMetrics) RecordReceiptRendered(ctx context.Context, format string, d time.Duration) {
	if bm == nil {
		return
	}
	bm.receiptRenderDuration.RecordDuration(ctx, d, AttrFormat.String(format))
}

// =============================================================================
// Stock
// =============================================================================

// RecordStockMovement records the absolute number of units moved.
func (bm *BusinessMetrics) RecordStockMovement(ctx context.Context, tenant shared.Tenant, movementType string, delta int) {
	if bm == nil || delta == 0 {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	attrs := append(tenantAttrs(tenant), AttrMovementType.String(movementType))
	bm.stockMovedUnits.Add(ctx, int64(delta), attrs...)
}

// RecordLowStockCount records the number of products below minimum stock.
func (bm *BusinessMetrics) RecordLowStockCount(ctx context.Context, tenant shared.Tenant, count int64) {
	if bm == nil {
		return
	}
	bm.lowStockCount.Record(ctx, count, tenantAttrs(tenant)...)
}

// CollectLowStock refreshes the low-stock gauge for every tenant the
// provider knows about.
func (bm *BusinessMetrics) CollectLowStock(ctx context.Context, provider LowStockProvider) error {
	if bm == nil || provider == nil {
		return nil
	}
	counts, err := provider.LowStockCounts(ctx)
	if err != nil {
		bm.logger.Warn("Failed to collect low stock counts", zap.Error(err))
		return err
	}
	for tenant, count := range counts {
		bm.RecordLowStockCount(ctx, tenant, count)
	}
	return nil
}

// =============================================================================
// Credentials
// =============================================================================

// Auth failure reasons
const (
	AuthFailureLogin    = "login"
	AuthFailurePassword = "change_password"
	AuthFailureRecovery = "recovery_code"
)

// RecordAuthFailure records a rejected credential check.
func (bm *BusinessMetrics) RecordAuthFailure(ctx context.Context, reason string) {
	if bm == nil {
		return
	}
	bm.authFailureTotal.Inc(ctx, AttrReason.String(reason))
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
