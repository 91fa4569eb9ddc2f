package cli

import (
	"context"
	"errors"

	catalogapp "github.com/pos/backend/internal/application/catalog"
	identityapp "github.com/pos/backend/internal/application/identity"
	ledgerapp "github.com/pos/backend/internal/application/ledger"
	reportapp "github.com/pos/backend/internal/application/report"
	"github.com/pos/backend/internal/application/snapshot"
	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/infrastructure/config"
	"github.com/pos/backend/internal/infrastructure/logger"
	"github.com/pos/backend/internal/infrastructure/persistence"
	"github.com/pos/backend/internal/infrastructure/persistence/tenant"
	infra "github.com/pos/backend/internal/infrastructure/printing"
	"github.com/pos/backend/internal/infrastructure/telemetry"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// App holds the services of one command invocation
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *persistence.Database
	Directory *identityapp.DirectoryService
	Catalog   *catalogapp.ProductService
	Ledger    *ledgerapp.InvoiceService
	Reports   *reportapp.ReportService
	Snapshots *snapshot.Service

	meters   *telemetry.MeterProvider
	metrics  *telemetry.BusinessMetrics
	lowStock *telemetry.GormLowStockProvider
	closers  []func() error
}

// NewApp connects the store and wires every service
func NewApp(cfg *config.Config, log *zap.Logger, fs afero.Fs) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	gormLog := logger.NewGormLogger(log, logger.GormLoggerConfigFor(cfg.Log.Level, cfg.Store.SlowQuery))
	db, err := persistence.NewDatabase(&cfg.Store, gormLog)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: log, DB: db}
	app.closers = append(app.closers, db.Close)

	taxRate, err := cfg.Ledger.TaxRate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	meters, err := telemetry.NewMeterProvider(telemetry.MetricsConfig{
		Enabled:     cfg.Telemetry.MetricsEnabled,
		ServiceName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meters.Meter(cfg.Telemetry.ServiceName),
		Logger: log,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	app.meters = meters
	app.metrics = metrics
	app.lowStock = telemetry.NewGormLowStockProvider(db.DB)

	// Repositories
	accountRepo := persistence.NewGormAccountRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	movementRepo := persistence.NewGormStockMovementRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)
	locks := tenant.NewLocks()
	hasher := identity.NewBcryptHasher(cfg.Security.BcryptCost)

	// Receipts
	html := infra.NewHTMLRenderer()
	var renderer infra.ReceiptRenderer = html
	if cfg.Receipt.Format == config.FormatPDF {
		pdf := infra.NewChromedpRenderer(html, infra.ChromedpConfig{
			Timeout:   cfg.Receipt.ChromeTimeout,
			RemoteURL: cfg.Receipt.ChromeURL,
			NoSandbox: cfg.Receipt.NoSandbox,
			Logger:    log,
		})
		renderer = pdf
		app.closers = append(app.closers, pdf.Close)
	}
	receipts := infra.NewFileReceiptStore(fs, cfg.Receipt.Dir, log)

	// Services
	app.Directory = identityapp.NewDirectoryService(accountRepo, hasher, identityapp.DirectoryServiceConfig{
		RecoveryCodeTTL: cfg.Security.RecoveryCodeTTL,
	}, log)
	app.Directory.SetBusinessMetrics(metrics)

	app.Catalog = catalogapp.NewProductService(productRepo, movementRepo, txScope, locks, log)
	app.Catalog.SetBusinessMetrics(metrics)

	ledgerConfig := ledgerapp.DefaultInvoiceServiceConfig()
	ledgerConfig.DefaultTaxRate = taxRate
	ledgerConfig.NumberPrefix = cfg.Ledger.NumberPrefix
	app.Ledger = ledgerapp.NewInvoiceService(invoiceRepo, txScope, locks, renderer, receipts, ledgerConfig, log)
	app.Ledger.SetBusinessMetrics(metrics)

	app.Reports = reportapp.NewReportService(invoiceRepo, app.Directory, log)
	app.Snapshots = snapshot.NewService(fs, accountRepo, productRepo, invoiceRepo, txScope, hasher, log)

	return app, nil
}

// Close flushes metrics and releases the store and the browser
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.meters.IsEnabled() {
		if err := a.metrics.CollectLowStock(ctx, a.lowStock); err != nil {
			errs = append(errs, err)
		}
		if err := a.meters.LogSnapshot(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.meters.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
