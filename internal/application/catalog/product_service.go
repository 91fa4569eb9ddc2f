package catalog

import (
	"context"
	"strings"

	appshared "github.com/pos/backend/internal/application/shared"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/logger"
	"github.com/pos/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ProductService handles product and stock operations of each tenant's catalog.
// Every mutation runs under the tenant lock and in one transaction.
type ProductService struct {
	products        catalog.ProductRepository
	movements       catalog.StockMovementRepository
	txScope         appshared.TransactionScope
	locker          appshared.TenantLocker
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewProductService creates a new ProductService
func NewProductService(
	products catalog.ProductRepository,
	movements catalog.StockMovementRepository,
	txScope appshared.TransactionScope,
	locker appshared.TenantLocker,
	logger *zap.Logger,
) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		products:  products,
		movements: movements,
		txScope:   txScope,
		locker:    locker,
		logger:    logger,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *ProductService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// AddProduct stores a new product. An opening stock above zero is journaled
// as an INITIAL movement.
func (s *ProductService) AddProduct(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	if err := appshared.Validate(req); err != nil {
		return nil, err
	}

	product, err := catalog.NewProduct(req.Tenant(), req.Code, req.Name, req.Price, req.Type)
	if err != nil {
		return nil, err
	}
	if err := product.SetInitialStock(req.Stock, req.MinStock); err != nil {
		return nil, err
	}
	product.ImageRef = strings.TrimSpace(req.Image)

	err = s.locker.WithLock(ctx, product.Tenant, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
			exists, err := repos.Products().ExistsByCode(ctx, product.Tenant, product.Code)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError(shared.ErrDuplicateProductCode.Code,
					"Product code '"+product.Code+"' already exists for "+product.Tenant.String())
			}
			if err := repos.Products().Create(ctx, product); err != nil {
				return err
			}
			if product.Stock == 0 {
				return nil
			}
			change := catalog.StockChange{Requested: product.Stock, Applied: product.Stock, After: product.Stock}
			return repos.Movements().Create(ctx, catalog.NewStockMovement(product, catalog.MovementInitial, change))
		})
	})
	if err != nil {
		return nil, err
	}

	if product.Stock > 0 {
		s.businessMetrics.RecordStockMovement(ctx, product.Tenant, string(catalog.MovementInitial), product.Stock)
	}
	s.log(ctx, product.Tenant).Info("Product added",
		zap.String("code", product.Code),
		zap.Int("stock", product.Stock))

	resp := ToProductResponse(product)
	return &resp, nil
}

// UpdateProduct merges the supplied fields into the tenant's product with
// the given code
func (s *ProductService) UpdateProduct(ctx context.Context, tenant shared.Tenant, code string, req UpdateProductRequest) (*ProductResponse, error) {
	if err := appshared.Validate(req); err != nil {
		return nil, err
	}

	var product *catalog.Product
	err := s.locker.WithLock(ctx, tenant, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
			var err error
			product, err = repos.Products().FindByCode(ctx, tenant, code)
			if err != nil {
				return err
			}
			update := req.toDomain()
			if update.IsEmpty() {
				return nil
			}
			if err := product.Apply(update); err != nil {
				return err
			}
			return repos.Products().Save(ctx, product)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx, tenant).Info("Product updated", zap.String("code", product.Code))
	resp := ToProductResponse(product)
	return &resp, nil
}

// AdjustStock adds delta to the product's stock. A result below zero is
// clamped to zero and logged, not rejected.
func (s *ProductService) AdjustStock(ctx context.Context, tenant shared.Tenant, code string, delta int) (*ProductResponse, error) {
	var (
		product  *catalog.Product
		movement *catalog.StockMovement
	)
	err := s.locker.WithLock(ctx, tenant, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
			var err error
			product, err = repos.Products().FindByCode(ctx, tenant, code)
			if err != nil {
				return err
			}
			change, err := product.AdjustStock(delta)
			if err != nil {
				return err
			}
			if err := repos.Products().Save(ctx, product); err != nil {
				return err
			}
			movement = catalog.NewStockMovement(product, catalog.MovementAdjustment, change)
			return repos.Movements().Create(ctx, movement)
		})
	})
	if err != nil {
		return nil, err
	}

	log := s.log(ctx, tenant).With(zap.String("code", product.Code))
	if movement.WasClamped() {
		log.Warn("Stock adjustment clamped at zero",
			zap.Int("requested", movement.Requested),
			zap.Int("applied", movement.Applied))
	} else {
		log.Info("Stock adjusted", zap.Int("delta", delta), zap.Int("stock", product.Stock))
	}
	s.businessMetrics.RecordStockMovement(ctx, tenant, string(catalog.MovementAdjustment), movement.Applied)

	resp := ToProductResponse(product)
	return &resp, nil
}

// GetProduct returns the tenant's product with the given code
func (s *ProductService) GetProduct(ctx context.Context, tenant shared.Tenant, code string) (*ProductResponse, error) {
	product, err := s.products.FindByCode(ctx, tenant, code)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// ListProducts returns the products matching the filter
func (s *ProductService) ListProducts(ctx context.Context, filter ProductListFilter) ([]ProductResponse, error) {
	if err := appshared.Validate(filter); err != nil {
		return nil, err
	}
	products, err := s.products.FindAll(ctx, filter.toDomain())
	if err != nil {
		return nil, err
	}
	return ToProductResponses(products), nil
}

// ListLowStock returns the tenant's products whose stock is below their
// minimum and refreshes the low-stock gauge
func (s *ProductService) ListLowStock(ctx context.Context, tenant shared.Tenant) ([]ProductResponse, error) {
	products, err := s.products.FindAll(ctx, catalog.ProductFilter{Tenant: &tenant, LowStockOnly: true})
	if err != nil {
		return nil, err
	}
	s.businessMetrics.RecordLowStockCount(ctx, tenant, int64(len(products)))
	return ToProductResponses(products), nil
}

// StockHistory returns the movement journal of a product, newest first
func (s *ProductService) StockHistory(ctx context.Context, tenant shared.Tenant, code string) ([]StockMovementResponse, error) {
	product, err := s.products.FindByCode(ctx, tenant, code)
	if err != nil {
		return nil, err
	}
	movements, err := s.movements.FindByProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	return ToStockMovementResponses(movements), nil
}

func (s *ProductService) log(ctx context.Context, tenant shared.Tenant) *logger.ContextLogger {
	return logger.WithLogger(logger.WithTenant(ctx, tenant.Key()), s.logger)
}
