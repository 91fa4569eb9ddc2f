package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/ledger"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// NextSequence advances the invoice sequence and returns the new value.
// Called inside a transaction the UPDATE holds the row until commit, so
// two writers can never read the same value.
func (r *GormInvoiceRepository) NextSequence(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.LedgerSequenceModel{}).
		Where("name = ?", models.InvoiceSequenceName).
		Update("last_value", gorm.Expr("last_value + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		seq := models.LedgerSequenceModel{Name: models.InvoiceSequenceName, LastValue: 1}
		if err := db.Create(&seq).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}

	var seq models.LedgerSequenceModel
	if err := db.Where("name = ?", models.InvoiceSequenceName).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}

// Create appends an invoice with its items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	if err := r.db.WithContext(ctx).Create(models.InvoiceModelFromDomain(invoice)).Error; err != nil {
		if isDuplicate(err) {
			return shared.NewDomainError("DUPLICATE_INVOICE_NUMBER", "Invoice number "+invoice.Number+" already exists")
		}
		return err
	}
	return nil
}

// AttachReceipt stores the receipt reference of an invoice that has none
func (r *GormInvoiceRepository) AttachReceipt(ctx context.Context, id uuid.UUID, ref string) error {
	result := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("id = ? AND (receipt_ref IS NULL OR receipt_ref = '')", id).
		Update("receipt_ref", ref)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.ErrInvalidState.Code, "Invoice not found or receipt already attached")
	}
	return nil
}

// FindByNumber finds an invoice by its human number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).Preload("Items", orderItems).
		Where("number = ?", number).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.InvoiceNotFoundError(number)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByNumber checks if the number is already in the ledger
func (r *GormInvoiceRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("number = ?", number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll returns the whole ledger, oldest first
func (r *GormInvoiceRepository) FindAll(ctx context.Context) ([]*ledger.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).Preload("Items", orderItems).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	invoices := make([]*ledger.Invoice, len(rows))
	for i := range rows {
		invoices[i] = rows[i].ToDomain()
	}
	return invoices, nil
}

// Count returns the ledger length
func (r *GormInvoiceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Count(&count).Error
	return count, err
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("line ASC")
}

var _ ledger.InvoiceRepository = (*GormInvoiceRepository)(nil)
