package persistence

import (
	"context"
	"errors"

	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/persistence/models"
	"github.com/pos/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormAccountRepository implements AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Create stores a new account
func (r *GormAccountRepository) Create(ctx context.Context, account *identity.Account) error {
	model := models.AccountModelFromDomain(account)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicate(err) {
			return shared.ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// Update persists credential and profile changes of an existing account
func (r *GormAccountRepository) Update(ctx context.Context, account *identity.Account) error {
	model := models.AccountModelFromDomain(account)
	result := r.db.WithContext(ctx).Model(&models.AccountModel{}).
		Where("id = ?", account.ID).
		Select("email", "email_key", "password_hash", "photo_ref", "version", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

// FindByUsername finds an account by username, case-insensitively
func (r *GormAccountRepository) FindByUsername(ctx context.Context, username string) (*identity.Account, error) {
	return r.first(ctx, "username_key = ?", shared.Fold(username))
}

// FindByEmail finds the first account registered with the email
func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	return r.first(ctx, "email_key = ?", shared.Fold(email))
}

func (r *GormAccountRepository) first(ctx context.Context, query string, arg any) (*identity.Account, error) {
	var model models.AccountModel
	err := r.db.WithContext(ctx).Where(query, arg).Order("created_at ASC, id ASC").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrAccountNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByUsername checks if a username is taken, case-insensitively
func (r *GormAccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AccountModel{}).
		Where("username_key = ?", shared.Fold(username)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll returns every account in registration order
func (r *GormAccountRepository) FindAll(ctx context.Context) ([]*identity.Account, error) {
	return r.find(r.db.WithContext(ctx))
}

// FindByTenant returns the tenant's accounts with any of the given roles
func (r *GormAccountRepository) FindByTenant(ctx context.Context, t shared.Tenant, roles ...identity.Role) ([]*identity.Account, error) {
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(t))
	if len(roles) > 0 {
		query = query.Where("role IN ?", roles)
	}
	return r.find(query)
}

func (r *GormAccountRepository) find(query *gorm.DB) ([]*identity.Account, error) {
	var rows []models.AccountModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make([]*identity.Account, len(rows))
	for i := range rows {
		accounts[i] = rows[i].ToDomain()
	}
	return accounts, nil
}

var _ identity.AccountRepository = (*GormAccountRepository)(nil)
