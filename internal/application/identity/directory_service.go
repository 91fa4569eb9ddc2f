package identity

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	appshared "github.com/pos/backend/internal/application/shared"
	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/logger"
	"github.com/pos/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DirectoryServiceConfig holds credential settings for the directory
type DirectoryServiceConfig struct {
	RecoveryCodeTTL time.Duration
	// CodeSource feeds recovery code generation; crypto/rand when nil
	CodeSource io.Reader
	Now        func() time.Time
}

// DefaultDirectoryServiceConfig returns the default directory configuration
func DefaultDirectoryServiceConfig() DirectoryServiceConfig {
	return DirectoryServiceConfig{
		RecoveryCodeTTL: 15 * time.Minute,
		Now:             time.Now,
	}
}

// DirectoryService manages accounts: registration, authentication and
// credential changes. Registrations are serialized by a directory-wide
// mutex backed by the unique index on the folded username.
type DirectoryService struct {
	accounts        identity.AccountRepository
	hasher          identity.PasswordHasher
	config          DirectoryServiceConfig
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics

	registerMu sync.Mutex

	codesMu sync.Mutex
	codes   map[uuid.UUID]*identity.RecoveryCode
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(
	accounts identity.AccountRepository,
	hasher identity.PasswordHasher,
	config DirectoryServiceConfig,
	logger *zap.Logger,
) *DirectoryService {
	if config.RecoveryCodeTTL <= 0 {
		config.RecoveryCodeTTL = DefaultDirectoryServiceConfig().RecoveryCodeTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{
		accounts: accounts,
		hasher:   hasher,
		config:   config,
		logger:   logger,
		codes:    make(map[uuid.UUID]*identity.RecoveryCode),
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *DirectoryService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// RegisterAdmin creates the administrator account of a tenant
func (s *DirectoryService) RegisterAdmin(ctx context.Context, req RegisterAdminRequest) (*AccountResponse, error) {
	if err := appshared.Validate(req); err != nil {
		return nil, err
	}
	account, err := identity.NewAdmin(req.Tenant(), req.VAT, req.Username, req.Email, req.Password, s.hasher)
	if err != nil {
		return nil, err
	}
	account.PhotoRef = strings.TrimSpace(req.Photo)

	if err := s.register(ctx, account); err != nil {
		return nil, err
	}

	resp := ToAccountResponse(account)
	return &resp, nil
}

// AddVendor creates a seller account. It does not require the tenant to
// have an administrator.
func (s *DirectoryService) AddVendor(ctx context.Context, req AddVendorRequest) (*AccountResponse, error) {
	if err := appshared.Validate(req); err != nil {
		return nil, err
	}
	account, err := identity.NewVendor(req.Tenant(), req.Username, req.Email, req.Password, s.hasher)
	if err != nil {
		return nil, err
	}
	account.PhotoRef = strings.TrimSpace(req.Photo)

	if err := s.register(ctx, account); err != nil {
		return nil, err
	}

	resp := ToAccountResponse(account)
	return &resp, nil
}

func (s *DirectoryService) register(ctx context.Context, account *identity.Account) error {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	log := logger.WithLogger(logger.WithUsername(logger.WithTenant(ctx, account.Tenant.Key()), account.Username), s.logger)

	exists, err := s.accounts.ExistsByUsername(ctx, account.Username)
	if err != nil {
		return err
	}
	if exists {
		log.Warn("Username already taken")
		return shared.NewDomainError(shared.ErrDuplicateUsername.Code,
			"Username '"+account.Username+"' already exists")
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return err
	}

	log.Info("Account registered", zap.String("role", string(account.Role)))
	return nil
}

// Authenticate returns the account whose username matches case-insensitively
// and whose password verifies exactly. Any mismatch yields nil without error.
func (s *DirectoryService) Authenticate(ctx context.Context, username, password string) (*AccountResponse, error) {
	account, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.VerifyPassword(s.hasher, password) {
		s.logger.Warn("Authentication failed", zap.String("username", username))
		s.businessMetrics.RecordAuthFailure(ctx, telemetry.AuthFailureLogin)
		return nil, nil
	}

	resp := ToAccountResponse(account)
	return &resp, nil
}

// ChangePassword overwrites the password after verifying the old one.
// It reports false when the account is unknown or the old password is wrong.
func (s *DirectoryService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) (bool, error) {
	account, err := s.findByUsername(ctx, username)
	if err != nil || account == nil {
		return false, err
	}
	if !account.VerifyPassword(s.hasher, oldPassword) {
		s.logger.Warn("Password change rejected", zap.String("username", username))
		s.businessMetrics.RecordAuthFailure(ctx, telemetry.AuthFailurePassword)
		return false, nil
	}
	if err := account.SetPassword(s.hasher, newPassword); err != nil {
		return false, err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return false, err
	}

	s.logger.Info("Password changed", zap.String("username", account.Username))
	return true, nil
}

// UpdatePhoto sets or replaces the profile photo reference. It reports
// false when the username is unknown.
func (s *DirectoryService) UpdatePhoto(ctx context.Context, username, ref string) (bool, error) {
	account, err := s.findByUsername(ctx, username)
	if err != nil || account == nil {
		return false, err
	}
	account.SetPhoto(ref)
	if err := s.accounts.Update(ctx, account); err != nil {
		return false, err
	}
	return true, nil
}

// SellersForTenant returns the usernames allowed to sell for the tenant:
// vendors first, then administrators, each in registration order.
func (s *DirectoryService) SellersForTenant(ctx context.Context, company string, shopType shared.ShopType) ([]string, error) {
	tenant := shared.Tenant{Company: company, ShopType: shopType}

	vendors, err := s.accounts.FindByTenant(ctx, tenant, identity.RoleVendor)
	if err != nil {
		return nil, err
	}
	admins, err := s.accounts.FindByTenant(ctx, tenant, identity.RoleAdmin)
	if err != nil {
		return nil, err
	}

	sellers := make([]string, 0, len(vendors)+len(admins))
	for _, a := range vendors {
		sellers = append(sellers, a.Username)
	}
	for _, a := range admins {
		sellers = append(sellers, a.Username)
	}
	return sellers, nil
}

// ListAccounts returns every account in registration order
func (s *DirectoryService) ListAccounts(ctx context.Context) ([]AccountResponse, error) {
	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ToAccountResponses(accounts), nil
}

// ListVendors returns the tenant's vendor accounts in registration order
func (s *DirectoryService) ListVendors(ctx context.Context, tenant shared.Tenant) ([]AccountResponse, error) {
	vendors, err := s.accounts.FindByTenant(ctx, tenant, identity.RoleVendor)
	if err != nil {
		return nil, err
	}
	return ToAccountResponses(vendors), nil
}

// RequestPasswordRecovery issues a recovery code for the account registered
// with email and returns it. Issuing a new code replaces any live one.
func (s *DirectoryService) RequestPasswordRecovery(ctx context.Context, email string) (string, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			s.businessMetrics.RecordAuthFailure(ctx, telemetry.AuthFailureRecovery)
		}
		return "", err
	}

	code, err := identity.NewRecoveryCode(s.config.CodeSource, account.ID, s.config.RecoveryCodeTTL, s.config.Now())
	if err != nil {
		return "", err
	}

	s.codesMu.Lock()
	s.codes[account.ID] = code
	s.codesMu.Unlock()

	s.logger.Info("Recovery code issued",
		zap.String("username", account.Username),
		zap.Time("expires_at", code.ExpiresAt))
	return code.Code, nil
}

// ResetPassword sets a new password when code matches the live recovery
// code of the account registered with email. The code is burned on success
// and when it has expired.
func (s *DirectoryService) ResetPassword(ctx context.Context, email, code, newPassword string) (bool, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}

	now := s.config.Now()
	s.codesMu.Lock()
	live, ok := s.codes[account.ID]
	if ok && live.IsExpired(now) {
		delete(s.codes, account.ID)
		ok = false
	}
	s.codesMu.Unlock()

	if !ok || !live.Matches(code, now) {
		s.logger.Warn("Invalid recovery code", zap.String("username", account.Username))
		s.businessMetrics.RecordAuthFailure(ctx, telemetry.AuthFailureRecovery)
		return false, nil
	}

	if err := account.SetPassword(s.hasher, newPassword); err != nil {
		return false, err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return false, err
	}

	s.codesMu.Lock()
	delete(s.codes, account.ID)
	s.codesMu.Unlock()

	s.logger.Info("Password reset with recovery code", zap.String("username", account.Username))
	return true, nil
}

// findByUsername returns nil without error when no account matches
func (s *DirectoryService) findByUsername(ctx context.Context, username string) (*identity.Account, error) {
	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}
