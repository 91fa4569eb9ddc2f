package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockAccountRepository is a mock implementation of identity.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) Update(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) FindByUsername(ctx context.Context, username string) (*identity.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockAccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) FindAll(ctx context.Context) ([]*identity.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByTenant(ctx context.Context, tenant shared.Tenant, roles ...identity.Role) ([]*identity.Account, error) {
	args := m.Called(ctx, tenant, roles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.Account), args.Error(1)
}

var (
	testTenant = shared.Tenant{Company: "Cafe Lisboa", ShopType: shared.ShopTypeRestauracao}
	testHasher = identity.NewBcryptHasher(bcrypt.MinCost)
)

func newTestService(repo *MockAccountRepository, now time.Time) *DirectoryService {
	return NewDirectoryService(repo, testHasher, DirectoryServiceConfig{
		RecoveryCodeTTL: 10 * time.Minute,
		Now:             func() time.Time { return now },
	}, nil)
}

func newTestVendor(t *testing.T, username, password string) *identity.Account {
	t.Helper()
	a, err := identity.NewVendor(testTenant, username, username+"@example.pt", password, testHasher)
	require.NoError(t, err)
	return a
}

func validAdminRequest() RegisterAdminRequest {
	return RegisterAdminRequest{
		Company:  "Cafe Lisboa",
		VAT:      "PT123456789",
		ShopType: "RESTAURACAO",
		Username: "ana",
		Email:    "ana@example.pt",
		Password: "segredo1",
		Photo:    "photos/ana.png",
	}
}

func TestDirectoryService_RegisterAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the admin account", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := newTestService(repo, time.Now())

		repo.On("ExistsByUsername", ctx, "ana").Return(false, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(a *identity.Account) bool {
			return a.Role == identity.RoleAdmin && a.VAT == "PT123456789" && a.PhotoRef == "photos/ana.png"
		})).Return(nil)

		resp, err := svc.RegisterAdmin(ctx, validAdminRequest())
		require.NoError(t, err)
		assert.Equal(t, "ana", resp.Username)
		assert.Equal(t, "ADMIN", resp.Role)
		assert.Equal(t, "RESTAURACAO", resp.ShopType)
		repo.AssertExpectations(t)
	})

	t.Run("rejects a taken username", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := newTestService(repo, time.Now())

		repo.On("ExistsByUsername", ctx, "ana").Return(true, nil)

		_, err := svc.RegisterAdmin(ctx, validAdminRequest())
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrDuplicateUsername))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid input before touching the store", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := newTestService(repo, time.Now())

		req := validAdminRequest()
		req.ShopType = "BAR"
		req.Email = "not-an-email"

		_, err := svc.RegisterAdmin(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		assert.Contains(t, err.Error(), "shop_type")
		assert.Contains(t, err.Error(), "email")
		repo.AssertNotCalled(t, "ExistsByUsername", mock.Anything, mock.Anything)
	})
}

func TestDirectoryService_AddVendor(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	svc := newTestService(repo, time.Now())

	repo.On("ExistsByUsername", ctx, "rui").Return(false, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*identity.Account")).Return(nil)

	resp, err := svc.AddVendor(ctx, AddVendorRequest{
		Username: "rui",
		Email:    "rui@example.pt",
		Password: "segredo1",
		Company:  "Empresa Sem Admin",
		ShopType: "OFICINA",
	})
	require.NoError(t, err)
	assert.Equal(t, "VENDOR", resp.Role)
	assert.Equal(t, "Empresa Sem Admin", resp.Company)
	assert.Empty(t, resp.VAT)
	repo.AssertExpectations(t)
}

func TestDirectoryService_Authenticate(t *testing.T) {
	ctx := context.Background()
	vendor := newTestVendor(t, "Rui", "segredo1")

	tests := []struct {
		name     string
		username string
		password string
		found    bool
		wantOK   bool
	}{
		{"exact match", "Rui", "segredo1", true, true},
		{"username is case-insensitive", "RUI", "segredo1", true, true},
		{"password is case-sensitive", "rui", "SEGREDO1", true, false},
		{"unknown username", "nobody", "segredo1", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAccountRepository)
			svc := newTestService(repo, time.Now())
			if tt.found {
				repo.On("FindByUsername", ctx, tt.username).Return(vendor, nil)
			} else {
				repo.On("FindByUsername", ctx, tt.username).Return(nil, shared.ErrAccountNotFound)
			}

			resp, err := svc.Authenticate(ctx, tt.username, tt.password)
			require.NoError(t, err)
			if tt.wantOK {
				require.NotNil(t, resp)
				assert.Equal(t, "Rui", resp.Username)
			} else {
				assert.Nil(t, resp)
			}
		})
	}
}

func TestDirectoryService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds with the right old password", func(t *testing.T) {
		vendor := newTestVendor(t, "rui", "segredo1")
		repo := new(MockAccountRepository)
		svc := newTestService(repo, time.Now())

		repo.On("FindByUsername", ctx, "RUI").Return(vendor, nil)
		repo.On("Update", ctx, vendor).Return(nil)

		ok, err := svc.ChangePassword(ctx, "RUI", "segredo1", "novo-segredo")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, vendor.VerifyPassword(testHasher, "novo-segredo"))
	})

	t.Run("fails with the wrong old password", func(t *testing.T) {
		vendor := newTestVendor(t, "rui", "segredo1")
		repo := new(MockAccountRepository)
		svc := newTestService(repo, time.Now())

		repo.On("FindByUsername", ctx, "rui").Return(vendor, nil)

		ok, err := svc.ChangePassword(ctx, "rui", "errado", "novo-segredo")
		require.NoError(t, err)
		assert.False(t, ok)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("fails for an unknown account", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := newTestService(repo, time.Now())

		repo.On("FindByUsername", ctx, "ghost").Return(nil, shared.ErrAccountNotFound)

		ok, err := svc.ChangePassword(ctx, "ghost", "a", "b")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDirectoryService_UpdatePhoto(t *testing.T) {
	ctx := context.Background()
	vendor := newTestVendor(t, "rui", "segredo1")
	repo := new(MockAccountRepository)
	svc := newTestService(repo, time.Now())

	repo.On("FindByUsername", ctx, "rui").Return(vendor, nil)
	repo.On("FindByUsername", ctx, "ghost").Return(nil, shared.ErrAccountNotFound)
	repo.On("Update", ctx, vendor).Return(nil)

	ok, err := svc.UpdatePhoto(ctx, "rui", "photos/rui.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "photos/rui.jpg", vendor.PhotoRef)

	ok, err = svc.UpdatePhoto(ctx, "ghost", "photos/x.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectoryService_SellersForTenant(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	svc := newTestService(repo, time.Now())

	admin, err := identity.NewAdmin(testTenant, "PT1", "ana", "ana@example.pt", "segredo1", testHasher)
	require.NoError(t, err)
	v1 := newTestVendor(t, "rui", "segredo1")
	v2 := newTestVendor(t, "eva", "segredo1")

	repo.On("FindByTenant", ctx, testTenant, []identity.Role{identity.RoleVendor}).
		Return([]*identity.Account{v1, v2}, nil)
	repo.On("FindByTenant", ctx, testTenant, []identity.Role{identity.RoleAdmin}).
		Return([]*identity.Account{admin}, nil)

	sellers, err := svc.SellersForTenant(ctx, testTenant.Company, testTenant.ShopType)
	require.NoError(t, err)
	assert.Equal(t, []string{"rui", "eva", "ana"}, sellers)
}

func TestDirectoryService_SellersForTenant_Empty(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	svc := newTestService(repo, time.Now())

	other := shared.Tenant{Company: "Nada", ShopType: shared.ShopTypeOutro}
	repo.On("FindByTenant", ctx, other, mock.Anything).Return([]*identity.Account{}, nil)

	sellers, err := svc.SellersForTenant(ctx, other.Company, other.ShopType)
	require.NoError(t, err)
	assert.Empty(t, sellers)
}

func TestDirectoryService_Listings(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	svc := newTestService(repo, time.Now())

	admin, err := identity.NewAdmin(testTenant, "PT1", "ana", "ana@example.pt", "segredo1", testHasher)
	require.NoError(t, err)
	vendor := newTestVendor(t, "rui", "segredo1")

	repo.On("FindAll", ctx).Return([]*identity.Account{admin, vendor}, nil)
	repo.On("FindByTenant", ctx, testTenant, []identity.Role{identity.RoleVendor}).
		Return([]*identity.Account{vendor}, nil)

	all, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ana", all[0].Username)
	assert.Equal(t, string(identity.RoleAdmin), all[0].Role)

	vendors, err := svc.ListVendors(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, "rui", vendors[0].Username)

	repo.AssertExpectations(t)
}

func TestDirectoryService_PasswordRecovery(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	t.Run("code resets the password once", func(t *testing.T) {
		vendor := newTestVendor(t, "rui", "segredo1")
		repo := new(MockAccountRepository)
		svc := newTestService(repo, now)

		repo.On("FindByEmail", ctx, "rui@example.pt").Return(vendor, nil)
		repo.On("Update", ctx, vendor).Return(nil).Once()

		code, err := svc.RequestPasswordRecovery(ctx, "rui@example.pt")
		require.NoError(t, err)
		assert.Len(t, code, 6)

		ok, err := svc.ResetPassword(ctx, "rui@example.pt", code, "recuperada")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, vendor.VerifyPassword(testHasher, "recuperada"))

		ok, err = svc.ResetPassword(ctx, "rui@example.pt", code, "outra-vez")
		require.NoError(t, err)
		assert.False(t, ok, "code must not be reusable")
		repo.AssertExpectations(t)
	})

	t.Run("wrong code is rejected", func(t *testing.T) {
		vendor := newTestVendor(t, "rui", "segredo1")
		repo := new(MockAccountRepository)
		svc := newTestService(repo, now)

		repo.On("FindByEmail", ctx, "rui@example.pt").Return(vendor, nil)

		code, err := svc.RequestPasswordRecovery(ctx, "rui@example.pt")
		require.NoError(t, err)

		wrong := strings.Map(func(r rune) rune {
			if r == '9' {
				return '0'
			}
			return r + 1
		}, code)
		ok, err := svc.ResetPassword(ctx, "rui@example.pt", wrong, "recuperada")
		require.NoError(t, err)
		assert.False(t, ok)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		vendor := newTestVendor(t, "rui", "segredo1")
		repo := new(MockAccountRepository)
		clock := now
		svc := NewDirectoryService(repo, testHasher, DirectoryServiceConfig{
			RecoveryCodeTTL: time.Minute,
			Now:             func() time.Time { return clock },
		}, nil)

		repo.On("FindByEmail", ctx, "rui@example.pt").Return(vendor, nil)

		code, err := svc.RequestPasswordRecovery(ctx, "rui@example.pt")
		require.NoError(t, err)

		clock = now.Add(2 * time.Minute)
		ok, err := svc.ResetPassword(ctx, "rui@example.pt", code, "recuperada")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := newTestService(repo, now)

		repo.On("FindByEmail", ctx, "ghost@example.pt").Return(nil, shared.ErrAccountNotFound)

		_, err := svc.RequestPasswordRecovery(ctx, "ghost@example.pt")
		assert.True(t, errors.Is(err, shared.ErrAccountNotFound))

		ok, err := svc.ResetPassword(ctx, "ghost@example.pt", "123456", "x")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
