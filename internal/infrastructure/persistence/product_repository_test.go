package persistence

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(t *testing.T, tn shared.Tenant, code, name string, stock, minStock int) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(tn, code, name, decimal.RequireFromString("1.50"), "geral")
	require.NoError(t, err)
	require.NoError(t, p.SetInitialStock(stock, minStock))
	return p
}

func TestGormProductRepository_CreateAndFind(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormProductRepository(db.DB)
	ctx := context.Background()

	p := newTestProduct(t, cafe, "C01", "Café", 10, 2)
	require.NoError(t, repo.Create(ctx, p))

	t.Run("code lookup ignores case and is tenant scoped", func(t *testing.T) {
		found, err := repo.FindByCode(ctx, cafe, "c01")
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
		assert.Equal(t, 10, found.Stock)
		assert.True(t, found.Price.Equal(decimal.RequireFromString("1.50")))

		_, err = repo.FindByCode(ctx, farmacia, "C01")
		assert.ErrorIs(t, err, shared.ErrProductNotFound)
	})

	t.Run("same code in the same tenant is rejected", func(t *testing.T) {
		err := repo.Create(ctx, newTestProduct(t, cafe, "c01", "Outro", 1, 0))
		assert.ErrorIs(t, err, shared.ErrDuplicateProductCode)
	})

	t.Run("same code in another tenant is accepted", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newTestProduct(t, farmacia, "C01", "Creme", 1, 0)))
		exists, err := repo.ExistsByCode(ctx, farmacia, "C01")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestGormProductRepository_Save(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormProductRepository(db.DB)
	ctx := context.Background()

	p := newTestProduct(t, cafe, "C01", "Café", 3, 2)
	require.NoError(t, repo.Create(ctx, p))

	name := "Café Expresso"
	require.NoError(t, p.Apply(catalog.ProductUpdate{Name: &name}))
	_, err := p.AdjustStock(-5)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, p))

	found, err := repo.FindByCode(ctx, cafe, "C01")
	require.NoError(t, err)
	assert.Equal(t, "Café Expresso", found.Name)
	assert.Equal(t, 0, found.Stock)
	assert.Equal(t, p.Version, found.Version)
}

func TestGormProductRepository_FindAll(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormProductRepository(db.DB)
	ctx := context.Background()

	base := time.Now()
	products := []*catalog.Product{
		newTestProduct(t, cafe, "C01", "Café", 10, 2),
		newTestProduct(t, cafe, "B01", "Bolo de Arroz", 1, 3),
		newTestProduct(t, farmacia, "P01", "Paracetamol", 0, 5),
		newTestProduct(t, cafe, "A01", "Água", 20, 0),
	}
	for i, p := range products {
		p.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, p))
	}

	codes := func(ps []*catalog.Product) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.Code
		}
		return out
	}

	all, err := repo.FindAll(ctx, catalog.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"C01", "B01", "P01", "A01"}, codes(all))

	scoped, err := repo.FindAll(ctx, catalog.ProductFilter{Tenant: &cafe})
	require.NoError(t, err)
	assert.Equal(t, []string{"C01", "B01", "A01"}, codes(scoped))

	search, err := repo.FindAll(ctx, catalog.ProductFilter{Tenant: &cafe, Search: "ÁGUA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A01"}, codes(search))

	low, err := repo.FindAll(ctx, catalog.ProductFilter{LowStockOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"B01", "P01"}, codes(low))

	byCode, err := repo.FindAll(ctx, catalog.ProductFilter{Tenant: &cafe, SortBy: "code"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A01", "B01", "C01"}, codes(byCode))

	byStock, err := repo.FindAll(ctx, catalog.ProductFilter{Tenant: &cafe, SortBy: "stock", SortOrder: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A01", "C01", "B01"}, codes(byStock))
}

func TestGormProductRepository_FindAll_SameInstantKeepsInsertionOrder(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormProductRepository(db.DB)
	ctx := context.Background()

	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	want := []string{"Z09", "M05", "A01", "K07", "B02"}
	for _, code := range want {
		p := newTestProduct(t, cafe, code, "Produto "+code, 1, 0)
		p.CreatedAt = at
		require.NoError(t, repo.Create(ctx, p))
	}

	got, err := repo.FindAll(ctx, catalog.ProductFilter{Tenant: &cafe})
	require.NoError(t, err)
	codes := make([]string, len(got))
	for i, p := range got {
		codes[i] = p.Code
	}
	assert.Equal(t, want, codes)
}

func TestGormProductRepository_DecrementStock(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormProductRepository(db.DB)
	ctx := context.Background()

	p := newTestProduct(t, cafe, "C01", "Café", 5, 0)
	require.NoError(t, repo.Create(ctx, p))

	ok, err := repo.DecrementStock(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementStock(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok, "guard must refuse to go below zero")

	ok, err = repo.DecrementStock(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByCode(ctx, cafe, "C01")
	require.NoError(t, err)
	assert.Equal(t, 2, found.Stock)
}

func TestGormProductRepository_DecrementStock_NoOversell(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormProductRepository(db.DB)
	ctx := context.Background()

	p := newTestProduct(t, cafe, "C01", "Café", 10, 0)
	require.NoError(t, repo.Create(ctx, p))

	var sold int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.DecrementStock(ctx, p.ID, 1)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&sold, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), sold)
	found, err := repo.FindByCode(ctx, cafe, "C01")
	require.NoError(t, err)
	assert.Equal(t, 0, found.Stock)
}

func TestGormProductRepository_DecrementStock_SQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormProductRepository(db.DB)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1,"updated_at"=$2,"version"=version + 1 WHERE id = $3 AND stock >= $4`)).
		WithArgs(2, sqlmock.AnyArg(), id, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.DecrementStock(context.Background(), id, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStockMovementRepository(t *testing.T) {
	db := newTestDatabase(t)
	products := NewGormProductRepository(db.DB)
	repo := NewGormStockMovementRepository(db.DB)
	ctx := context.Background()

	p := newTestProduct(t, cafe, "C01", "Café", 5, 0)
	require.NoError(t, products.Create(ctx, p))

	base := time.Now()
	for i, delta := range []int{3, -10, 2} {
		change, err := p.AdjustStock(delta)
		require.NoError(t, err)
		m := catalog.NewStockMovement(p, catalog.MovementAdjustment, change)
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, m))
	}

	history, err := repo.FindByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 2, history[0].Requested)
	assert.Equal(t, -10, history[1].Requested)
	assert.Equal(t, -8, history[1].Applied)
	assert.True(t, history[1].WasClamped())
	assert.Equal(t, cafe, history[2].Tenant)
}
