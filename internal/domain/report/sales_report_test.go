package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(seller string, year int, month time.Month, total string) Entry {
	return Entry{
		Seller:       seller,
		IssuedAt:     time.Date(year, month, 10, 12, 0, 0, 0, time.UTC),
		TotalInclTax: decimal.RequireFromString(total),
	}
}

func sampleEntries() []Entry {
	return []Entry{
		entry("ana", 2026, time.January, "10.00"),
		entry("rui", 2026, time.January, "5.50"),
		entry("ana", 2026, time.February, "2.46"),
		entry("eva", 2026, time.March, "100.00"),
		{Seller: "ana", TotalInclTax: decimal.RequireFromString("7.00")}, // no timestamp
	}
}

func TestMonthlyTotals_Unscoped(t *testing.T) {
	got := MonthlyTotals(sampleEntries(), nil)

	require.Len(t, got.Buckets, 3)
	assert.Equal(t, "2026-01", got.Buckets[0].Key)
	assert.Equal(t, "2026-02", got.Buckets[1].Key)
	assert.Equal(t, "2026-03", got.Buckets[2].Key)
	assert.True(t, got.Get("2026-01").Equal(decimal.RequireFromString("15.50")))
	assert.Equal(t, int64(2), got.Buckets[0].InvoiceCount)
	assert.True(t, got.GrandTotal.Equal(decimal.RequireFromString("117.96")))
	assert.Equal(t, int64(4), got.InvoiceCount)
}

func TestMonthlyTotals_Scoped(t *testing.T) {
	got := MonthlyTotals(sampleEntries(), NewScope("ana"))

	require.Len(t, got.Buckets, 2)
	assert.True(t, got.Get("2026-01").Equal(decimal.RequireFromString("10.00")))
	assert.True(t, got.Get("2026-02").Equal(decimal.RequireFromString("2.46")))
	assert.True(t, got.Get("2026-03").IsZero())
}

func TestTotalsBySeller(t *testing.T) {
	t.Run("unscoped sums every invoice", func(t *testing.T) {
		got := TotalsBySeller(sampleEntries(), nil)

		require.Len(t, got.Buckets, 3)
		assert.Equal(t, []string{"ana", "eva", "rui"}, []string{got.Buckets[0].Key, got.Buckets[1].Key, got.Buckets[2].Key})
		assert.True(t, got.Get("ana").Equal(decimal.RequireFromString("19.46")))
		assert.True(t, got.GrandTotal.Equal(decimal.RequireFromString("124.96")))
	})

	t.Run("scope excludes sellers outside it", func(t *testing.T) {
		got := TotalsBySeller(sampleEntries(), NewScope("rui", "eva", "nobody"))

		for _, b := range got.Buckets {
			assert.NotEqual(t, "ana", b.Key)
		}
		assert.True(t, got.GrandTotal.Equal(decimal.RequireFromString("105.50")))
	})

	t.Run("empty scope yields nothing", func(t *testing.T) {
		got := TotalsBySeller(sampleEntries(), NewScope())
		assert.Empty(t, got.Buckets)
		assert.True(t, got.GrandTotal.IsZero())
	})
}

func TestScope(t *testing.T) {
	var unscoped *Scope
	assert.True(t, unscoped.Contains("anyone"))
	assert.Equal(t, 0, unscoped.Len())

	s := NewScope("ana", "ana", "rui")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("rui"))
	assert.False(t, s.Contains("Rui"))
}
