package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Scope is the set of seller usernames a report is restricted to.
// A nil *Scope means the report is unscoped.
type Scope struct {
	sellers map[string]struct{}
}

// NewScope creates a scope over the given sellers
func NewScope(sellers ...string) *Scope {
	s := &Scope{sellers: make(map[string]struct{}, len(sellers))}
	for _, seller := range sellers {
		s.sellers[seller] = struct{}{}
	}
	return s
}

// Contains reports whether the seller is in scope; a nil scope contains everyone
func (s *Scope) Contains(seller string) bool {
	if s == nil {
		return true
	}
	_, ok := s.sellers[seller]
	return ok
}

// Len returns the number of sellers in scope
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sellers)
}

// Entry is the slice of an invoice the aggregates need
type Entry struct {
	Seller       string          `json:"seller"`
	IssuedAt     time.Time       `json:"issued_at"`
	TotalInclTax decimal.Decimal `json:"total_incl_tax"`
}

// Bucket is one group of an aggregate
type Bucket struct {
	Key          string          `json:"key"`
	InvoiceCount int64           `json:"invoice_count"`
	Total        decimal.Decimal `json:"total"`
}

// Totals is an aggregate over the ledger, buckets ordered by key
type Totals struct {
	Buckets      []Bucket        `json:"buckets"`
	InvoiceCount int64           `json:"invoice_count"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
}

// Get returns the total of a bucket, zero when absent
func (t Totals) Get(key string) decimal.Decimal {
	for _, b := range t.Buckets {
		if b.Key == key {
			return b.Total
		}
	}
	return decimal.Zero
}

// MonthlyTotals sums total including tax per calendar month (YYYY-MM).
// Entries outside scope and entries without a timestamp are skipped.
func MonthlyTotals(entries []Entry, scope *Scope) Totals {
	return aggregate(entries, scope, func(e Entry) (string, bool) {
		if e.IssuedAt.IsZero() {
			return "", false
		}
		return e.IssuedAt.Format("2006-01"), true
	})
}

// TotalsBySeller sums total including tax per seller username.
// Entries outside scope are skipped.
func TotalsBySeller(entries []Entry, scope *Scope) Totals {
	return aggregate(entries, scope, func(e Entry) (string, bool) {
		return e.Seller, true
	})
}

func aggregate(entries []Entry, scope *Scope, keyOf func(Entry) (string, bool)) Totals {
	byKey := make(map[string]*Bucket)
	result := Totals{GrandTotal: decimal.Zero}

	for _, e := range entries {
		if !scope.Contains(e.Seller) {
			continue
		}
		key, ok := keyOf(e)
		if !ok {
			continue
		}
		b, exists := byKey[key]
		if !exists {
			b = &Bucket{Key: key, Total: decimal.Zero}
			byKey[key] = b
		}
		b.InvoiceCount++
		b.Total = b.Total.Add(e.TotalInclTax)
		result.InvoiceCount++
		result.GrandTotal = result.GrandTotal.Add(e.TotalInclTax)
	}

	result.Buckets = make([]Bucket, 0, len(byKey))
	for _, b := range byKey {
		result.Buckets = append(result.Buckets, *b)
	}
	sort.Slice(result.Buckets, func(i, j int) bool {
		return result.Buckets[i].Key < result.Buckets[j].Key
	})
	return result
}
