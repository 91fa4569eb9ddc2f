package tenant

import (
	"context"
	"sync"

	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/logger"
)

// Locks hands out one mutex per tenant so that stock and ledger writes of
// a tenant happen one at a time while tenants proceed independently.
type Locks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocks creates an empty lock table
func NewLocks() *Locks {
	return &Locks{slots: make(map[string]chan struct{})}
}

func (l *Locks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// WithLock runs fn while holding the tenant's lock. Waiting for the lock
// is abandoned when ctx is done.
func (l *Locks) WithLock(ctx context.Context, t shared.Tenant, fn func(ctx context.Context) error) error {
	if t.IsZero() {
		return ErrTenantRequired
	}
	ch := l.slot(t.Key())
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ch }()

	return fn(logger.WithTenant(ctx, t.Key()))
}
