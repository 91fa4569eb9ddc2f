package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/shared"
)

// MovementReason explains why a product's stock changed
type MovementReason string

const (
	MovementInitial    MovementReason = "INITIAL"
	MovementAdjustment MovementReason = "ADJUSTMENT"
	MovementSale       MovementReason = "SALE"
)

// StockMovement is an append-only journal entry of one stock change
type StockMovement struct {
	ID        uuid.UUID
	Tenant    shared.Tenant
	ProductID uuid.UUID
	Code      string
	Reason    MovementReason
	Requested int
	Applied   int
	Before    int
	After     int
	Reference string // invoice number for sales
	CreatedAt time.Time
}

// NewStockMovement records the change applied to product
func NewStockMovement(p *Product, reason MovementReason, change StockChange) *StockMovement {
	return &StockMovement{
		ID:        uuid.New(),
		Tenant:    p.Tenant,
		ProductID: p.ID,
		Code:      p.Code,
		Reason:    reason,
		Requested: change.Requested,
		Applied:   change.Applied,
		Before:    change.Before,
		After:     change.After,
		CreatedAt: time.Now(),
	}
}

// WithReference sets the document that caused the movement
func (m *StockMovement) WithReference(reference string) *StockMovement {
	m.Reference = reference
	return m
}

// WasClamped reports whether the requested change was truncated at zero
func (m *StockMovement) WasClamped() bool {
	return m.Requested != m.Applied
}
