package ledger

import (
	"context"

	"github.com/google/uuid"
)

// InvoiceRepository is the append-only ledger of committed invoices
type InvoiceRepository interface {
	// NextSequence advances and returns the monotonic ledger sequence
	NextSequence(ctx context.Context) (int64, error)

	// Create appends an invoice with its items
	Create(ctx context.Context, invoice *Invoice) error

	// AttachReceipt stores the receipt reference of an existing invoice
	AttachReceipt(ctx context.Context, id uuid.UUID, ref string) error

	// FindByNumber finds an invoice by its human number
	FindByNumber(ctx context.Context, number string) (*Invoice, error)

	// ExistsByNumber checks if the number is already in the ledger
	ExistsByNumber(ctx context.Context, number string) (bool, error)

	// FindAll returns the whole ledger, oldest first
	FindAll(ctx context.Context) ([]*Invoice, error)

	// Count returns the ledger length
	Count(ctx context.Context) (int64, error)
}
