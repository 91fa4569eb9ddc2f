package printing

import (
	"context"
	"time"

	"github.com/pos/backend/internal/domain/ledger"
)

// Document is a rendered receipt ready to be stored
type Document struct {
	// Content is the raw document bytes
	Content []byte
	// Ext is the file extension including the dot (.html, .pdf)
	Ext string
	// RenderDuration is how long the rendering took
	RenderDuration time.Duration
}

// ReceiptRenderer turns a committed invoice into a receipt document
type ReceiptRenderer interface {
	Render(ctx context.Context, inv *ledger.Invoice) (*Document, error)
}

// RenderError represents an error while producing or storing a receipt
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for receipt failures
const (
	ErrCodeRenderTimeout = "RENDER_TIMEOUT"
	ErrCodeRenderFailed  = "RENDER_FAILED"
	ErrCodeInvalidHTML   = "INVALID_HTML"
	ErrCodeInvalidRef    = "INVALID_RECEIPT_REF"
	ErrCodeStorageFailed = "STORAGE_FAILED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
