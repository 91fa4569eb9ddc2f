package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so a
// specific error still matches its sentinel under errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	ErrDuplicateUsername    = NewDomainError("DUPLICATE_USERNAME", "Username already exists")
	ErrDuplicateProductCode = NewDomainError("DUPLICATE_PRODUCT_CODE", "Product code already exists for this tenant")
	ErrProductNotFound      = NewDomainError("PRODUCT_NOT_FOUND", "Product not found")
	ErrInsufficientStock    = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrInvoiceNotFound      = NewDomainError("INVOICE_NOT_FOUND", "Invoice not found")
	ErrAccountNotFound      = NewDomainError("ACCOUNT_NOT_FOUND", "Account not found")
	ErrInvalidRecoveryCode  = NewDomainError("INVALID_RECOVERY_CODE", "Recovery code is invalid or expired")
)
