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

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes used across the billing domain
const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidState    = "INVALID_STATE"
	CodeConflict        = "CONCURRENCY_CONFLICT"
	CodeOverApplication = "OVER_APPLICATION"
	CodeOverCredit      = "OVER_CREDIT"
	CodeEmptyInvoice    = "EMPTY_INVOICE"
	CodeForbidden       = "FORBIDDEN"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrForbidden           = NewDomainError(CodeForbidden, "Actor is not allowed to perform this action")
	ErrEmptyInvoice        = NewDomainError(CodeEmptyInvoice, "No eligible charges to invoice")
)

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code string) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == code
}
