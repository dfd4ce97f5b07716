package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// ValidationError reports bad input. It is returned before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) work
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced portfolio or asset that does not exist.
type NotFoundError struct {
	Kind string // "portfolio" or "asset"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) work
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a not found error
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// QuoteUnavailableError reports a per-ticker quote failure.
// It is folded into valuation results and never aborts an aggregation.
type QuoteUnavailableError struct {
	Ticker string
	Err    error
}

func (e *QuoteUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("quote unavailable for %s", e.Ticker)
	}
	return fmt.Sprintf("quote unavailable for %s: %v", e.Ticker, e.Err)
}

func (e *QuoteUnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrQuoteUnavailable) work
func (e *QuoteUnavailableError) Is(target error) bool {
	return target == ErrQuoteUnavailable
}

// NewQuoteUnavailableError wraps cause for ticker
func NewQuoteUnavailableError(ticker string, cause error) *QuoteUnavailableError {
	return &QuoteUnavailableError{Ticker: ticker, Err: cause}
}
