package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeFetch         = "FETCH_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeNotConfigured = "NOT_CONFIGURED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidURL       = NewDomainError(ErrCodeValidation, "url must be an absolute http or https URL")
	ErrInvalidChunkSize = NewDomainError(ErrCodeValidation, "chunk_size must be a positive integer")
	ErrEmptyQuery       = NewDomainError(ErrCodeValidation, "query is required")
	ErrInvalidNResults  = NewDomainError(ErrCodeValidation, "n_results must be a positive integer")
)

// Not found errors
var (
	ErrCollectionNotFound = NewDomainError(ErrCodeNotFound, "collection not found")
)

// Configuration errors
var (
	ErrEmbeddingsNotConfigured = NewDomainError(ErrCodeNotConfigured, "embedding provider not configured")
	ErrSourcesNotConfigured    = NewDomainError(ErrCodeNotConfigured, "source registry requires the postgres store backend")
)

// NewValidationError wraps a request validation failure.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// NewFetchError reports that a URL could not be retrieved or rendered.
func NewFetchError(url string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeFetch, fmt.Sprintf("failed to fetch %s", url), err)
}

// NewEmbeddingError reports an embedding collaborator failure.
func NewEmbeddingError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, "failed to generate embeddings", err)
}

// NewStoreError reports a vector store failure for the named operation.
// Errors that already carry a domain code are returned unchanged.
func NewStoreError(op string, err error) error {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return NewDomainErrorWithCause(ErrCodeStore, fmt.Sprintf("vector store %s failed", op), err)
}

// CodeOf returns the domain code carried by err, or ErrCodeInternalError.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}
