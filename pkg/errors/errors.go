package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents network-level fetch errors (scrape target,
	// spreadsheet export)
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeParse represents source parsing errors (CSV, webhook payload, HTML)
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeRateLimit represents upstream rate limiting
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypePersistence represents applicant store errors
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeDispatch represents email dispatch errors
	ErrorTypeDispatch ErrorType = "dispatch"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// SyncError represents an error raised somewhere in a sync pass
type SyncError struct {
	Type    ErrorType
	Project string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Project, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Project, e.Message)
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if a caller may retry the same sync pass.
// Retrying is safe either way (dedup makes passes idempotent) but only
// fetch and persistence failures are likely to clear up on their own.
func (e *SyncError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeFetch, ErrorTypePersistence:
		return true
	default:
		return false
	}
}

// New creates a new SyncError
func New(errType ErrorType, project, message string, err error) *SyncError {
	return &SyncError{
		Type:    errType,
		Project: project,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(project, message string, err error) *SyncError {
	return New(ErrorTypeFetch, project, message, err)
}

// NewParse creates a new parse error
func NewParse(project, message string, err error) *SyncError {
	return New(ErrorTypeParse, project, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(project string, duration time.Duration) *SyncError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, project, message, nil)
}

// NewPersistence creates a new persistence error
func NewPersistence(project, message string, err error) *SyncError {
	return New(ErrorTypePersistence, project, message, err)
}

// NewDispatch creates a new dispatch error
func NewDispatch(project, message string, err error) *SyncError {
	return New(ErrorTypeDispatch, project, message, err)
}

// NewValidation creates a new validation error
func NewValidation(project, message string) *SyncError {
	return New(ErrorTypeValidation, project, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *SyncError {
	return New(ErrorTypeConfiguration, "", message, err)
}
