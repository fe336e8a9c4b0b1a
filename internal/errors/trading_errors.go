package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory represents different types of errors raised by the engine
type ErrorCategory string

const (
	// Critical errors that should stop the engine
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryBroker        ErrorCategory = "BROKER"
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Caller mistakes, raised synchronously and never retried
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	ErrorCategoryFunds      ErrorCategory = "FUNDS"

	// Operational errors, caught per call and converted to benign returns
	ErrorCategoryNetwork   ErrorCategory = "NETWORK"
	ErrorCategoryTimeout   ErrorCategory = "TIMEOUT"
	ErrorCategoryOrder     ErrorCategory = "ORDER"
	ErrorCategoryRisk      ErrorCategory = "RISK"
	ErrorCategoryTemporary ErrorCategory = "TEMPORARY"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
)

// TradingError represents a categorized engine error with context
type TradingError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *TradingError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *TradingError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *TradingError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the engine
func (e *TradingError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal ||
		e.Category == ErrorCategoryCredentials ||
		e.Category == ErrorCategoryConfiguration
}

// New creates a new categorized trading error
func New(category ErrorCategory, component, operation, message string) *TradingError {
	return &TradingError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: isRetryableCategory(category),
	}
}

// Wrap wraps an existing error with trading error context
func Wrap(err error, category ErrorCategory, component, operation string) *TradingError {
	if err == nil {
		return nil
	}
	return &TradingError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  isRetryableCategory(category),
	}
}

// WithRetryable sets the retryable flag
func (e *TradingError) WithRetryable(retryable bool) *TradingError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryNetwork, ErrorCategoryTimeout, ErrorCategoryTemporary, ErrorCategoryRateLimit:
		return true
	case ErrorCategoryFatal, ErrorCategoryCredentials, ErrorCategoryConfiguration,
		ErrorCategoryValidation, ErrorCategoryFunds:
		return false
	default:
		return true
	}
}

// Common error constructors

// NewValidationError reports a malformed request; it never reaches the gateway
func NewValidationError(component, operation, message string) *TradingError {
	return New(ErrorCategoryValidation, component, operation, message)
}

// NewInsufficientFundsError reports a failed buying-power check
func NewInsufficientFundsError(component, operation, message string) *TradingError {
	return New(ErrorCategoryFunds, component, operation, message)
}

// NewTradingBlockedError reports an account-level trading block
func NewTradingBlockedError(component, operation, message string) *TradingError {
	return New(ErrorCategoryBroker, component, operation, message).WithRetryable(false)
}

// NewRiskError reports a failure inside risk evaluation (fail-closed path)
func NewRiskError(component, operation string, err error) *TradingError {
	return Wrap(err, ErrorCategoryRisk, component, operation).WithRetryable(false)
}

// NewOrderError reports a broker failure during an order operation
func NewOrderError(component, operation string, err error) *TradingError {
	return Wrap(err, ErrorCategoryOrder, component, operation)
}

// NewConfigurationError reports invalid engine configuration
func NewConfigurationError(component, operation, message string) *TradingError {
	return New(ErrorCategoryConfiguration, component, operation, message)
}

// IsValidation reports whether err is (or wraps) a validation error
func IsValidation(err error) bool {
	return hasCategory(err, ErrorCategoryValidation)
}

// IsInsufficientFunds reports whether err is (or wraps) a funds error
func IsInsufficientFunds(err error) bool {
	return hasCategory(err, ErrorCategoryFunds)
}

// IsRisk reports whether err is (or wraps) a risk evaluation error
func IsRisk(err error) bool {
	return hasCategory(err, ErrorCategoryRisk)
}

func hasCategory(err error, category ErrorCategory) bool {
	var te *TradingError
	if errors.As(err, &te) {
		return te.Category == category
	}
	return false
}

// Categorize attempts to categorize a generic broker/network error
func Categorize(err error, component, operation string) *TradingError {
	if err == nil {
		return nil
	}

	var te *TradingError
	if errors.As(err, &te) {
		return te
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "context deadline exceeded") {
		return Wrap(err, ErrorCategoryTimeout, component, operation)
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial") {
		return Wrap(err, ErrorCategoryNetwork, component, operation)
	}

	if strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "authentication") ||
		strings.Contains(errMsg, "unauthorized") {
		return Wrap(err, ErrorCategoryCredentials, component, operation)
	}

	if strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "too many requests") {
		return Wrap(err, ErrorCategoryRateLimit, component, operation)
	}

	if strings.Contains(errMsg, "insufficient") || strings.Contains(errMsg, "buying power") {
		return Wrap(err, ErrorCategoryFunds, component, operation)
	}

	if strings.Contains(errMsg, "invalid") || strings.Contains(errMsg, "minimum") ||
		strings.Contains(errMsg, "maximum") {
		return Wrap(err, ErrorCategoryValidation, component, operation)
	}

	return Wrap(err, ErrorCategoryTemporary, component, operation)
}

// ErrorStats tracks error statistics for the session
type ErrorStats struct {
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []*TradingError
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]*TradingError, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics
func (es *ErrorStats) RecordError(err *TradingError) {
	es.TotalErrors++
	es.ErrorsByCategory[err.Category]++

	es.RecentErrors = append(es.RecentErrors, err)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate returns the error rate for a specific category
func (es *ErrorStats) GetErrorRate(category ErrorCategory) float64 {
	if es.TotalErrors == 0 {
		return 0.0
	}
	return float64(es.ErrorsByCategory[category]) / float64(es.TotalErrors)
}
