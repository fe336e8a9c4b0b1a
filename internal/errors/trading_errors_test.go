package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorPredicates(t *testing.T) {
	err := NewValidationError("executor", "validate_request", "symbol must not be empty")

	assert.True(t, IsValidation(err))
	assert.False(t, IsInsufficientFunds(err))
	assert.False(t, err.IsRetryable())
	assert.Contains(t, err.Error(), "VALIDATION")
	assert.Contains(t, err.Error(), "symbol must not be empty")
}

func TestInsufficientFundsError(t *testing.T) {
	err := NewInsufficientFundsError("executor", "execute_order", "notional exceeds buying power")

	assert.True(t, IsInsufficientFunds(err))
	assert.False(t, err.IsRetryable())
	assert.False(t, err.IsFatal())
}

func TestWrapPreservesUnderlying(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	err := Wrap(underlying, ErrorCategoryNetwork, "broker", "submit_order")

	assert.ErrorIs(t, err, underlying)
	assert.True(t, err.IsRetryable())

	var te *TradingError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &te))
	assert.Equal(t, ErrorCategoryNetwork, te.Category)
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		message  string
		category ErrorCategory
	}{
		{"context deadline exceeded", ErrorCategoryTimeout},
		{"dial tcp: connection refused", ErrorCategoryNetwork},
		{"invalid api key", ErrorCategoryCredentials},
		{"rate limit exceeded", ErrorCategoryRateLimit},
		{"insufficient buying power", ErrorCategoryFunds},
		{"something unexpected", ErrorCategoryTemporary},
	}

	for _, tc := range cases {
		err := Categorize(fmt.Errorf("%s", tc.message), "broker", "test")
		assert.Equal(t, tc.category, err.Category, "message: %s", tc.message)
	}
}

func TestCategorizePassesThroughTradingErrors(t *testing.T) {
	original := NewValidationError("executor", "validate", "bad request")
	categorized := Categorize(fmt.Errorf("wrapped: %w", original), "broker", "test")

	assert.Equal(t, ErrorCategoryValidation, categorized.Category)
}

func TestErrorStats(t *testing.T) {
	stats := NewErrorStats(3)
	stats.RecordError(NewValidationError("a", "b", "one"))
	stats.RecordError(NewValidationError("a", "b", "two"))
	stats.RecordError(Wrap(fmt.Errorf("boom"), ErrorCategoryNetwork, "a", "b"))

	assert.Equal(t, 3, stats.TotalErrors)
	assert.InDelta(t, 2.0/3.0, stats.GetErrorRate(ErrorCategoryValidation), 1e-9)

	stats.RecordError(NewValidationError("a", "b", "three"))
	assert.Len(t, stats.RecentErrors, 3)
}
