package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized,
		ErrForbidden, ErrInternal, ErrConflict, ErrGone, ErrServiceUnavail,
		ErrPaymentFailed, ErrCompensation,
	}

	for i := range sentinels {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotErrorIs(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: fmt.Errorf("db connection lost")}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withCause.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "checkout session not found"}
	assert.Equal(t, "NOT_FOUND: checkout session not found", bare.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "nope", Err: ErrNotFound}
	assert.True(t, errors.Is(appErr, ErrNotFound))

	noCause := &AppError{Code: "TEST", Message: "test"}
	assert.Nil(t, noCause.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"NotFound", NotFound("checkout session", "chk-123"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"AlreadyExists", AlreadyExists("session", "cart_id", "cart-1"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"InvalidInput", InvalidInput("shipping address is required"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"Conflict", Conflict("session was modified concurrently"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"Gone", Gone("checkout session has expired"), "GONE", http.StatusGone, ErrGone},
		{"Unauthorized", Unauthorized("missing identity header"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"Forbidden", Forbidden("session belongs to another user"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"ServiceUnavailable", ServiceUnavailable("inventory service unreachable"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
		{"PaymentFailed", PaymentFailed("card declined"), "PAYMENT_FAILED", http.StatusUnprocessableEntity, ErrPaymentFailed},
		{"CompensationFailed", CompensationFailed("inventory release failed"), "COMPENSATION_FAILED", http.StatusInternalServerError, ErrCompensation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestNotFound_MessageNamesResourceAndID(t *testing.T) {
	err := NotFound("checkout session", "chk-abc")
	assert.Contains(t, err.Message, "checkout session")
	assert.Contains(t, err.Message, "chk-abc")
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("pool exhausted")
	err := Internal(cause)
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.True(t, errors.Is(err, cause))
	// The generic message hides the cause from API clients.
	assert.Equal(t, "an internal error occurred", err.Message)
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "load session")
	assert.Contains(t, wrapped.Error(), "load session")
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"app error", NotFound("session", "1"), http.StatusNotFound},
		{"wrapped app error", fmt.Errorf("handler: %w", Conflict("stale version")), http.StatusConflict},
		{"not found sentinel", ErrNotFound, http.StatusNotFound},
		{"already exists sentinel", ErrAlreadyExists, http.StatusConflict},
		{"conflict sentinel", ErrConflict, http.StatusConflict},
		{"invalid input sentinel", ErrInvalidInput, http.StatusBadRequest},
		{"unauthorized sentinel", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden sentinel", ErrForbidden, http.StatusForbidden},
		{"gone sentinel", ErrGone, http.StatusGone},
		{"service unavailable sentinel", ErrServiceUnavail, http.StatusServiceUnavailable},
		{"payment failed sentinel", ErrPaymentFailed, http.StatusUnprocessableEntity},
		{"compensation sentinel", ErrCompensation, http.StatusInternalServerError},
		{"wrapped sentinel", fmt.Errorf("outer: %w", ErrGone), http.StatusGone},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}
