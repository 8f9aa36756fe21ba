package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeCodeRoundTrip(t *testing.T) {
	code := MakeCode(ServicePipeline, CategoryRequest, 42)
	assert.Equal(t, 2001042, code)

	service, category, sequence := ParseCode(code)
	assert.Equal(t, ServicePipeline, service)
	assert.Equal(t, CategoryRequest, category)
	assert.Equal(t, 42, sequence)
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrUpstreamUnavailable.WithCause(cause)

	// Derived errno must not mutate the registered one.
	assert.Nil(t, ErrUpstreamUnavailable.Unwrap())
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, ErrUpstreamUnavailable.Code, err.Code)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrnoIs(t *testing.T) {
	err := ErrInvalidStrategy.WithMessage("strategy CHK_NOPE not found")
	assert.ErrorIs(t, err, ErrInvalidStrategy)
	assert.NotErrorIs(t, err, ErrWrongStrategyCode)
}

func TestReasonMapping(t *testing.T) {
	tests := []struct {
		errno  *Errno
		reason string
		http   int
	}{
		{ErrValidation, "VALIDATION_FAILED", http.StatusBadRequest},
		{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
		{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
		{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{ErrConflict, "CONFLICT", http.StatusConflict},
		{ErrInvalidStrategy, "INVALID_STRATEGY", http.StatusBadRequest},
		{ErrWrongStrategyCode, "WRONG_STRATEGY_CODE", http.StatusBadRequest},
		{ErrUnsupportedFormat, "UNSUPPORTED_FORMAT", http.StatusBadRequest},
		{ErrMissingCredential, "MISSING_CREDENTIAL", http.StatusBadRequest},
		{ErrUpstreamUnavailable, "UPSTREAM_UNAVAILABLE", http.StatusBadGateway},
		{ErrUpstreamTimeout, "UPSTREAM_TIMEOUT", http.StatusGatewayTimeout},
		{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.reason, tt.errno.Reason)
		assert.Equal(t, tt.http, tt.errno.HTTPStatus())
	}
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := fmt.Errorf("boom")
	wrapped := FromError(plain)
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrInternal.Code, wrapped.Code)
	assert.Equal(t, plain, wrapped.Unwrap())

	assert.Same(t, ErrNotFound, FromError(ErrNotFound))
}

func TestGetReason(t *testing.T) {
	assert.Equal(t, "OK", GetReason(nil))
	assert.Equal(t, "INTERNAL_ERROR", GetReason(fmt.Errorf("boom")))
	assert.Equal(t, "CONFLICT", GetReason(ErrTemplateConflict))
}

func TestGRPCStatus(t *testing.T) {
	assert.Equal(t, codes.DeadlineExceeded, ErrUpstreamTimeout.GRPCStatus())
	assert.Equal(t, codes.NotFound, ErrTemplateNotFound.GRPCStatus())
}
