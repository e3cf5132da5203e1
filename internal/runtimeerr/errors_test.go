package runtimeerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := map[string]int{
		CodeBadRequest:           http.StatusBadRequest,
		CodeUnauthorized:         http.StatusUnauthorized,
		CodeForbidden:            http.StatusForbidden,
		CodeNotFound:             http.StatusNotFound,
		CodeConflict:             http.StatusConflict,
		CodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
		CodeTooManyRequests:      http.StatusTooManyRequests,
		CodeNotImplemented:       http.StatusNotImplemented,
		CodeNoEnvironment:        http.StatusInternalServerError,
		CodeNoCanaryDeployServer: http.StatusServiceUnavailable,
		CodeTimeout:              http.StatusGatewayTimeout,
		"SOMETHING_UNKNOWN":      http.StatusInternalServerError,
	}
	for code, want := range cases {
		got := New(code, "msg")
		assert.Equal(t, want, got.StatusCode, code)
	}
}

func TestWrapCarriesCause(t *testing.T) {
	cause := errors.New("boom")
	re := Wrap(CodeNetworkError, "dial failed", cause)
	require.Equal(t, cause, errors.Unwrap(re))
	assert.Contains(t, re.Details, "boom")
}

func TestAsPassesThroughExistingRuntimeError(t *testing.T) {
	original := NotFound("compose")
	re := As(original)
	assert.Same(t, original, re)
}

func TestAsWrapsForeignError(t *testing.T) {
	re := As(errors.New("plain"))
	assert.Equal(t, CodeInternal, re.Code)
}

func TestToResponseOmitsStatusCode(t *testing.T) {
	re := Conflict("already reusable").WithDetails("compose-1")
	resp := re.ToResponse()
	assert.Equal(t, "already reusable", resp.Error)
	assert.Equal(t, CodeConflict, resp.Code)
	assert.Equal(t, "compose-1", resp.Details)
}
