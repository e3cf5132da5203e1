package platform

import (
	"net/http"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

// platformStatusByCode maps a platform-reported error code to the HTTP
// status surfaced outward, per spec §4.2.
var platformStatusByCode = map[string]int{
	"UNAUTHORIZED":       http.StatusUnauthorized,
	"FORBIDDEN":          http.StatusForbidden,
	"NOT_FOUND":          http.StatusNotFound,
	"BAD_REQUEST":        http.StatusBadRequest,
	"CONFLICT":           http.StatusConflict,
	"PAYLOAD_TOO_LARGE":  http.StatusRequestEntityTooLarge,
	"TOO_MANY_REQUESTS":  http.StatusTooManyRequests,
	"NOT_IMPLEMENTED":    http.StatusNotImplemented,
}

// nonRetryableCodes are platform error codes that must never be retried —
// retrying them cannot change the outcome.
var nonRetryableCodes = map[string]bool{
	"CONFLICT":          true,
	"BAD_REQUEST":       true,
	"UNAUTHORIZED":      true,
	"FORBIDDEN":         true,
	"NOT_FOUND":         true,
	"NOT_IMPLEMENTED":   true,
	"PAYLOAD_TOO_LARGE": true,
}

// retryableStatuses are HTTP statuses worth retrying on transport success
// but application-level failure (5xx, throttling, odd proxies).
var retryableStatuses = map[int]bool{
	408: true,
	425: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

func platformErrorToRuntimeError(procedure, message, code string) *runtimeerr.RuntimeError {
	status, known := platformStatusByCode[code]
	runtimeCode := code
	if !known {
		status = http.StatusBadGateway
		runtimeCode = runtimeerr.CodeInternal
		if code == "" {
			runtimeCode = "UNKNOWN_PLATFORM_ERROR"
		}
	}
	re := &runtimeerr.RuntimeError{
		Code:       runtimeCode,
		Message:    message,
		StatusCode: status,
		Procedure:  procedure,
	}
	return re
}

// isRetryable reports whether an error returned by call() should trigger a
// retry attempt.
func isRetryable(err error) bool {
	re, ok := err.(*runtimeerr.RuntimeError)
	if !ok {
		return false
	}
	if nonRetryableCodes[re.Code] {
		return false
	}
	switch re.Code {
	case runtimeerr.CodeTimeout, runtimeerr.CodeNetworkError:
		return true
	}
	return retryableStatuses[re.StatusCode]
}
