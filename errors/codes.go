package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Resilience rejection codes (raised by the primitives themselves).
const (
	// ErrCodeCircuitOpen indicates the circuit breaker rejected the call without executing it.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeTimeout indicates the per-call deadline was exceeded.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeBulkheadFull indicates the bulkhead had no free slot and no queue capacity.
	ErrCodeBulkheadFull ErrorCode = "BULKHEAD_FULL"
	// ErrCodeBulkheadTimeout indicates a queued caller gave up before a slot freed.
	ErrCodeBulkheadTimeout ErrorCode = "BULKHEAD_TIMEOUT"
	// ErrCodeRateLimited indicates admission was denied by a rate limiter.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeRetryExhausted indicates all retry attempts failed.
	ErrCodeRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
)

// Connection/Availability codes (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
)

// Validation codes
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Internal codes
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeCircuitOpen:        true,
	ErrCodeTimeout:            true,
	ErrCodeBulkheadFull:       true,
	ErrCodeBulkheadTimeout:    true,
	ErrCodeRateLimited:        true,
	ErrCodeRetryExhausted:     false,
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
