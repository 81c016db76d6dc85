package errors

import "net/http"

// ErrorCode is the machine-readable code in the error envelope.
type ErrorCode string

const (
	// Resolution failures.
	ErrCodeNoInstancesAvailable ErrorCode = "NO_INSTANCES_AVAILABLE"
	ErrCodeRegistryUnreachable  ErrorCode = "REGISTRY_UNREACHABLE"

	// Call failures.
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeDownstreamStatus   ErrorCode = "DOWNSTREAM_STATUS"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

type codeInfo struct {
	status    int
	retryable bool
}

var codes = map[ErrorCode]codeInfo{
	ErrCodeNoInstancesAvailable: {http.StatusServiceUnavailable, true},
	ErrCodeRegistryUnreachable:  {http.StatusServiceUnavailable, true},
	ErrCodeTimeout:              {http.StatusGatewayTimeout, true},
	ErrCodeConnectionFailed:     {http.StatusBadGateway, true},
	ErrCodeDownstreamStatus:     {http.StatusBadGateway, false},
	ErrCodeServiceUnavailable:   {http.StatusServiceUnavailable, true},
	ErrCodeInvalidInput:         {http.StatusBadRequest, false},
	ErrCodeInternal:             {http.StatusInternalServerError, false},
}

// HTTPStatus returns the status a code is answered with. Unknown codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether a client may repeat the request as is.
func (c ErrorCode) Retryable() bool {
	return codes[c].retryable
}
