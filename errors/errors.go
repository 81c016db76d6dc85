package errors

import "fmt"

// AppError is an error the inbound handler can render. Every failure on the
// call path ends up as one before it reaches the client.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause attaches the underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds one entry to Details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// New creates an AppError whose status and retryability come from code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Retryable:  code.Retryable(),
		HTTPStatus: code.HTTPStatus(),
	}
}

func forService(code ErrorCode, service, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...)).WithDetail("service", service)
}

// NoInstancesAvailable: service has no healthy instance.
func NoInstancesAvailable(service string) *AppError {
	return forService(ErrCodeNoInstancesAvailable, service, "no instance of %s is available", service)
}

// RegistryUnreachable: the lookup for service failed and nothing was cached.
func RegistryUnreachable(service string) *AppError {
	return forService(ErrCodeRegistryUnreachable, service, "service discovery is unreachable")
}

// Timeout: the call to service did not complete in time.
func Timeout(service string) *AppError {
	return forService(ErrCodeTimeout, service, "call to %s timed out", service)
}

// ConnectionFailed: the connection to service failed or was reset.
func ConnectionFailed(service string) *AppError {
	return forService(ErrCodeConnectionFailed, service, "unable to connect to %s", service)
}

// DownstreamStatus: service answered with a non-2xx status. A 5xx answer is retryable.
func DownstreamStatus(service string, status int) *AppError {
	e := forService(ErrCodeDownstreamStatus, service, "%s answered with HTTP %d", service, status)
	e.Retryable = status >= 500
	return e.WithDetail("downstream_status", status)
}

// ServiceUnavailable: a dependency of this node is not ready.
func ServiceUnavailable(service string) *AppError {
	return forService(ErrCodeServiceUnavailable, service, "%s is temporarily unavailable", service)
}

// Validation: the input or configuration failed validation.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// Internal wraps an unexpected error. The cause never reaches the client.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "an unexpected error occurred").WithCause(cause)
}
