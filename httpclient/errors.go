package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCode classifies a failed request.
type ErrorCode int

const (
	// ErrCodeTimeout: the deadline passed before the full response arrived.
	ErrCodeTimeout ErrorCode = iota + 1
	// ErrCodeConnection: refused, reset, DNS failure, cancelled by the caller,
	// or a body that could not be read to the end.
	ErrCodeConnection
	// ErrCodeStatus: the server answered with a non-2xx status.
	ErrCodeStatus
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Error is a classified request failure.
type Error struct {
	Code ErrorCode
	// StatusCode and Body are set for ErrCodeStatus.
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.Code == ErrCodeStatus {
		return fmt.Sprintf("httpclient: status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("httpclient: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps an error from sending a request or reading its body.
func classify(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Code: ErrCodeTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Code: ErrCodeTimeout, Err: err}
	}
	return &Error{Code: ErrCodeConnection, Err: err}
}

// CodeOf returns the code of an *Error in err's chain, or zero.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
