package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbukum/meshnode/discovery"
	apperrors "github.com/kbukum/meshnode/errors"
	"github.com/kbukum/meshnode/httpclient"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindTimeout means no complete response arrived before the deadline.
	KindTimeout Kind = iota + 1
	// KindConnectionFailed means the connection could not be made, was reset,
	// or the body could not be read to the end.
	KindConnectionFailed
	// KindDownstreamStatus means the instance answered with a non-2xx status.
	KindDownstreamStatus
)

// String returns the kind as used in logs, span attributes and metric labels.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionFailed:
		return "connection_failed"
	case KindDownstreamStatus:
		return "downstream_status"
	default:
		return "unknown"
	}
}

// CallError is a failed request to a resolved instance.
type CallError struct {
	Kind       Kind
	Service    string
	Instance   discovery.ServiceInstance
	StatusCode int    // set for KindDownstreamStatus
	Body       []byte // downstream body for KindDownstreamStatus
	Err        error
}

func (e *CallError) Error() string {
	if e.Kind == KindDownstreamStatus {
		return fmt.Sprintf("call %s at %s: downstream status %d", e.Service, e.Instance.HostPort(), e.StatusCode)
	}
	return fmt.Sprintf("call %s at %s: %s: %v", e.Service, e.Instance.HostPort(), e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Transient reports whether another attempt, possibly on another instance, may succeed.
func (e *CallError) Transient() bool {
	return e.Kind == KindTimeout || e.Kind == KindConnectionFailed
}

// ResolveError is a resolution failure; no request was sent.
type ResolveError struct {
	Service string
	Err     error
}

func (e *ResolveError) Error() string { return fmt.Sprintf("resolve %s: %v", e.Service, e.Err) }

func (e *ResolveError) Unwrap() error { return e.Err }

// kind returns the metric label for a resolution failure.
func (e *ResolveError) kind() string {
	switch {
	case errors.Is(e.Err, discovery.ErrNoInstancesAvailable):
		return "no_instances"
	case errors.Is(e.Err, discovery.ErrRegistryUnreachable):
		return "registry_unreachable"
	case errors.Is(e.Err, discovery.ErrInvalidServiceName):
		return "invalid_service_name"
	default:
		return "resolve_failed"
	}
}

// fromTransport turns an httpclient failure into a CallError. Request
// construction failures are not call failures and come back unchanged.
func fromTransport(service string, inst discovery.ServiceInstance, err error) error {
	var herr *httpclient.Error
	if !errors.As(err, &herr) {
		return err
	}
	ce := &CallError{Service: service, Instance: inst, Err: err}
	switch herr.Code {
	case httpclient.ErrCodeTimeout:
		ce.Kind = KindTimeout
	case httpclient.ErrCodeConnection:
		ce.Kind = KindConnectionFailed
	case httpclient.ErrCodeStatus:
		ce.Kind = KindDownstreamStatus
		ce.StatusCode = herr.StatusCode
		ce.Body = herr.Body
	default:
		return err
	}
	return ce
}

// ToAppError maps any error returned by Call to a 5xx AppError.
func ToAppError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}

	var ce *CallError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case KindTimeout:
			return apperrors.Timeout(ce.Service).WithCause(err)
		case KindConnectionFailed:
			return apperrors.ConnectionFailed(ce.Service).WithCause(err)
		case KindDownstreamStatus:
			return apperrors.DownstreamStatus(ce.Service, ce.StatusCode).WithCause(err)
		}
	}

	var re *ResolveError
	if errors.As(err, &re) {
		switch {
		case errors.Is(err, discovery.ErrNoInstancesAvailable):
			return apperrors.NoInstancesAvailable(re.Service).WithCause(err)
		case errors.Is(err, discovery.ErrRegistryUnreachable):
			return apperrors.RegistryUnreachable(re.Service).WithCause(err)
		case errors.Is(err, context.DeadlineExceeded):
			return apperrors.Timeout(re.Service).WithCause(err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("downstream").WithCause(err)
	}
	return apperrors.Internal(err)
}
