// Package errors defines AppError, the error the inbound handler renders.
//
// Each ErrorCode fixes the HTTP status and whether a client may retry, so
// a failure from any layer maps to one well-defined response:
//
//	return errors.Timeout("service2").WithCause(err) // 504, retryable
package errors
