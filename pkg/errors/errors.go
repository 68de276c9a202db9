package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrOutOfRange       = errors.New("string reference out of range")
	ErrTooDeep          = errors.New("type signature nested too deeply")
	ErrMalformedTuple   = errors.New("malformed record tuple")
	ErrCatalogNotReady  = errors.New("catalog not ready")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidContainer = errors.New("invalid index container")
	ErrChecksumMismatch = errors.New("index checksum mismatch")
	ErrInternal         = errors.New("internal error")
)

// DecodeError reports a failure to decode one record of a namespace. The whole
// namespace is omitted from the catalog when one is returned.
type DecodeError struct {
	Namespace string
	Record    int
	Err       error
	Detail    string
}

func (e *DecodeError) Error() string {
	if e.Record < 0 {
		return fmt.Sprintf("namespace %q: %s: %s", e.Namespace, e.Err.Error(), e.Detail)
	}
	return fmt.Sprintf("namespace %q, record %d: %s: %s", e.Namespace, e.Record, e.Err.Error(), e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func Decodef(sentinel error, format string, args ...any) *DecodeError {
	return &DecodeError{
		Err:    sentinel,
		Record: -1,
		Detail: fmt.Sprintf(format, args...),
	}
}

// AsDecodeError returns the DecodeError in err's chain, if any.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrCatalogNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrOutOfRange), errors.Is(err, ErrTooDeep), errors.Is(err, ErrMalformedTuple),
		errors.Is(err, ErrInvalidContainer), errors.Is(err, ErrChecksumMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
