package common

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Handlers map these onto HTTP status
// codes, everything else is a 500.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrTransportFailure   = errors.New("transport failure")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

func InvalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidState}, args...)...)
}

func QuotaExceededf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrQuotaExceeded}, args...)...)
}

func TransportFailuref(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrTransportFailure}, args...)...)
}

func BackendUnavailablef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrBackendUnavailable}, args...)...)
}
