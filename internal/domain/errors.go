package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// TransportError wraps a failed backend round-trip.
type TransportError struct {
	Platform Platform
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Platform, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func NewTransportError(platform Platform, op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Platform: platform, Op: op, Err: err}
}

// IsTransportError reports whether err came from a backend call.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
