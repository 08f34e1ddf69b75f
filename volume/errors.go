package volume

import (
	"errors"
	"fmt"
)

// Sentinel errors for the volume package's fatal precondition failures,
// each wrapped with fmt.Errorf at the call site so callers can match on
// the sentinel via errors.Is while still getting a specific message.
var (
	ErrOutOfBounds      = errors.New("volume: index out of bounds")
	ErrShapeMismatch    = errors.New("volume: shape mismatch")
	ErrInvalidGeometry  = errors.New("volume: invalid geometry")
	ErrInvalidParameter = errors.New("volume: invalid parameter")
)

func wrapBounds(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOutOfBounds, fmt.Sprintf(format, args...))
}

func wrapShape(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, args...))
}

func wrapGeometry(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidGeometry, fmt.Sprintf(format, args...))
}

func wrapParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
