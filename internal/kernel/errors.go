package kernel

import (
	"fmt"

	"github.com/deepteams/demons/volume"
)

// wrapShape and wrapParameter thread kernel-level failures into the same
// sentinel taxonomy volume itself uses (ErrShapeMismatch, ErrInvalidParameter),
// so a caller can errors.Is against one set of sentinels regardless of which
// package detected the problem.
func wrapShape(format string, args ...any) error {
	return fmt.Errorf("%w: %s", volume.ErrShapeMismatch, fmt.Sprintf(format, args...))
}

func wrapParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", volume.ErrInvalidParameter, fmt.Sprintf(format, args...))
}
