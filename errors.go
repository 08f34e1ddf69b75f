// Package demons implements an iterative, optionally diffeomorphic,
// intensity-based nonrigid registration driver: given a moving and a
// fixed volume.Volume, it produces a dense 3D displacement field by
// repeatedly computing a Thirion demons force, integrating it into a
// running field, smoothing, and re-warping.
package demons

import (
	"errors"
	"fmt"

	"github.com/deepteams/demons/volume"
)

// ErrEmptyInput is returned when either the moving or fixed volume has
// zero slices. Errors raised by the lower volume and kernel layers
// (volume.ErrShapeMismatch, volume.ErrInvalidGeometry,
// volume.ErrInvalidParameter, volume.ErrOutOfBounds) propagate through
// Register wrapped with additional context, so a caller can still
// errors.Is against those sentinels directly.
var ErrEmptyInput = errors.New("demons: empty input volume")

func wrapParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", volume.ErrInvalidParameter, fmt.Sprintf(format, args...))
}
