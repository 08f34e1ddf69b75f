// Package kernel implements the supporting numeric operators the demons
// driver composes around volume.Volume: the gradient operator, the field
// warper, the grid resampler, and the histogram matcher. Each is grounded
// on the same per-slice-parallel, NaN-tolerant style as the volume
// package's own convolution and interpolation primitives.
package kernel

import (
	"math"

	"github.com/deepteams/demons/volume"
)

// Gradient computes the 3-component gradient field (∂I/∂x, ∂I/∂y, ∂I/∂z)
// of a scalar image using centered differences, falling back to one-sided
// forward/backward differences at the boundary of each axis, and
// degenerating a component to 0 when its axis has extent 1. A component is
// set to 0 whenever any sample it depends on is non-finite.
func Gradient(img *volume.Volume[float32]) (*volume.Volume[float64], error) {
	if img.NChannels != 1 {
		return nil, wrapShape("gradient requires a scalar (1-channel) image, got %d channels", img.NChannels)
	}
	out, err := volume.NewLike[float32, float64](img, 3)
	if err != nil {
		return nil, err
	}

	err = img.ParallelVisitSlices(func(s int64) error {
		for r := int64(0); r < img.NRows; r++ {
			for c := int64(0); c < img.NCols; c++ {
				gx := axisDerivative(img, s, r, c, axisX, img.PxlDx)
				gy := axisDerivative(img, s, r, c, axisY, img.PxlDy)
				gz := axisDerivative(img, s, r, c, axisZ, img.PxlDz)
				refX, _ := out.Reference(s, r, c, 0)
				refY, _ := out.Reference(s, r, c, 1)
				refZ, _ := out.Reference(s, r, c, 2)
				*refX, *refY, *refZ = gx, gy, gz
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// axis identifiers for axisDerivative.
const (
	axisX = 0
	axisY = 1
	axisZ = 2
)

// axisDerivative computes the derivative of img at (s, r, c) along the
// given axis (0=col/x, 1=row/y, 2=slice/z), using a centered difference on
// the interior, one-sided differences at the boundary, and 0 when the
// axis has extent 1 or any participating sample is non-finite.
func axisDerivative(img *volume.Volume[float32], s, r, c, axis int64, spacing float64) float64 {
	var n int64
	switch axis {
	case axisX:
		n = img.NCols
	case axisY:
		n = img.NRows
	case axisZ:
		n = img.NSlices
	}
	if n <= 1 {
		return 0
	}

	at := func(delta int64) (float64, bool) {
		ss, rr, cc := s, r, c
		switch axis {
		case axisX:
			cc += delta
		case axisY:
			rr += delta
		case axisZ:
			ss += delta
		}
		v, err := img.Value(ss, rr, cc, 0)
		if err != nil {
			return 0, false
		}
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}

	var idx int64
	switch axis {
	case axisX:
		idx = c
	case axisY:
		idx = r
	case axisZ:
		idx = s
	}

	switch {
	case idx == 0:
		v0, ok0 := at(0)
		v1, ok1 := at(1)
		if !ok0 || !ok1 {
			return 0
		}
		return (v1 - v0) / spacing
	case idx == n-1:
		v0, ok0 := at(-1)
		v1, ok1 := at(0)
		if !ok0 || !ok1 {
			return 0
		}
		return (v1 - v0) / spacing
	default:
		vm, okm := at(-1)
		vp, okp := at(1)
		if !okm || !okp {
			return 0
		}
		return (vp - vm) / (2 * spacing)
	}
}
