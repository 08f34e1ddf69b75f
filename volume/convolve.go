package volume

import (
	"math"

	"github.com/deepteams/demons/internal/bufpool"
)

// naNAwareEps is the minimum accumulated kernel weight below which a
// convolution output falls back to passing the source value through
// unchanged (no finite taps participated).
const naNAwareEps = 1e-12

// convolveLine applies a centered 1D kernel along one line of `n` samples
// addressed by (base + i*stride) in buf, writing results to the same
// positions in out. Taps that land outside [0, n) or whose source value is
// non-finite are dropped from both the weighted sum and the weight total
// (NaN-aware renormalization); if no tap contributes, the source sample is
// passed through unchanged.
func convolveLine[T Number](buf, out []T, base, stride, n int64, kernel []float64) {
	radius := int64(len(kernel) / 2)
	for i := int64(0); i < n; i++ {
		var sum, weight float64
		for j := -radius; j <= radius; j++ {
			idx := i + j
			if idx < 0 || idx >= n {
				continue
			}
			val := float64(buf[base+idx*stride])
			if math.IsNaN(val) || math.IsInf(val, 0) {
				continue
			}
			w := kernel[j+radius]
			sum += w * val
			weight += w
		}
		if math.Abs(weight) > naNAwareEps {
			out[base+i*stride] = T(sum / weight)
		} else {
			out[base+i*stride] = buf[base+i*stride]
		}
	}
}

// gaussianKernel1D samples a Gaussian of standard deviation sigmaMM
// (expressed in world units) at integer pixel offsets, normalized to sum
// to 1. The radius is max(1, floor(3*sigmaPixels)); a non-positive sigma
// yields a nil kernel (axis skipped).
func gaussianKernel1D(sigmaMM, spacing float64) []float64 {
	if sigmaMM <= 0 {
		return nil
	}
	sigmaPixels := sigmaMM / spacing
	radius := int64(math.Floor(3 * sigmaPixels))
	if radius < 1 {
		radius = 1
	}
	k := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		x := float64(i) / sigmaPixels
		w := math.Exp(-0.5 * x * x)
		k[i+radius] = w
		sum += w
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// ConvolveSeparable applies up to three user-provided 1D kernels, each
// centered on its middle element, as successive X -> Y -> Z passes. An
// empty kernel skips that axis entirely. Every pass is out-of-place
// (ping-pong against a scratch buffer drawn from bufpool), so no two
// concurrently dispatched slice tasks ever write the same cell and no
// even/odd partitioning is required even for the Z pass.
func (v *Volume[T]) ConvolveSeparable(kx, ky, kz []float64) error {
	cur := v.Data
	owned := false

	apply := func(axis int64, kernel []float64) error {
		if len(kernel) == 0 {
			return nil
		}
		out := bufpool.Get[T](len(cur))
		err := v.ParallelVisitSlices(func(s int64) error {
			v.convolveAxisSlice(cur, out, s, axis, kernel)
			return nil
		})
		if owned {
			bufpool.Put(cur)
		}
		if err != nil {
			bufpool.Put(out)
			return err
		}
		cur = out
		owned = true
		return nil
	}

	if err := apply(0, kx); err != nil {
		return err
	}
	if err := apply(1, ky); err != nil {
		return err
	}
	if err := apply(2, kz); err != nil {
		return err
	}

	if owned {
		copy(v.Data, cur)
		bufpool.Put(cur)
	}
	return nil
}

// convolveAxisSlice convolves every line of the given axis that touches
// output slice s. axis 0 = X (along columns, stride NChannels), axis 1 = Y
// (along rows, stride NCols*NChannels), axis 2 = Z (along slices, stride
// NRows*NCols*NChannels; reads may span every slice of src, which is safe
// because src is immutable for the duration of the pass).
func (v *Volume[T]) convolveAxisSlice(src, dst []T, s, axis int64, kernel []float64) {
	switch axis {
	case 0:
		for r := int64(0); r < v.NRows; r++ {
			for k := int64(0); k < v.NChannels; k++ {
				base := ((s*v.NRows+r)*v.NCols)*v.NChannels + k
				convolveLine(src, dst, base, v.NChannels, v.NCols, kernel)
			}
		}
	case 1:
		for c := int64(0); c < v.NCols; c++ {
			for k := int64(0); k < v.NChannels; k++ {
				base := ((s*v.NRows)*v.NCols+c)*v.NChannels + k
				convolveLine(src, dst, base, v.NCols*v.NChannels, v.NRows, kernel)
			}
		}
	case 2:
		// Axis 2 (Z) lines span every slice, so only the single entry
		// belonging to output slice s is computed here, keeping each
		// parallel task's writes confined to its own slice of dst.
		stride := v.NRows * v.NCols * v.NChannels
		for r := int64(0); r < v.NRows; r++ {
			for c := int64(0); c < v.NCols; c++ {
				for k := int64(0); k < v.NChannels; k++ {
					base := (r*v.NCols+c)*v.NChannels + k
					convolveSingleZ(src, dst, base, stride, v.NSlices, s, kernel)
				}
			}
		}
	}
}

// convolveSingleZ computes the convolved value for a single output slice
// index s along the Z axis (rather than writing every slice on the line,
// so that ParallelVisitSlices's per-slice partitioning of dst stays
// exclusive).
func convolveSingleZ[T Number](src, dst []T, base, stride, n, s int64, kernel []float64) {
	radius := int64(len(kernel) / 2)
	var sum, weight float64
	for j := -radius; j <= radius; j++ {
		idx := s + j
		if idx < 0 || idx >= n {
			continue
		}
		val := float64(src[base+idx*stride])
		if math.IsNaN(val) || math.IsInf(val, 0) {
			continue
		}
		w := kernel[j+radius]
		sum += w * val
		weight += w
	}
	if math.Abs(weight) > naNAwareEps {
		dst[base+s*stride] = T(sum / weight)
	} else {
		dst[base+s*stride] = src[base+s*stride]
	}
}

// GaussianSmooth applies an in-place three-pass separable Gaussian blur
// with standard deviations given in world units (mm). A non-positive sigma
// on any axis skips that axis's pass.
func (v *Volume[T]) GaussianSmooth(sigmaX, sigmaY, sigmaZ float64) error {
	kx := gaussianKernel1D(sigmaX, v.PxlDx)
	ky := gaussianKernel1D(sigmaY, v.PxlDy)
	var kz []float64
	if v.NSlices > 1 {
		kz = gaussianKernel1D(sigmaZ, v.PxlDz)
	}
	return v.ConvolveSeparable(kx, ky, kz)
}
