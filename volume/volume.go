// Package volume implements buffer3: a contiguous, spatially-aware,
// channel-aware 3D voxel buffer. It owns indexing, neighbor access,
// trilinear sampling, parallel per-slice traversal, and separable
// convolution for the demons registration engine.
package volume

// Number constrains Volume's sample type to the two kinds the registration
// engine uses: float32 for intensities, float64 for displacements,
// gradients, and kernels.
type Number interface{ ~float32 | ~float64 }

// Volume is a dense row-major 3D buffer: (slice, row, col, channel), channel
// innermost so a single voxel's channels are contiguous. It is the single
// core entity of the registration engine — scalar when NChannels == 1,
// vector (e.g. a displacement or gradient field) when NChannels > 1.
type Volume[T Number] struct {
	NSlices, NRows, NCols, NChannels int64
	Data                             []T

	Geometry
	OrthoUnit    Vec3
	SliceOffsets []Vec3
}

// New allocates a zero-filled Volume of the given shape and geometry.
// SliceOffsets are initialized to a uniform rectilinear grid:
// SliceOffsets[s] = geom.Offset + OrthoUnit*(s*geom.PxlDz). Callers that
// need a non-uniform (but still rectilinear, monotone) grid may overwrite
// SliceOffsets after construction.
func New[T Number](ns, nr, nc, nk int64, geom Geometry) (*Volume[T], error) {
	if ns < 0 || nr < 0 || nc < 0 || nk < 0 {
		return nil, wrapGeometry("negative dimension: ns=%d nr=%d nc=%d nk=%d", ns, nr, nc, nk)
	}
	if err := geom.validate(); err != nil {
		return nil, err
	}
	v := &Volume[T]{
		NSlices:   ns,
		NRows:     nr,
		NCols:     nc,
		NChannels: nk,
		Geometry:  geom,
		OrthoUnit: geom.orthoUnit(),
	}
	v.Data = make([]T, ns*nr*nc*nk)
	v.SliceOffsets = make([]Vec3, ns)
	for s := int64(0); s < ns; s++ {
		v.SliceOffsets[s] = geom.Offset.Add(v.OrthoUnit.Scale(float64(s) * geom.PxlDz))
	}
	return v, nil
}

// NewLike allocates a zero-filled Volume sharing ref's geometry and exact
// SliceOffsets (rather than recomputing a uniform grid), with nk channels.
// Used by operators that must preserve a possibly non-uniform slice grid,
// e.g. the gradient operator and the driver's displacement field.
func NewLike[S Number, T Number](ref *Volume[S], nk int64) (*Volume[T], error) {
	if nk < 0 {
		return nil, wrapGeometry("negative channel count: nk=%d", nk)
	}
	v := &Volume[T]{
		NSlices:   ref.NSlices,
		NRows:     ref.NRows,
		NCols:     ref.NCols,
		NChannels: nk,
		Geometry:  ref.Geometry,
		OrthoUnit: ref.OrthoUnit,
	}
	v.Data = make([]T, ref.NSlices*ref.NRows*ref.NCols*nk)
	v.SliceOffsets = make([]Vec3, len(ref.SliceOffsets))
	copy(v.SliceOffsets, ref.SliceOffsets)
	return v, nil
}

// Shape returns the Volume's dimensions as (slices, rows, cols, channels).
func (v *Volume[T]) Shape() (int64, int64, int64, int64) {
	return v.NSlices, v.NRows, v.NCols, v.NChannels
}

// SameShape reports whether two volumes share identical dimensions.
func (v *Volume[T]) SameShape(o *Volume[T]) bool {
	return v.NSlices == o.NSlices && v.NRows == o.NRows &&
		v.NCols == o.NCols && v.NChannels == o.NChannels
}

// Index computes the linear storage index for (s, r, c, k). It fails with
// ErrOutOfBounds when any coordinate is out of range.
func (v *Volume[T]) Index(s, r, c, k int64) (int64, error) {
	if s < 0 || s >= v.NSlices || r < 0 || r >= v.NRows || c < 0 || c >= v.NCols || k < 0 || k >= v.NChannels {
		return 0, wrapBounds("(%d,%d,%d,%d) outside shape (%d,%d,%d,%d)", s, r, c, k, v.NSlices, v.NRows, v.NCols, v.NChannels)
	}
	return ((s*v.NRows+r)*v.NCols+c)*v.NChannels + k, nil
}

// Value returns the sample at (s, r, c, k). Channel k defaults to 0 via
// ValueAt for scalar access.
func (v *Volume[T]) Value(s, r, c, k int64) (T, error) {
	idx, err := v.Index(s, r, c, k)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.Data[idx], nil
}

// ValueAt returns the scalar (channel 0) sample at (s, r, c).
func (v *Volume[T]) ValueAt(s, r, c int64) (T, error) {
	return v.Value(s, r, c, 0)
}

// Reference returns a pointer to the sample at (s, r, c, k) for in-place
// mutation.
func (v *Volume[T]) Reference(s, r, c, k int64) (*T, error) {
	idx, err := v.Index(s, r, c, k)
	if err != nil {
		return nil, err
	}
	return &v.Data[idx], nil
}

// InBounds is a pure predicate reporting whether (s, r, c) lies within the
// volume's slice/row/col extents (independent of channel).
func (v *Volume[T]) InBounds(s, r, c int64) bool {
	return s >= 0 && s < v.NSlices && r >= 0 && r < v.NRows && c >= 0 && c < v.NCols
}

// VisitAll sequentially visits every voxel sample in (s, r, c, k) order,
// replacing it with the value f returns.
func (v *Volume[T]) VisitAll(f func(s, r, c, k int64, val T) T) error {
	idx := int64(0)
	for s := int64(0); s < v.NSlices; s++ {
		for r := int64(0); r < v.NRows; r++ {
			for c := int64(0); c < v.NCols; c++ {
				for k := int64(0); k < v.NChannels; k++ {
					v.Data[idx] = f(s, r, c, k, v.Data[idx])
					idx++
				}
			}
		}
	}
	return nil
}

// VisitSliceXY sequentially visits every voxel of slice s in (r, c, k)
// order, replacing it with the value f returns.
func (v *Volume[T]) VisitSliceXY(s int64, f func(r, c, k int64, val T) T) error {
	if s < 0 || s >= v.NSlices {
		return wrapBounds("slice %d outside [0,%d)", s, v.NSlices)
	}
	base := s * v.NRows * v.NCols * v.NChannels
	idx := base
	for r := int64(0); r < v.NRows; r++ {
		for c := int64(0); c < v.NCols; c++ {
			for k := int64(0); k < v.NChannels; k++ {
				v.Data[idx] = f(r, c, k, v.Data[idx])
				idx++
			}
		}
	}
	return nil
}

// sliceSpan returns the half-open [start, end) range of linear indices
// belonging to slice s.
func (v *Volume[T]) sliceSpan(s int64) (int64, int64) {
	per := v.NRows * v.NCols * v.NChannels
	return s * per, (s + 1) * per
}

// SliceData returns the contiguous sub-slice of Data holding slice s's
// voxels, in (r, c, k) order.
func (v *Volume[T]) SliceData(s int64) []T {
	start, end := v.sliceSpan(s)
	return v.Data[start:end]
}
