package volume

import (
	"fmt"
	"sort"
)

// SliceImage is the narrow boundary a caller implements to hand 2D slice
// data into the registration engine without adopting Volume directly: one
// implementation per external image type (e.g. a DICOM frame, a PNG-backed
// mask). FromSlices and ToSlices are the only places that cross this
// boundary; everything else in the engine works exclusively in Volume.
type SliceImage interface {
	Rows() int64
	Columns() int64
	Channels() int64
	Spacing() (dx, dy, dz float64)
	Anchor() Vec3
	Offset() Vec3
	RowUnit() Vec3
	ColUnit() Vec3
	Center() Vec3
	Value(r, c, k int64) (float32, error)
}

// SliceFactory builds a caller-defined SliceImage from a per-slice Geometry
// (with Offset set to that slice's own SliceOffsets entry) and a dense
// (row, col*channels+k) plane of samples, used by ToSlices.
type SliceFactory func(geom Geometry, plane [][]float32) (SliceImage, error)

// FromSlices assembles a Volume from an ordered stack of SliceImage, one
// per output slice. All slices must agree on shape (rows, columns,
// channels), spacing, and row/col basis; each slice's Center becomes that
// slice's SliceOffsets entry. Anchor and Offset are taken from slice 0 and
// are not compared across slices. An empty stack is rejected, as is any
// shape, spacing, or basis mismatch between slices.
func FromSlices(slices []SliceImage) (*Volume[float32], error) {
	if len(slices) == 0 {
		return nil, wrapParameter("FromSlices requires at least one slice")
	}
	first := slices[0]
	nr, nc, nk := first.Rows(), first.Columns(), first.Channels()
	dx, dy, dz := first.Spacing()
	geom := Geometry{
		PxlDx:   dx,
		PxlDy:   dy,
		PxlDz:   dz,
		Anchor:  first.Anchor(),
		Offset:  first.Offset(),
		RowUnit: first.RowUnit(),
		ColUnit: first.ColUnit(),
	}

	for i, img := range slices {
		if img.Rows() != nr || img.Columns() != nc || img.Channels() != nk {
			return nil, wrapShape("slice %d shape (%d,%d,%d) disagrees with slice 0 shape (%d,%d,%d)",
				i, img.Rows(), img.Columns(), img.Channels(), nr, nc, nk)
		}
		idx, idy, idz := img.Spacing()
		if idx != dx || idy != dy || idz != dz {
			return nil, wrapGeometry("slice %d spacing (%v,%v,%v) disagrees with slice 0 spacing (%v,%v,%v)",
				i, idx, idy, idz, dx, dy, dz)
		}
		if img.RowUnit() != geom.RowUnit || img.ColUnit() != geom.ColUnit {
			return nil, wrapGeometry("slice %d in-plane basis disagrees with slice 0", i)
		}
	}

	// Center() exists so the caller-given stack can be sorted along
	// OrthoUnit ascending rather than trusted to already be ordered; a
	// shuffled stack would otherwise produce non-monotone SliceOffsets,
	// which TrilinearInterpolate's Z-axis fractional index assumes never
	// happens.
	ortho := geom.orthoUnit()
	sorted := make([]SliceImage, len(slices))
	copy(sorted, slices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Center().Dot(ortho) < sorted[j].Center().Dot(ortho)
	})
	slices = sorted

	v, err := New[float32](int64(len(slices)), nr, nc, nk, geom)
	if err != nil {
		return nil, err
	}
	for s, img := range slices {
		v.SliceOffsets[s] = img.Center()
		for r := int64(0); r < nr; r++ {
			for c := int64(0); c < nc; c++ {
				for k := int64(0); k < nk; k++ {
					val, err := img.Value(r, c, k)
					if err != nil {
						return nil, fmt.Errorf("FromSlices: slice %d: %w", s, err)
					}
					ref, _ := v.Reference(int64(s), r, c, k)
					*ref = val
				}
			}
		}
	}
	return v, nil
}

// ToSlices decomposes a Volume into one SliceImage per slice, built by
// factory. Each slice's Geometry carries that slice's own SliceOffsets
// entry as Offset, and plane is laid out (row, col*NChannels+k).
func (v *Volume[T]) ToSlices(factory SliceFactory) ([]SliceImage, error) {
	out := make([]SliceImage, v.NSlices)

	for s := int64(0); s < v.NSlices; s++ {
		plane := make([][]float32, v.NRows)
		for r := int64(0); r < v.NRows; r++ {
			row := make([]float32, v.NCols*v.NChannels)
			for c := int64(0); c < v.NCols; c++ {
				for k := int64(0); k < v.NChannels; k++ {
					val, _ := v.Value(s, r, c, k)
					row[c*v.NChannels+k] = float32(val)
				}
			}
			plane[r] = row
		}
		geom := v.Geometry
		geom.Offset = v.SliceOffsets[s]
		img, err := factory(geom, plane)
		if err != nil {
			return nil, fmt.Errorf("ToSlices: slice %d: %w", s, err)
		}
		out[s] = img
	}
	return out, nil
}
