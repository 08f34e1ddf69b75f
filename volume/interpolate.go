package volume

import "math"

// voxelCenter returns the world position of the center of voxel (s, r, c),
// per the data model's position formula:
//
//	anchor + slice_offsets[s] + row_unit*(pxl_dx*(c+0.5)) + col_unit*(pxl_dy*(r+0.5))
func (v *Volume[T]) voxelCenter(s, r, c int64) Vec3 {
	p := v.Anchor.Add(v.SliceOffsets[s])
	p = p.Add(v.RowUnit.Scale(v.PxlDx * (float64(c) + 0.5)))
	p = p.Add(v.ColUnit.Scale(v.PxlDy * (float64(r) + 0.5)))
	return p
}

// WorldPosition returns the world-space center of voxel (s, r, c).
func (v *Volume[T]) WorldPosition(s, r, c int64) Vec3 {
	return v.voxelCenter(s, r, c)
}

// axisFrac resolves a continuous fractional index f (over an axis of
// extent n) into the two integer neighbors to interpolate between and the
// interpolation weight toward the second neighbor. Edge voxels clamp their
// second neighbor to themselves: querying past either end of the axis
// collapses both neighbors to the nearest valid index, since there is no
// real voxel beyond the boundary to interpolate with.
func axisFrac(f float64, n int64) (i0, i1 int64, t float64) {
	fl := math.Floor(f)
	frac := f - fl
	raw := int64(fl)
	switch {
	case raw < 0:
		return 0, 0, 0
	case raw >= n-1:
		return n - 1, n - 1, 0
	default:
		return raw, raw + 1, frac
	}
}

// inRange reports whether the fractional axis coordinate f falls within
// the valid interpolation domain [-0.5, n-0.5].
func inRange(f float64, n int64) bool {
	return f >= -0.5 && f <= float64(n)-0.5
}

// TrilinearInterpolate samples the volume at a world position, returning
// oob when the position falls outside [-0.5, N-0.5] on any axis (in
// fractional-index space). When NSlices == 1 the Z axis degenerates to
// bilinear in-plane interpolation (the single slice is used regardless of
// the position's Z coordinate, as long as the X/Y fractional indices are
// in range).
func (v *Volume[T]) TrilinearInterpolate(pos Vec3, channel int64, oob T) T {
	center000 := v.voxelCenter(0, 0, 0)
	d := pos.Sub(center000)

	fc := d.Dot(v.RowUnit) / v.PxlDx
	fr := d.Dot(v.ColUnit) / v.PxlDy

	if !inRange(fc, v.NCols) || !inRange(fr, v.NRows) {
		return oob
	}

	c0, c1, tc := axisFrac(fc, v.NCols)
	r0, r1, tr := axisFrac(fr, v.NRows)

	if v.NSlices == 1 {
		v00, _ := v.Value(0, r0, c0, channel)
		v01, _ := v.Value(0, r0, c1, channel)
		v10, _ := v.Value(0, r1, c0, channel)
		v11, _ := v.Value(0, r1, c1, channel)
		top := lerp(v00, v01, tc)
		bot := lerp(v10, v11, tc)
		return lerp(top, bot, tr)
	}

	fs := d.Dot(v.OrthoUnit) / v.PxlDz
	if !inRange(fs, v.NSlices) {
		return oob
	}
	s0, s1, ts := axisFrac(fs, v.NSlices)

	sample := func(s, r, c int64) T {
		val, _ := v.Value(s, r, c, channel)
		return val
	}

	c00 := lerp(sample(s0, r0, c0), sample(s0, r0, c1), tc)
	c01 := lerp(sample(s0, r1, c0), sample(s0, r1, c1), tc)
	c10 := lerp(sample(s1, r0, c0), sample(s1, r0, c1), tc)
	c11 := lerp(sample(s1, r1, c0), sample(s1, r1, c1), tc)

	top0 := lerp(c00, c01, tr)
	top1 := lerp(c10, c11, tr)
	return lerp(top0, top1, ts)
}

func lerp[T Number](a, b T, t float64) T {
	return T(float64(a) + (float64(b)-float64(a))*t)
}
