package kernel

import "github.com/deepteams/demons/volume"

// Warp samples src at each output voxel's world position plus the
// interpolated displacement at that position, producing a warped scalar
// volume with src's shape. The displacement field is defined on its own
// (reference) grid and need not match src's grid; a displacement lookup
// that falls outside the field is treated as zero motion, so warping
// degrades gracefully past the field's extent. oob is the sentinel
// returned when the deformed position falls outside src itself.
func Warp(src *volume.Volume[float32], field *volume.Volume[float64], oob float32) (*volume.Volume[float32], error) {
	if field.NChannels != 3 {
		return nil, wrapShape("warp requires a 3-channel displacement field, got %d channels", field.NChannels)
	}
	if src.NChannels != 1 {
		return nil, wrapShape("warp requires a scalar (1-channel) source image, got %d channels", src.NChannels)
	}

	out, err := volume.NewLike[float32, float32](src, 1)
	if err != nil {
		return nil, err
	}

	err = src.ParallelVisitSlices(func(s int64) error {
		for r := int64(0); r < src.NRows; r++ {
			for c := int64(0); c < src.NCols; c++ {
				p := src.WorldPosition(s, r, c)
				dx := field.TrilinearInterpolate(p, 0, 0)
				dy := field.TrilinearInterpolate(p, 1, 0)
				dz := field.TrilinearInterpolate(p, 2, 0)
				deformed := volume.Vec3{p[0] + dx, p[1] + dy, p[2] + dz}
				val := src.TrilinearInterpolate(deformed, 0, oob)
				ref, _ := out.Reference(s, r, c, 0)
				*ref = val
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
