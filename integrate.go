package demons

import "github.com/deepteams/demons/volume"

// integrateAdditive adds the update field onto the running displacement
// field element-wise, in place.
func integrateAdditive(d, u *volume.Volume[float64]) error {
	return d.ParallelVisitSlices(func(s int64) error {
		for r := int64(0); r < d.NRows; r++ {
			for c := int64(0); c < d.NCols; c++ {
				for k := int64(0); k < 3; k++ {
					dv, _ := d.Reference(s, r, c, k)
					uv, _ := u.Value(s, r, c, k)
					*dv += uv
				}
			}
		}
		return nil
	})
}

// integrateCompositional composes the update field onto the running
// displacement field: D'(v) = D(v) + U(p + D(v)), sampled componentwise by
// trilinear interpolation at the deformed position. It writes into a fresh
// auxiliary buffer so the read of D(v) and the interpolation of U (at a
// position built from D) never alias the buffer being written, and returns
// that buffer as the new displacement field.
func integrateCompositional(d, u *volume.Volume[float64]) (*volume.Volume[float64], error) {
	next, err := volume.NewLike[float64, float64](d, 3)
	if err != nil {
		return nil, err
	}
	err = d.ParallelVisitSlices(func(s int64) error {
		for r := int64(0); r < d.NRows; r++ {
			for c := int64(0); c < d.NCols; c++ {
				p := d.WorldPosition(s, r, c)
				dx, _ := d.Value(s, r, c, 0)
				dy, _ := d.Value(s, r, c, 1)
				dz, _ := d.Value(s, r, c, 2)
				deformed := volume.Vec3{p[0] + dx, p[1] + dy, p[2] + dz}

				ux := u.TrilinearInterpolate(deformed, 0, 0)
				uy := u.TrilinearInterpolate(deformed, 1, 0)
				uz := u.TrilinearInterpolate(deformed, 2, 0)

				rx, _ := next.Reference(s, r, c, 0)
				ry, _ := next.Reference(s, r, c, 1)
				rz, _ := next.Reference(s, r, c, 2)
				*rx, *ry, *rz = dx+ux, dy+uy, dz+uz
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}
