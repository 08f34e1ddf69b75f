package demons

import (
	"math"

	"github.com/deepteams/demons/volume"
)

// denomEps is the minimum Thirion-force denominator below which a voxel's
// update is forced to zero, guarding the division that would otherwise
// produce NaN/Inf.
const denomEps = 1e-10

// computeUpdate evaluates the per-voxel demons force for every voxel where
// both fixed and warped are finite, and returns the resulting update field
// together with the mean squared intensity difference over the voxels that
// participated. Voxels where either input is non-finite contribute a zero
// update and are excluded from the MSE.
func computeUpdate(fixed, warped *volume.Volume[float32], grad *volume.Volume[float64], normalizationFactor, maxUpdateMagnitude float64) (*volume.Volume[float64], float64, error) {
	u, err := volume.NewLike[float32, float64](fixed, 3)
	if err != nil {
		return nil, 0, err
	}

	sumSq := make([]float64, fixed.NSlices)
	count := make([]int64, fixed.NSlices)

	err = fixed.ParallelVisitSlices(func(s int64) error {
		var localSum float64
		var localCount int64
		for r := int64(0); r < fixed.NRows; r++ {
			for c := int64(0); c < fixed.NCols; c++ {
				fv, _ := fixed.Value(s, r, c, 0)
				wv, _ := warped.Value(s, r, c, 0)
				ff, wf := float64(fv), float64(wv)
				if !isFinite(ff) || !isFinite(wf) {
					continue
				}
				diff := ff - wf
				localSum += diff * diff
				localCount++

				gx, _ := grad.Value(s, r, c, 0)
				gy, _ := grad.Value(s, r, c, 1)
				gz, _ := grad.Value(s, r, c, 2)
				gg := gx*gx + gy*gy + gz*gz
				denom := gg + diff*diff/(normalizationFactor+denomEps)
				if denom <= denomEps {
					continue
				}
				scale := diff / denom
				ux, uy, uz := scale*gx, scale*gy, scale*gz
				mag := math.Sqrt(ux*ux + uy*uy + uz*uz)
				// maxUpdateMagnitude == 0 is treated as "no clamp" rather than
				// "clamp to zero displacement"; harmless under the default of
				// 2.0, but a caller passing 0 explicitly gets unclamped updates.
				if maxUpdateMagnitude > 0 && mag > maxUpdateMagnitude {
					rescale := maxUpdateMagnitude / mag
					ux, uy, uz = ux*rescale, uy*rescale, uz*rescale
				}
				rx, _ := u.Reference(s, r, c, 0)
				ry, _ := u.Reference(s, r, c, 1)
				rz, _ := u.Reference(s, r, c, 2)
				*rx, *ry, *rz = ux, uy, uz
			}
		}
		sumSq[s] = localSum
		count[s] = localCount
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	var totalSum float64
	var totalCount int64
	for s := range sumSq {
		totalSum += sumSq[s]
		totalCount += count[s]
	}
	mse := 0.0
	if totalCount > 0 {
		mse = totalSum / float64(totalCount)
	}
	return u, mse, nil
}
