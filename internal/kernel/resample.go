package kernel

import (
	"math"

	"github.com/deepteams/demons/volume"
)

// ResampleTo samples moving onto reference's grid, producing a scalar
// volume with reference's shape and geometry. Positions that fall outside
// moving's extent are marked NaN ("no data"); downstream computations must
// tolerate this.
func ResampleTo(moving, reference *volume.Volume[float32]) (*volume.Volume[float32], error) {
	if moving.NChannels != 1 || reference.NChannels != 1 {
		return nil, wrapShape("resample requires scalar (1-channel) volumes, got moving=%d reference=%d",
			moving.NChannels, reference.NChannels)
	}

	out, err := volume.NewLike[float32, float32](reference, 1)
	if err != nil {
		return nil, err
	}

	nan := float32(math.NaN())
	err = reference.ParallelVisitSlices(func(s int64) error {
		for r := int64(0); r < reference.NRows; r++ {
			for c := int64(0); c < reference.NCols; c++ {
				p := reference.WorldPosition(s, r, c)
				val := moving.TrilinearInterpolate(p, 0, nan)
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
