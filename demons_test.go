package demons

import (
	"math"
	"testing"

	"github.com/deepteams/demons/volume"
)

func identityGeometry() volume.Geometry {
	return volume.Geometry{
		PxlDx:   1,
		PxlDy:   1,
		PxlDz:   1,
		RowUnit: volume.Vec3{1, 0, 0},
		ColUnit: volume.Vec3{0, 1, 0},
	}
}

func constantVolume(t *testing.T, ns, nr, nc int64, value float32) *volume.Volume[float32] {
	t.Helper()
	v, err := volume.New[float32](ns, nr, nc, 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v.VisitAll(func(s, r, c, k int64, val float32) float32 { return value })
	return v
}

// rampVolume returns a scalar volume whose intensity ramps linearly along
// the column axis, which gives the demons force a clear, stable gradient to
// act on.
func rampVolume(t *testing.T, ns, nr, nc int64) *volume.Volume[float32] {
	t.Helper()
	v, err := volume.New[float32](ns, nr, nc, 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v.VisitAll(func(s, r, c, k int64, val float32) float32 { return float32(10 * c) })
	return v
}

func TestRegister_IdenticalInputsConvergeWithNearZeroMSE(t *testing.T) {
	fixed := rampVolume(t, 1, 6, 6)
	moving := rampVolume(t, 1, 6, 6)

	params := DefaultParams()
	params.MaxIterations = 20
	result, err := Register(params, moving, fixed)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.FinalMSE > 1e-6 {
		t.Errorf("FinalMSE = %v, want ~0 for identical inputs", result.FinalMSE)
	}
}

func TestRegister_EmptyInputReturnsErrEmptyInput(t *testing.T) {
	fixed, err := volume.New[float32](0, 1, 1, 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	moving := constantVolume(t, 1, 1, 1, 0)
	if _, err := Register(DefaultParams(), moving, fixed); err != ErrEmptyInput {
		t.Fatalf("Register error = %v, want ErrEmptyInput", err)
	}
}

func TestRegister_InvalidParamsReturnsError(t *testing.T) {
	fixed := constantVolume(t, 1, 2, 2, 1)
	moving := constantVolume(t, 1, 2, 2, 1)
	params := DefaultParams()
	params.MaxIterations = -1
	if _, err := Register(params, moving, fixed); err == nil {
		t.Fatalf("Register: want error for negative MaxIterations, got nil")
	}
}

func TestRegister_ConstantVolumesConvergeImmediately(t *testing.T) {
	fixed := constantVolume(t, 1, 4, 4, 5)
	moving := constantVolume(t, 1, 4, 4, 5)

	params := DefaultParams()
	params.MaxIterations = 10
	result, err := Register(params, moving, fixed)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.FinalMSE != 0 {
		t.Errorf("FinalMSE = %v, want 0 for constant identical volumes", result.FinalMSE)
	}
	for s := int64(0); s < fixed.NSlices; s++ {
		for r := int64(0); r < fixed.NRows; r++ {
			for c := int64(0); c < fixed.NCols; c++ {
				for k := int64(0); k < 3; k++ {
					d, _ := result.Field.Value(s, r, c, k)
					if d != 0 {
						t.Errorf("Field(%d,%d,%d,%d) = %v, want 0", s, r, c, k, d)
					}
				}
			}
		}
	}
}

func TestRegister_DiffeomorphicModeProducesFiniteField(t *testing.T) {
	fixed := rampVolume(t, 1, 5, 5)
	moving := rampVolume(t, 1, 5, 5)

	params := DefaultParams()
	params.MaxIterations = 5
	params.UseDiffeomorphic = true
	result, err := Register(params, moving, fixed)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, x := range result.Field.Data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatalf("diffeomorphic field contains non-finite value %v", x)
			break
		}
	}
}

func TestRegister_HistogramMatchingRunsWithoutError(t *testing.T) {
	fixed := rampVolume(t, 1, 4, 4)
	moving, err := volume.New[float32](1, 4, 4, 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	moving.VisitAll(func(s, r, c, k int64, val float32) float32 { return float32(100 + 5*c) })

	params := DefaultParams()
	params.MaxIterations = 3
	params.UseHistogramMatching = true
	params.HistogramBins = 4
	if _, err := Register(params, moving, fixed); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestRegister_RespectsMaxIterationsWithoutConverging(t *testing.T) {
	fixed := rampVolume(t, 1, 8, 8)
	moving := constantVolume(t, 1, 8, 8, 0)

	params := DefaultParams()
	params.MaxIterations = 2
	params.ConvergenceThreshold = 0 // never converges
	result, err := Register(params, moving, fixed)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Iterations != params.MaxIterations {
		t.Errorf("Iterations = %d, want %d", result.Iterations, params.MaxIterations)
	}
	if result.Converged {
		t.Errorf("Converged = true, want false with ConvergenceThreshold=0 and a real mismatch")
	}
}
