package demons

import (
	"fmt"
	"math"

	"github.com/deepteams/demons/internal/kernel"
	"github.com/deepteams/demons/volume"
)

// Result is the outcome of a successful registration: the dense
// displacement field on fixed's grid, how many iterations actually ran,
// the mean squared intensity difference at the final iteration, and
// whether the loop stopped because it converged (rather than exhausting
// MaxIterations).
type Result struct {
	Field      *volume.Volume[float64]
	Iterations int64
	FinalMSE   float64
	Converged  bool
}

// Register runs the iterative demons registration loop: resample moving
// onto fixed's grid, optionally histogram-match it, then repeatedly
// compute a demons force from the intensity difference and fixed's
// gradient, integrate it into a running displacement field (additively or
// compositionally), smooth, and re-warp moving from scratch.
//
// Register never panics on a malformed but non-empty input: internal
// failures are caught, logged through params.Logger (or log.Default()),
// and surfaced as a returned error. An empty moving or fixed volume
// short-circuits with ErrEmptyInput before any work begins.
func Register(params Params, movingIn, fixed *volume.Volume[float32]) (result *Result, err error) {
	logger := params.logger()

	if movingIn.NSlices == 0 || fixed.NSlices == 0 {
		return nil, ErrEmptyInput
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Printf("demons: registration failed: panic: %v", r)
			result, err = nil, fmt.Errorf("demons: registration failed: %v", r)
		}
	}()

	moving, err := kernel.ResampleTo(movingIn, fixed)
	if err != nil {
		logger.Printf("demons: registration failed: resample: %v", err)
		return nil, fmt.Errorf("demons: resample: %w", err)
	}

	if params.UseHistogramMatching {
		moving, err = kernel.MatchHistogram(moving, fixed, params.HistogramBins, params.HistogramOutlierFraction, logger)
		if err != nil {
			logger.Printf("demons: registration failed: histogram matching: %v", err)
			return nil, fmt.Errorf("demons: histogram matching: %w", err)
		}
	}

	grad, err := kernel.Gradient(fixed)
	if err != nil {
		logger.Printf("demons: registration failed: gradient: %v", err)
		return nil, fmt.Errorf("demons: gradient: %w", err)
	}

	field, err := volume.NewLike[float32, float64](fixed, 3)
	if err != nil {
		logger.Printf("demons: registration failed: field allocation: %v", err)
		return nil, fmt.Errorf("demons: field allocation: %w", err)
	}

	warped := moving // zero field is the identity warp

	var prevMSE float64
	var iter int64
	var converged bool
	var finalMSE float64

	for iter = 0; iter < params.MaxIterations; iter++ {
		update, mse, err := computeUpdate(fixed, warped, grad, params.NormalizationFactor, params.MaxUpdateMagnitude)
		if err != nil {
			logger.Printf("demons: registration failed: update computation: %v", err)
			return nil, fmt.Errorf("demons: update computation: %w", err)
		}
		finalMSE = mse

		if iter > 0 && math.Abs(prevMSE-mse) < params.ConvergenceThreshold {
			converged = true
			break
		}
		prevMSE = mse

		if params.UseDiffeomorphic && params.UpdateSmoothingSigma > 0 {
			if err := update.GaussianSmooth(params.UpdateSmoothingSigma, params.UpdateSmoothingSigma, params.UpdateSmoothingSigma); err != nil {
				logger.Printf("demons: registration failed: update smoothing: %v", err)
				return nil, fmt.Errorf("demons: update smoothing: %w", err)
			}
		}

		if params.UseDiffeomorphic {
			field, err = integrateCompositional(field, update)
			if err != nil {
				logger.Printf("demons: registration failed: compositional integration: %v", err)
				return nil, fmt.Errorf("demons: compositional integration: %w", err)
			}
		} else {
			if err := integrateAdditive(field, update); err != nil {
				logger.Printf("demons: registration failed: additive integration: %v", err)
				return nil, fmt.Errorf("demons: additive integration: %w", err)
			}
		}

		if params.FieldSmoothingSigma > 0 {
			if err := field.GaussianSmooth(params.FieldSmoothingSigma, params.FieldSmoothingSigma, params.FieldSmoothingSigma); err != nil {
				logger.Printf("demons: registration failed: field smoothing: %v", err)
				return nil, fmt.Errorf("demons: field smoothing: %w", err)
			}
		}

		warped, err = kernel.Warp(moving, field, float32NaN())
		if err != nil {
			logger.Printf("demons: registration failed: warp: %v", err)
			return nil, fmt.Errorf("demons: warp: %w", err)
		}

		if params.Verbosity > 0 {
			logger.Printf("demons: iteration %d: mse=%v", iter, mse)
		}
	}

	return &Result{
		Field:      field,
		Iterations: iter,
		FinalMSE:   finalMSE,
		Converged:  converged,
	}, nil
}

// float32NaN is the out-of-bounds sentinel used when re-warping moving,
// matching the field warper's NaN default: voxels that fall outside
// moving after deformation carry no data, and computeUpdate already
// excludes non-finite samples from both the update and the MSE.
func float32NaN() float32 { return float32(math.NaN()) }
