package demons

import (
	"log"
	"math"
)

// Params holds the registration driver's tunable parameters, passed by
// value. All floating-point fields must be finite; DefaultParams returns
// reasonable defaults for a first registration attempt.
type Params struct {
	MaxIterations            int64
	ConvergenceThreshold     float64
	FieldSmoothingSigma      float64 // mm; <= 0 skips the field smoothing pass
	UpdateSmoothingSigma     float64 // mm; <= 0 skips the update smoothing pass
	UseDiffeomorphic         bool
	UseHistogramMatching     bool
	HistogramBins            int64
	HistogramOutlierFraction float64
	NormalizationFactor      float64
	MaxUpdateMagnitude       float64 // mm
	Verbosity                int64

	// Logger receives warning and failure diagnostics. A nil Logger
	// defaults to log.Default() at Register time.
	Logger *log.Logger
}

// DefaultParams returns the registration parameters' documented defaults.
func DefaultParams() Params {
	return Params{
		MaxIterations:            100,
		ConvergenceThreshold:     1e-3,
		FieldSmoothingSigma:      1.0,
		UpdateSmoothingSigma:     0.5,
		UseDiffeomorphic:         false,
		UseHistogramMatching:     false,
		HistogramBins:            256,
		HistogramOutlierFraction: 0.01,
		NormalizationFactor:      1.0,
		MaxUpdateMagnitude:       2.0,
		Verbosity:                0,
	}
}

// validate checks the finiteness and range constraints the driver needs
// before starting its iteration loop. Invalid parameters are fatal
// (ErrInvalidParameter), never silently clamped.
func (p Params) validate() error {
	if p.MaxIterations < 0 {
		return wrapParameter("max_iterations must be >= 0, got %d", p.MaxIterations)
	}
	if !isFinite(p.ConvergenceThreshold) || p.ConvergenceThreshold < 0 {
		return wrapParameter("convergence_threshold must be finite and >= 0, got %v", p.ConvergenceThreshold)
	}
	if !isFinite(p.FieldSmoothingSigma) {
		return wrapParameter("field_smoothing_sigma must be finite, got %v", p.FieldSmoothingSigma)
	}
	if !isFinite(p.UpdateSmoothingSigma) {
		return wrapParameter("update_smoothing_sigma must be finite, got %v", p.UpdateSmoothingSigma)
	}
	if p.UseHistogramMatching {
		if p.HistogramBins <= 0 {
			return wrapParameter("histogram_bins must be positive, got %d", p.HistogramBins)
		}
		if !isFinite(p.HistogramOutlierFraction) || p.HistogramOutlierFraction < 0 || p.HistogramOutlierFraction >= 0.5 {
			return wrapParameter("histogram_outlier_fraction must be in [0, 0.5), got %v", p.HistogramOutlierFraction)
		}
	}
	if !isFinite(p.NormalizationFactor) {
		return wrapParameter("normalization_factor must be finite, got %v", p.NormalizationFactor)
	}
	if !isFinite(p.MaxUpdateMagnitude) || p.MaxUpdateMagnitude < 0 {
		return wrapParameter("max_update_magnitude must be finite and >= 0, got %v", p.MaxUpdateMagnitude)
	}
	return nil
}

func (p Params) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
