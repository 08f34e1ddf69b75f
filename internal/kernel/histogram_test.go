package kernel

import (
	"log"
	"math"
	"testing"

	"github.com/deepteams/demons/volume"
)

func buildScalarLine(t *testing.T, vals []float32) *volume.Volume[float32] {
	t.Helper()
	v, err := volume.New[float32](1, 1, int64(len(vals)), 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for c, x := range vals {
		ref, _ := v.Reference(0, 0, int64(c), 0)
		*ref = x
	}
	return v
}

func TestMatchHistogram_LiteralMapping(t *testing.T) {
	source := buildScalarLine(t, []float32{0, 1, 2, 3})
	reference := buildScalarLine(t, []float32{10, 20, 30, 40})

	out, err := MatchHistogram(source, reference, 4, 0, nil)
	if err != nil {
		t.Fatalf("MatchHistogram: %v", err)
	}
	want := []float32{10, 17.5, 25, 32.5}
	for c, w := range want {
		got, _ := out.Value(0, 0, int64(c), 0)
		if math.Abs(float64(got-w)) > 1e-4 {
			t.Errorf("out[%d] = %v, want %v", c, got, w)
		}
	}
}

func TestMatchHistogram_DegenerateConstantSourcePassesThrough(t *testing.T) {
	source := buildScalarLine(t, []float32{5, 5, 5, 5})
	reference := buildScalarLine(t, []float32{10, 20, 30, 40})

	out, err := MatchHistogram(source, reference, 4, 0, log.Default())
	if err != nil {
		t.Fatalf("MatchHistogram: %v", err)
	}
	for c := int64(0); c < 4; c++ {
		got, _ := out.Value(0, 0, c, 0)
		if got != 5 {
			t.Errorf("out[%d] = %v, want 5 (pass-through)", c, got)
		}
	}
}

func TestMatchHistogram_NoFiniteSamplesPassesThrough(t *testing.T) {
	source := buildScalarLine(t, []float32{float32(math.NaN()), float32(math.NaN())})
	reference := buildScalarLine(t, []float32{1, 2})

	out, err := MatchHistogram(source, reference, 4, 0, nil)
	if err != nil {
		t.Fatalf("MatchHistogram: %v", err)
	}
	got, _ := out.Value(0, 0, 0, 0)
	if !math.IsNaN(float64(got)) {
		t.Errorf("out[0] = %v, want NaN (pass-through)", got)
	}
}

func TestMatchHistogram_RejectsNonPositiveBins(t *testing.T) {
	source := buildScalarLine(t, []float32{1, 2})
	reference := buildScalarLine(t, []float32{1, 2})
	if _, err := MatchHistogram(source, reference, 0, 0, nil); err == nil {
		t.Fatalf("MatchHistogram: want error for bins=0, got nil")
	}
}

func TestMatchHistogram_RejectsOutOfRangeOutlierFraction(t *testing.T) {
	source := buildScalarLine(t, []float32{1, 2})
	reference := buildScalarLine(t, []float32{1, 2})
	if _, err := MatchHistogram(source, reference, 4, 0.5, nil); err == nil {
		t.Fatalf("MatchHistogram: want error for outlier_fraction=0.5, got nil")
	}
	if _, err := MatchHistogram(source, reference, 4, -0.1, nil); err == nil {
		t.Fatalf("MatchHistogram: want error for negative outlier_fraction, got nil")
	}
}
