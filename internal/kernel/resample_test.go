package kernel

import (
	"math"
	"testing"

	"github.com/deepteams/demons/volume"
)

func TestResampleTo_SameGridIsIdentity(t *testing.T) {
	moving, err := volume.New[float32](2, 2, 2, 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	moving.VisitAll(func(s, r, c, k int64, val float32) float32 { return float32(s*4 + r*2 + c) })

	out, err := ResampleTo(moving, moving)
	if err != nil {
		t.Fatalf("ResampleTo: %v", err)
	}
	for s := int64(0); s < 2; s++ {
		for r := int64(0); r < 2; r++ {
			for c := int64(0); c < 2; c++ {
				got, _ := out.Value(s, r, c, 0)
				want, _ := moving.Value(s, r, c, 0)
				if got != want {
					t.Errorf("at (%d,%d,%d): got %v, want %v", s, r, c, got, want)
				}
			}
		}
	}
}

func TestResampleTo_OutOfExtentIsNaN(t *testing.T) {
	moving, err := volume.New[float32](1, 1, 1, 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reference, err := volume.New[float32](1, 1, 3, 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := ResampleTo(moving, reference)
	if err != nil {
		t.Fatalf("ResampleTo: %v", err)
	}
	got, _ := out.Value(0, 0, 2, 0)
	if !math.IsNaN(float64(got)) {
		t.Errorf("out-of-extent resample = %v, want NaN", got)
	}
}

func TestResampleTo_RejectsMultiChannelInput(t *testing.T) {
	moving, err := volume.New[float32](1, 1, 2, 2, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reference, err := volume.New[float32](1, 1, 2, 1, identityGeometry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := ResampleTo(moving, reference); err == nil {
		t.Fatalf("ResampleTo: want error for 2-channel moving, got nil")
	}
}
