package kernel

import (
	"log"
	"math"
	"sort"

	"github.com/deepteams/demons/volume"
)

// MatchHistogram remaps source intensities onto reference's distribution
// by percentile-clipped CDF matching. Degenerate inputs (no finite
// samples, or a percentile-clipped range that collapses to a point) are
// not fatal: the source volume is copied through unchanged and the
// condition is logged at warning level, matching the driver's "non-fatal
// anomalies produce a pass-through" contract. logger defaults to
// log.Default() when nil.
func MatchHistogram(source, reference *volume.Volume[float32], bins int64, outlierFraction float64, logger *log.Logger) (*volume.Volume[float32], error) {
	if logger == nil {
		logger = log.Default()
	}
	if bins <= 0 {
		return nil, wrapParameter("histogram_bins must be positive, got %d", bins)
	}
	if math.IsNaN(outlierFraction) || outlierFraction < 0 || outlierFraction >= 0.5 {
		return nil, wrapParameter("histogram_outlier_fraction must be in [0, 0.5), got %v", outlierFraction)
	}
	if source.NChannels != 1 || reference.NChannels != 1 {
		return nil, wrapShape("histogram matching requires scalar (1-channel) volumes, got source=%d reference=%d",
			source.NChannels, reference.NChannels)
	}

	srcSamples := finiteSorted(source)
	refSamples := finiteSorted(reference)
	if len(srcSamples) == 0 || len(refSamples) == 0 {
		logger.Printf("demons: histogram matching: no finite samples in source or reference, passing source through unchanged")
		return copyVolume(source)
	}

	sLo, sHi := quantile(srcSamples, outlierFraction), quantile(srcSamples, 1-outlierFraction)
	rLo, rHi := quantile(refSamples, outlierFraction), quantile(refSamples, 1-outlierFraction)
	if sHi <= sLo || rHi <= rLo {
		logger.Printf("demons: histogram matching: degenerate intensity range (source=[%v,%v] reference=[%v,%v]), passing source through unchanged",
			sLo, sHi, rLo, rHi)
		return copyVolume(source)
	}

	srcHist := buildHistogram(srcSamples, sLo, sHi, bins)
	refHist := buildHistogram(refSamples, rLo, rHi, bins)
	srcCDF := toCDF(srcHist)
	refCDF := toCDF(refHist)

	lookup := make([]float64, bins)
	for b := int64(0); b < bins; b++ {
		q := srcCDF[b]
		refBin := int64(0)
		for refBin < bins-1 && refCDF[refBin] < q {
			refBin++
		}
		lookup[b] = rLo + (rHi-rLo)*float64(refBin)/float64(bins)
	}

	out, err := volume.NewLike[float32, float32](source, 1)
	if err != nil {
		return nil, err
	}
	err = source.ParallelVisitSlices(func(s int64) error {
		for r := int64(0); r < source.NRows; r++ {
			for c := int64(0); c < source.NCols; c++ {
				val, _ := source.Value(s, r, c, 0)
				f := float64(val)
				var mapped float64
				switch {
				case math.IsNaN(f) || math.IsInf(f, 0):
					mapped = f
				case f < sLo:
					mapped = rLo
				case f > sHi:
					mapped = rHi
				default:
					b := int64((f - sLo) / (sHi - sLo) * float64(bins))
					if b >= bins {
						b = bins - 1
					}
					if b < 0 {
						b = 0
					}
					mapped = lookup[b]
				}
				ref, _ := out.Reference(s, r, c, 0)
				*ref = float32(mapped)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// finiteSorted collects every finite scalar sample from v into a sorted
// slice.
func finiteSorted(v *volume.Volume[float32]) []float64 {
	out := make([]float64, 0, len(v.Data))
	for _, x := range v.Data {
		f := float64(x)
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			out = append(out, f)
		}
	}
	sort.Float64s(out)
	return out
}

// quantile returns the p-th quantile (p in [0,1]) of a sorted, non-empty
// slice using linear interpolation between the two nearest ranks.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	t := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*t
}

// buildHistogram bins samples falling within [lo, hi] into `bins` uniform
// bins; samples outside the range are excluded from the count.
func buildHistogram(sorted []float64, lo, hi float64, bins int64) []int64 {
	hist := make([]int64, bins)
	width := hi - lo
	for _, v := range sorted {
		if v < lo || v > hi {
			continue
		}
		b := int64((v - lo) / width * float64(bins))
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		hist[b]++
	}
	return hist
}

// toCDF normalizes a histogram into a cumulative probability distribution.
func toCDF(hist []int64) []float64 {
	total := int64(0)
	for _, c := range hist {
		total += c
	}
	cdf := make([]float64, len(hist))
	if total == 0 {
		return cdf
	}
	running := int64(0)
	for i, c := range hist {
		running += c
		cdf[i] = float64(running) / float64(total)
	}
	return cdf
}

// copyVolume returns a deep copy of v, used for the histogram matcher's
// pass-through path.
func copyVolume(v *volume.Volume[float32]) (*volume.Volume[float32], error) {
	out, err := volume.NewLike[float32, float32](v, v.NChannels)
	if err != nil {
		return nil, err
	}
	copy(out.Data, v.Data)
	return out, nil
}
