// Package measure computes the per-image scalar measurements recorded for a
// thresholding run: the mean thresholds and two quality statistics of the
// resulting segmentation, weighted intra-class variance and the sum of the
// class entropies.
package measure

import (
	"math"

	"github.com/MeKo-Tech/thresh/internal/threshold"
)

const entropyBins = 256

// Measurements bundles the scalars persisted for one thresholded image.
type Measurements struct {
	FinalThreshold   float64 `json:"final_threshold"`
	OrigThreshold    float64 `json:"orig_threshold"`
	GuideThreshold   float64 `json:"guide_threshold,omitempty"`
	WeightedVariance float64 `json:"weighted_variance"`
	SumOfEntropies   float64 `json:"sum_of_entropies"`
}

// FromResult derives all measurements from a threshold result and the image
// it was computed on. The mask must be the one passed to the engine.
func FromResult(img threshold.Image, mask []bool, result threshold.Result) Measurements {
	m := Measurements{
		FinalThreshold:   result.FinalMean(),
		OrigThreshold:    result.OrigMean(),
		WeightedVariance: WeightedVariance(img.Pix, mask, result.Binary),
		SumOfEntropies:   SumOfEntropies(img.Pix, mask, result.Binary),
	}
	if result.HasGuide {
		m.GuideThreshold = result.GuideThreshold
	}
	return m
}

// WeightedVariance returns the mean of the per-class intensity variances
// weighted by class population, over the valid samples. Lower is better: a
// threshold that splits the image into two homogeneous classes scores near
// zero. An image with no valid samples, or with one class empty, falls back
// to the variance of the populated class (zero if both are empty).
func WeightedVariance(pix []float64, mask []bool, binary []bool) float64 {
	var fg, bg classStats
	for i, v := range pix {
		if !valid(mask, i) {
			continue
		}
		if binary[i] {
			fg.add(v)
		} else {
			bg.add(v)
		}
	}
	if fg.n == 0 {
		return bg.variance()
	}
	if bg.n == 0 {
		return fg.variance()
	}
	total := float64(fg.n + bg.n)
	return (fg.variance()*float64(fg.n) + bg.variance()*float64(bg.n)) / total
}

// SumOfEntropies returns the Shannon entropy of the foreground intensity
// histogram plus that of the background histogram, both over 256 bins
// spanning the valid intensity range. Lower is better: well-separated
// classes each concentrate into few bins. Returns zero when either class is
// empty or the valid range is degenerate.
func SumOfEntropies(pix []float64, mask []bool, binary []bool) float64 {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	nValid := 0
	for i, v := range pix {
		if !valid(mask, i) {
			continue
		}
		nValid++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if nValid == 0 || hi <= lo {
		return 0
	}

	var fgHist, bgHist [entropyBins]int
	nFG, nBG := 0, 0
	width := (hi - lo) / entropyBins
	for i, v := range pix {
		if !valid(mask, i) {
			continue
		}
		bin := int((v - lo) / width)
		if bin >= entropyBins {
			bin = entropyBins - 1
		}
		if binary[i] {
			fgHist[bin]++
			nFG++
		} else {
			bgHist[bin]++
			nBG++
		}
	}
	if nFG == 0 || nBG == 0 {
		return 0
	}
	return entropy(fgHist[:], nFG) + entropy(bgHist[:], nBG)
}

// entropy computes -sum(p * log2(p)) over the non-empty bins.
func entropy(hist []int, n int) float64 {
	h := 0.0
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}

type classStats struct {
	n     int
	sum   float64
	sumSq float64
}

func (s *classStats) add(v float64) {
	s.n++
	s.sum += v
	s.sumSq += v * v
}

// variance is the population variance of the accumulated samples.
func (s *classStats) variance() float64 {
	if s.n == 0 {
		return 0
	}
	mean := s.sum / float64(s.n)
	v := s.sumSq/float64(s.n) - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

func valid(mask []bool, i int) bool {
	return mask == nil || mask[i]
}
