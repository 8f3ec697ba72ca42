package threshold

import (
	"errors"
	"fmt"
	"sort"
)

// histogramBins is the bin count used by the histogram-scanning estimators.
const histogramBins = 256

// estimateGlobal reduces the given valid samples to a scalar threshold using
// the configured method. The caller has already applied masking; values holds
// only valid samples. An empty slice is a DomainError, and a flat
// distribution short-circuits to its single value for every method.
func estimateGlobal(values []float64, p Params, stage string) (float64, error) {
	if len(values) == 0 {
		return 0, &DomainError{Stage: stage, Err: errors.New("no unmasked samples to estimate from")}
	}
	if flat, v := isFlat(values); flat {
		return v, nil
	}
	switch p.Method {
	case MethodLi:
		return liThreshold(values), nil
	case MethodOtsu:
		if p.Otsu.ThreeClass {
			lower, upper := multiOtsuThresholds(values)
			if p.Otsu.MiddleIsForeground {
				return lower, nil
			}
			return upper, nil
		}
		return otsuThreshold(values), nil
	case MethodRobustBackground:
		return robustBackground(values, p.Robust, stage)
	default:
		return 0, &ConfigError{Param: "method", Err: fmt.Errorf("method %s has no global estimator", p.Method)}
	}
}

// isFlat reports whether all samples share one value and returns it.
func isFlat(values []float64) (bool, float64) {
	first := values[0]
	for _, v := range values[1:] {
		if v != first {
			return false, 0
		}
	}
	return true, first
}

// histogram is a fixed-bin count histogram over the sample range.
type histogram struct {
	counts   []int
	min, max float64
	width    float64
}

func buildHistogram(values []float64, bins int) histogram {
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	h := histogram{
		counts: make([]int, bins),
		min:    minV,
		max:    maxV,
		width:  (maxV - minV) / float64(bins),
	}
	for _, v := range values {
		b := int((v - minV) / h.width)
		if b >= bins {
			b = bins - 1
		}
		h.counts[b]++
	}
	return h
}

// center returns the intensity at the center of bin i.
func (h histogram) center(i int) float64 {
	return h.min + (float64(i)+0.5)*h.width
}

// upperEdge returns the intensity at the upper edge of bin i, i.e. the
// boundary between classes when splitting after bin i.
func (h histogram) upperEdge(i int) float64 {
	return h.min + float64(i+1)*h.width
}

// sortedCopy returns the samples in ascending order without touching the
// caller's slice.
func sortedCopy(values []float64) []float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
