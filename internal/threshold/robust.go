package threshold

import (
	"errors"
	"fmt"
	"math"
)

// robustBackground estimates a threshold from trimmed background statistics:
// discard the dimmest and brightest outlier fractions by intensity rank, then
// return center + deviations*spread over the retained samples.
func robustBackground(values []float64, rp RobustParams, stage string) (float64, error) {
	sorted := sortedCopy(values)
	n := len(sorted)
	nLow := int(float64(n) * rp.LowerOutlierFraction)
	nHigh := int(float64(n) * rp.UpperOutlierFraction)
	retained := sorted[nLow : n-nHigh]
	if len(retained) == 0 {
		return 0, &DomainError{Stage: stage, Err: errors.New("no samples retained after outlier trimming")}
	}

	var center float64
	switch rp.Averaging {
	case AveragingMean:
		center = mean(retained)
	case AveragingMedian:
		center = medianSorted(retained)
	case AveragingMode:
		center = modeSorted(retained)
	default:
		return 0, &ConfigError{Param: "averaging_method", Err: fmt.Errorf("unknown averaging method %d", int(rp.Averaging))}
	}

	var spread float64
	switch rp.Variance {
	case VarianceSD:
		spread = stddev(retained)
	case VarianceMAD:
		spread = medianAbsoluteDeviation(retained)
	default:
		return 0, &ConfigError{Param: "variance_method", Err: fmt.Errorf("unknown variance method %d", int(rp.Variance))}
	}

	return center + rp.NumberOfDeviations*spread, nil
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}

// medianSorted expects ascending input.
func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// modeSorted bins the retained samples into sqrt(n) bins and returns the
// center of the fullest bin. Expects ascending input.
func modeSorted(sorted []float64) float64 {
	n := len(sorted)
	bins := int(math.Sqrt(float64(n)))
	if bins < 1 {
		bins = 1
	}
	minV, maxV := sorted[0], sorted[n-1]
	if minV == maxV {
		return minV
	}
	width := (maxV - minV) / float64(bins)
	counts := make([]int, bins)
	for _, v := range sorted {
		b := int((v - minV) / width)
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
	}
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return minV + (float64(best)+0.5)*width
}

// medianAbsoluteDeviation computes the median of absolute deviations from
// the median. Expects ascending input.
func medianAbsoluteDeviation(sorted []float64) float64 {
	m := medianSorted(sorted)
	deviations := make([]float64, len(sorted))
	for i, v := range sorted {
		deviations[i] = math.Abs(v - m)
	}
	return medianSorted(sortedCopy(deviations))
}
