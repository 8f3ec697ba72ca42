package threshold

import "math"

// liThreshold implements Li's minimum cross-entropy threshold selection.
// Every histogram split is scored by the cross-entropy between the two
// classes it produces, using each class mean as the class estimate; the split
// with the lowest total cross-entropy wins. The caller guarantees at least
// two distinct sample values.
func liThreshold(values []float64) float64 {
	h := buildHistogram(values, histogramBins)

	// Prefix sums of counts and intensity mass over bin centers.
	bins := len(h.counts)
	cumCount := make([]int, bins)
	cumSum := make([]float64, bins)
	count := 0
	sum := 0.0
	for i, c := range h.counts {
		count += c
		sum += float64(c) * h.center(i)
		cumCount[i] = count
		cumSum[i] = sum
	}
	total := count
	totalSum := sum

	best := math.Inf(1)
	bestSplit := -1
	for t := range bins - 1 {
		n0 := cumCount[t]
		n1 := total - n0
		if n0 == 0 || n1 == 0 {
			continue
		}
		s0 := cumSum[t]
		s1 := totalSum - s0
		eta := crossEntropyTerm(s0, float64(n0)) + crossEntropyTerm(s1, float64(n1))
		if eta < best {
			best = eta
			bestSplit = t
		}
	}
	if bestSplit < 0 {
		// All mass in a single bin; the histogram range is still informative.
		return h.center(0)
	}
	return h.upperEdge(bestSplit)
}

// crossEntropyTerm computes -sum * log(mean) for one class. A class with no
// intensity mass contributes nothing in the limit.
func crossEntropyTerm(sum, n float64) float64 {
	if sum <= 0 {
		return 0
	}
	return -sum * math.Log(sum/n)
}
