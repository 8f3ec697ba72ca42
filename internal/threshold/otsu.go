package threshold

// otsuThreshold implements the standard two-class Otsu split: the histogram
// boundary maximizing between-class variance. When several splits tie (a
// perfectly bimodal distribution leaves the variance flat between the two
// modes), the midpoint of the tying range is returned so the boundary lands
// between the classes rather than hugging the lower mode.
func otsuThreshold(values []float64) float64 {
	h := buildHistogram(values, histogramBins)
	bins := len(h.counts)

	total := 0
	totalSum := 0.0
	for i, c := range h.counts {
		total += c
		totalSum += float64(c) * h.center(i)
	}

	var maxVariance float64
	firstBest, lastBest := -1, -1
	wB := 0
	sumB := 0.0
	for t := range bins - 1 {
		wB += h.counts[t]
		sumB += float64(h.counts[t]) * h.center(t)
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		meanB := sumB / float64(wB)
		meanF := (totalSum - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		switch {
		case firstBest < 0 || variance > maxVariance:
			maxVariance = variance
			firstBest, lastBest = t, t
		case variance == maxVariance:
			lastBest = t
		}
	}
	if firstBest < 0 {
		return h.center(0)
	}
	return h.upperEdge((firstBest + lastBest) / 2)
}

// multiOtsuThresholds generalizes Otsu to two boundaries producing three
// classes, returning the lower (background/middle) and upper
// (middle/foreground) boundary intensities. Which boundary acts as the
// effective threshold depends on where the middle class is assigned.
func multiOtsuThresholds(values []float64) (lower, upper float64) {
	h := buildHistogram(values, histogramBins)
	bins := len(h.counts)

	cumCount := make([]int, bins+1)
	cumSum := make([]float64, bins+1)
	for i, c := range h.counts {
		cumCount[i+1] = cumCount[i] + c
		cumSum[i+1] = cumSum[i] + float64(c)*h.center(i)
	}

	// classScore returns w*mean^2 for the class spanning bins [lo, hi).
	classScore := func(lo, hi int) (float64, bool) {
		w := cumCount[hi] - cumCount[lo]
		if w == 0 {
			return 0, false
		}
		s := cumSum[hi] - cumSum[lo]
		return s * s / float64(w), true
	}

	var maxScore float64
	bestT1, bestT2 := -1, -1
	for t1 := 0; t1 < bins-2; t1++ {
		s0, ok := classScore(0, t1+1)
		if !ok {
			continue
		}
		for t2 := t1 + 1; t2 < bins-1; t2++ {
			s1, ok := classScore(t1+1, t2+1)
			if !ok {
				continue
			}
			s2, ok := classScore(t2+1, bins)
			if !ok {
				continue
			}
			score := s0 + s1 + s2
			if bestT1 < 0 || score > maxScore {
				maxScore = score
				bestT1, bestT2 = t1, t2
			}
		}
	}
	if bestT1 < 0 {
		// Fewer than three populated bins; fall back to the two-class split
		// for both boundaries.
		t := otsuThreshold(values)
		return t, t
	}
	return h.upperEdge(bestT1), h.upperEdge(bestT2)
}
