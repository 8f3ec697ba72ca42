// Package overlap scores the agreement between two binary segmentations of
// the same scene, typically a computed foreground mask against a ground
// truth. It shares no state with the thresholding engine; both inputs are
// plain boolean rasters.
package overlap

import (
	"fmt"
)

// Decimation selects how foreground point sets are reduced before the
// earth-mover's distance computation.
type Decimation int

const (
	DecimationKMeans Decimation = iota
	DecimationSkeleton
)

func (d Decimation) String() string {
	switch d {
	case DecimationKMeans:
		return "k_means"
	case DecimationSkeleton:
		return "skeleton"
	default:
		return fmt.Sprintf("decimation(%d)", int(d))
	}
}

// Params configures the scorer. The zero value is not useful; start from
// DefaultParams.
type Params struct {
	// MaxDistance caps every point-to-point distance entering the
	// earth-mover's computation.
	MaxDistance float64
	// PenalizeMissing charges unmatched foreground mass at MaxDistance
	// instead of discarding it.
	PenalizeMissing bool
	Decimation      Decimation
	// MaxPoints bounds the size of each decimated point set.
	MaxPoints int
}

func DefaultParams() Params {
	return Params{
		MaxDistance: 250,
		MaxPoints:   250,
		Decimation:  DecimationKMeans,
	}
}

// Score holds every measurement for one ground-truth/test pair. Rates are
// NaN-free: an undefined ratio (empty denominator) is reported as 1, the
// convention for a vacuously perfect match.
type Score struct {
	TruePositives  int `json:"true_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`

	Recall            float64 `json:"recall"`
	Precision         float64 `json:"precision"`
	FFactor           float64 `json:"f_factor"`
	Jaccard           float64 `json:"jaccard"`
	TrueNegativeRate  float64 `json:"true_negative_rate"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
	RandIndex         float64 `json:"rand_index"`
	AdjustedRandIndex float64 `json:"adjusted_rand_index"`

	EarthMoversDistance float64 `json:"earth_movers_distance"`
}

// Measure scores test against groundTruth over the optional mask. Both
// rasters must be width*height booleans in row-major order.
func Measure(groundTruth, test []bool, width, height int, mask []bool, p Params) (Score, error) {
	n := width * height
	if width <= 0 || height <= 0 {
		return Score{}, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if len(groundTruth) != n || len(test) != n {
		return Score{}, fmt.Errorf("raster lengths %d and %d do not match %dx%d",
			len(groundTruth), len(test), width, height)
	}
	if mask != nil && len(mask) != n {
		return Score{}, fmt.Errorf("mask length %d does not match %dx%d", len(mask), width, height)
	}
	if p.MaxPoints <= 0 {
		return Score{}, fmt.Errorf("max points %d must be positive", p.MaxPoints)
	}
	if p.MaxDistance <= 0 {
		return Score{}, fmt.Errorf("max distance %g must be positive", p.MaxDistance)
	}

	s := confusion(groundTruth, test, mask)
	s.rates()
	s.randIndices()

	emd, err := earthMovers(groundTruth, test, width, height, mask, p)
	if err != nil {
		return Score{}, fmt.Errorf("earth-mover's distance: %w", err)
	}
	s.EarthMoversDistance = emd
	return s, nil
}

func confusion(groundTruth, test, mask []bool) Score {
	var s Score
	for i := range groundTruth {
		if mask != nil && !mask[i] {
			continue
		}
		switch {
		case groundTruth[i] && test[i]:
			s.TruePositives++
		case groundTruth[i]:
			s.FalseNegatives++
		case test[i]:
			s.FalsePositives++
		default:
			s.TrueNegatives++
		}
	}
	return s
}

// rates fills the ratio measurements from the confusion counts.
func (s *Score) rates() {
	tp := float64(s.TruePositives)
	tn := float64(s.TrueNegatives)
	fp := float64(s.FalsePositives)
	fn := float64(s.FalseNegatives)

	s.Recall = safeRatio(tp, tp+fn)
	s.Precision = safeRatio(tp, tp+fp)
	s.TrueNegativeRate = safeRatio(tn, tn+fp)
	s.FalsePositiveRate = 1 - s.TrueNegativeRate
	s.Jaccard = safeRatio(tp, tp+fp+fn)
	if s.Precision+s.Recall == 0 {
		s.FFactor = 0
	} else {
		s.FFactor = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
}

// randIndices computes the Rand index and its chance-adjusted form from the
// 2x2 co-occurrence table of the two binary labelings.
func (s *Score) randIndices() {
	n := s.TruePositives + s.TrueNegatives + s.FalsePositives + s.FalseNegatives
	if n < 2 {
		s.RandIndex = 1
		s.AdjustedRandIndex = 1
		return
	}

	// Cell pair counts of the co-occurrence table.
	cells := choose2(s.TruePositives) + choose2(s.TrueNegatives) +
		choose2(s.FalsePositives) + choose2(s.FalseNegatives)
	// Row sums are the ground-truth class sizes, column sums the test's.
	rows := choose2(s.TruePositives+s.FalseNegatives) + choose2(s.TrueNegatives+s.FalsePositives)
	cols := choose2(s.TruePositives+s.FalsePositives) + choose2(s.TrueNegatives+s.FalseNegatives)
	total := choose2(n)

	s.RandIndex = (total + 2*cells - rows - cols) / total

	expected := rows * cols / total
	maxIndex := (rows + cols) / 2
	if maxIndex == expected {
		// Both partitions are trivial (single class); agreement is exact.
		s.AdjustedRandIndex = 1
		return
	}
	s.AdjustedRandIndex = (cells - expected) / (maxIndex - expected)
}

func choose2(n int) float64 {
	return float64(n) * float64(n-1) / 2
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 1
	}
	return num / den
}
