package threshold

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// seededImage builds a deterministic pseudo-random image so shrunk
// counterexamples are reproducible from the generated seed alone.
func seededImage(width, height int, seed int64) Image {
	img := NewImage(width, height)
	rng := rand.New(rand.NewSource(seed))
	for i := range img.Pix {
		img.Pix[i] = rng.Float64()
	}
	return img
}

// TestThreshold_MaskedPixelsNeverForeground verifies masked-out pixels are
// background for every method and strategy.
func TestThreshold_MaskedPixelsNeverForeground(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("masked pixels are always background", prop.ForAll(
		func(width, height int, seed int64, method Method, adaptive bool) bool {
			img := seededImage(width, height, seed)
			rng := rand.New(rand.NewSource(seed + 1))
			mask := make([]bool, img.Len())
			anyValid := false
			for i := range mask {
				mask[i] = rng.Float64() < 0.8
				anyValid = anyValid || mask[i]
			}
			if !anyValid {
				return true
			}

			p := DefaultParams()
			p.Method = method
			if adaptive {
				p.Strategy = StrategyAdaptive
				p.WindowSize = 8
			} else if method == MethodSauvola {
				return true // sauvola has no global form
			}

			result, err := Threshold(img, mask, p)
			if err != nil {
				return false
			}
			for i, b := range result.Binary {
				if b && !mask[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(10, 40),
		gen.IntRange(10, 40),
		gen.Int64(),
		gen.OneConstOf(MethodLi, MethodOtsu, MethodRobustBackground, MethodSauvola),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestThreshold_FinalWithinConfiguredRange verifies the range clamp holds for
// every estimator on arbitrary inputs.
func TestThreshold_FinalWithinConfiguredRange(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("final threshold respects [min, max]", prop.ForAll(
		func(width, height int, seed int64, method Method) bool {
			img := seededImage(width, height, seed)

			p := DefaultParams()
			p.Method = method
			p.MinThreshold = 0.25
			p.MaxThreshold = 0.75
			p.CorrectionFactor = 1.5

			result, err := Threshold(img, nil, p)
			if err != nil {
				return false
			}
			for _, v := range result.FinalThreshold {
				if v < p.MinThreshold || v > p.MaxThreshold {
					return false
				}
			}
			return true
		},
		gen.IntRange(10, 40),
		gen.IntRange(10, 40),
		gen.Int64(),
		gen.OneConstOf(MethodLi, MethodOtsu, MethodRobustBackground),
	))

	properties.TestingRun(t)
}

// TestThreshold_AdaptiveCorridor verifies the uncorrected adaptive surface
// never leaves the guide corridor.
func TestThreshold_AdaptiveCorridor(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("adaptive surface stays within the guide corridor", prop.ForAll(
		func(width, height int, seed int64, method Method) bool {
			img := seededImage(width, height, seed)

			p := DefaultParams()
			p.Strategy = StrategyAdaptive
			p.Method = method
			p.WindowSize = 10

			result, err := Threshold(img, nil, p)
			if err != nil || !result.HasGuide {
				return false
			}
			lo := guideLowerFactor * result.GuideThreshold
			hi := guideUpperFactor * result.GuideThreshold
			if lo > hi {
				lo, hi = hi, lo
			}
			const eps = 1e-9
			for _, v := range result.OrigThreshold {
				if v < lo-eps || v > hi+eps {
					return false
				}
			}
			return true
		},
		gen.IntRange(12, 40),
		gen.IntRange(12, 40),
		gen.Int64(),
		gen.OneConstOf(MethodLi, MethodOtsu, MethodSauvola),
	))

	properties.TestingRun(t)
}

// TestRobustBackground_MonotoneInDeviations verifies the robust background
// threshold is non-decreasing in the number of deviations.
func TestRobustBackground_MonotoneInDeviations(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("threshold grows with the deviation multiplier", prop.ForAll(
		func(seed int64, nDevLow, nDevStep float64) bool {
			rng := rand.New(rand.NewSource(seed))
			values := make([]float64, 200)
			for i := range values {
				values[i] = rng.Float64()
			}

			rp := DefaultParams().Robust
			rp.NumberOfDeviations = nDevLow
			low, err := robustBackground(values, rp, "test")
			if err != nil {
				return false
			}
			rp.NumberOfDeviations = nDevLow + nDevStep
			high, err := robustBackground(values, rp, "test")
			if err != nil {
				return false
			}
			return high >= low
		},
		gen.Int64(),
		gen.Float64Range(0, 4),
		gen.Float64Range(0, 4),
	))

	properties.TestingRun(t)
}

// TestThreshold_FlatImageEstimatesItsValue verifies every estimator returns
// the single intensity of a flat image.
func TestThreshold_FlatImageEstimatesItsValue(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("flat image thresholds at the flat value", prop.ForAll(
		func(value float64, method Method) bool {
			img := NewImage(8, 8)
			for i := range img.Pix {
				img.Pix[i] = value
			}

			p := DefaultParams()
			p.Method = method
			result, err := Threshold(img, nil, p)
			if err != nil {
				return false
			}
			return result.OrigThreshold[0] == value
		},
		gen.Float64Range(0, 1),
		gen.OneConstOf(MethodLi, MethodOtsu, MethodRobustBackground),
	))

	properties.TestingRun(t)
}
