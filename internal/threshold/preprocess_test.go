package threshold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothAndTransformNoSmoothingReportsZeroSigma(t *testing.T) {
	img := NewImage(4, 4)
	for i := range img.Pix {
		img.Pix[i] = float64(i) / 16
	}
	working, sigma := smoothAndTransform(img, nil, 0, false)
	assert.Zero(t, sigma)
	assert.Equal(t, img.Pix, working)
}

func TestSmoothAndTransformSigmaFromScale(t *testing.T) {
	img := NewImage(8, 8)
	_, sigma := smoothAndTransform(img, nil, 0.674, false)
	assert.InDelta(t, 1.0, sigma, 1e-9)
}

func TestSmoothAndTransformDoesNotMutateInput(t *testing.T) {
	img := NewImage(8, 8)
	img.Pix[27] = 1
	original := make([]float64, len(img.Pix))
	copy(original, img.Pix)

	smoothAndTransform(img, nil, 2, true)
	assert.Equal(t, original, img.Pix)
}

func TestSmoothingPreservesFlatRegions(t *testing.T) {
	img := NewImage(16, 16)
	for i := range img.Pix {
		img.Pix[i] = 0.4
	}
	working, _ := smoothAndTransform(img, nil, 2, false)
	for i, v := range working {
		require.InDelta(t, 0.4, v, 1e-9, "pixel %d", i)
	}
}

func TestSmoothingDoesNotLeakMaskedIntensity(t *testing.T) {
	// A bright masked-out stripe next to a dark valid region: the valid
	// side must stay dark after smoothing.
	img := NewImage(16, 16)
	mask := make([]bool, img.Len())
	for y := range 16 {
		for x := range 16 {
			i := y*16 + x
			if x < 8 {
				img.Pix[i] = 1.0
				mask[i] = false
			} else {
				img.Pix[i] = 0.1
				mask[i] = true
			}
		}
	}
	working, _ := smoothAndTransform(img, mask, 3, false)
	for y := range 16 {
		for x := 8; x < 16; x++ {
			require.InDelta(t, 0.1, working[y*16+x], 1e-9, "pixel (%d,%d)", x, y)
		}
	}
}

func TestSmoothingBlursWithinValidRegion(t *testing.T) {
	img := NewImage(16, 16)
	img.Pix[8*16+8] = 1
	working, _ := smoothAndTransform(img, nil, 2, false)
	assert.Less(t, working[8*16+8], 1.0)
	assert.Greater(t, working[8*16+7], 0.0)
}

func TestLogRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1e-6, 0.25, 0.5, 0.999, 1} {
		assert.InDelta(t, v, inverseLog(forwardLog(v)), 1e-12)
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	for _, sigma := range []float64{0.5, 1, 2.5} {
		kernel := gaussianKernel(sigma)
		sum := 0.0
		for _, k := range kernel {
			sum += k
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "sigma %g", sigma)
		assert.Equal(t, 1, len(kernel)%2, "kernel must have odd length")
	}
}

func TestGaussianKernelRadiusGrowsWithSigma(t *testing.T) {
	small := gaussianKernel(0.5)
	large := gaussianKernel(3)
	assert.Greater(t, len(large), len(small))
	assert.GreaterOrEqual(t, len(large), 2*int(math.Ceil(3*3))+1)
}
