package threshold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSauvolaFlatImage(t *testing.T) {
	width, height := 20, 20
	plane := make([]float64, width*height)
	for i := range plane {
		plane[i] = 0.6
	}
	surface := sauvolaSurface(plane, nil, width, height, 5)
	// s == 0 everywhere, so every pixel thresholds at m*(1-k) = 0.3.
	for i, v := range surface {
		require.InDelta(t, 0.3, v, 1e-9, "pixel %d", i)
	}
}

func TestSauvolaScalesWithLocalDeviation(t *testing.T) {
	// A checkerboard has maximal local deviation; its Sauvola threshold
	// approaches the local mean, while a flat region stays at m*(1-k).
	width, height := 20, 20
	plane := make([]float64, width*height)
	for y := range height {
		for x := range width {
			if x < 10 {
				if (x+y)%2 == 0 {
					plane[y*width+x] = 1
				}
			} else {
				plane[y*width+x] = 0.5
			}
		}
	}
	surface := sauvolaSurface(plane, nil, width, height, 5)
	// Checkerboard interior: m = 0.5, s = 0.5 -> threshold = m = 0.5.
	assert.InDelta(t, 0.5, surface[10*width+4], 0.05)
	// Flat interior: m = 0.5, s = 0 -> threshold = 0.25.
	assert.InDelta(t, 0.25, surface[10*width+16], 0.05)
}

func TestSauvolaEmptyWindowFallsBackToPlaneStats(t *testing.T) {
	width, height := 30, 10
	plane := make([]float64, width*height)
	mask := make([]bool, width*height)
	for y := range height {
		for x := range width {
			i := y*width + x
			if x >= 20 {
				plane[i] = 0.8
				mask[i] = true
			}
		}
	}
	surface := sauvolaSurface(plane, mask, width, height, 3)
	// Windows around x=0 contain no valid samples; the plane statistics
	// (mean 0.8, std 0) apply, giving 0.8*(1-0.5) = 0.4.
	assert.InDelta(t, 0.4, surface[5*width+0], 1e-9)
	// Valid flat region gets the same value from its own window.
	assert.InDelta(t, 0.4, surface[5*width+25], 1e-9)
}

func TestSauvolaMaskedSamplesExcludedFromLocalStats(t *testing.T) {
	// Bright masked pixels must not inflate the local mean of their
	// neighbors.
	width, height := 15, 15
	plane := make([]float64, width*height)
	mask := make([]bool, width*height)
	for i := range plane {
		plane[i] = 0.2
		mask[i] = true
	}
	center := 7*width + 7
	plane[center] = 1.0
	mask[center] = false

	surface := sauvolaSurface(plane, mask, width, height, 5)
	for x := 5; x < 10; x++ {
		require.InDelta(t, 0.1, surface[7*width+x], 1e-9, "x=%d", x)
	}
}

func TestSauvolaWindowLargerThanPlane(t *testing.T) {
	width, height := 8, 8
	plane := make([]float64, width*height)
	for i := range plane {
		plane[i] = float64(i%2) * 0.5
	}
	surface := sauvolaSurface(plane, nil, width, height, 100)
	// Every window covers the whole plane, so the surface is constant.
	first := surface[0]
	for i, v := range surface {
		require.InDelta(t, first, v, 1e-12, "pixel %d", i)
	}
	assert.False(t, math.IsNaN(first))
}
