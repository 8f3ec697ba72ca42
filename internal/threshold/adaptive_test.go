package threshold

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientPlane(width, height int) []float64 {
	plane := make([]float64, width*height)
	for y := range height {
		for x := range width {
			plane[y*width+x] = float64(x) / float64(width-1)
		}
	}
	return plane
}

func TestBlockCentersClippedLastBlock(t *testing.T) {
	// extent 25, window 10 -> blocks [0,10) [10,20) [20,25)
	centers := blockCenters(25, 10, 3)
	require.Len(t, centers, 3)
	assert.InDelta(t, 4.5, centers[0], 1e-12)
	assert.InDelta(t, 14.5, centers[1], 1e-12)
	assert.InDelta(t, 22.0, centers[2], 1e-12)
}

func TestEstimateBlocksSingleBlockWhenWindowExceedsImage(t *testing.T) {
	width, height := 20, 14
	plane := gradientPlane(width, height)
	p := DefaultParams()
	p.Method = MethodOtsu
	p.WindowSize = 50

	grid, err := estimateBlocks(plane, nil, width, height, p, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, grid.nx)
	assert.Equal(t, 1, grid.ny)

	whole, err := estimateGlobal(gatherValid(plane, nil), p, "test")
	require.NoError(t, err)
	assert.InDelta(t, whole, grid.vals[0], 1e-12)
}

func TestEstimateBlocksSparseBlockInheritsGuide(t *testing.T) {
	width, height := 20, 10
	plane := gradientPlane(width, height)
	mask := make([]bool, width*height)
	// Only the left block has valid samples.
	for y := range height {
		for x := range 10 {
			mask[y*width+x] = true
		}
	}
	p := DefaultParams()
	p.Method = MethodOtsu
	p.WindowSize = 10

	const guide = 0.42
	grid, err := estimateBlocks(plane, mask, width, height, p, guide)
	require.NoError(t, err)
	require.Equal(t, 2, grid.nx)
	assert.InDelta(t, guide, grid.vals[1], 1e-12)
}

func TestEstimateBlocksMatchesSequentialOrder(t *testing.T) {
	// Repeated runs must be bit-identical even though blocks are estimated
	// by a worker pool.
	width, height := 64, 64
	rng := rand.New(rand.NewSource(3))
	plane := make([]float64, width*height)
	for i := range plane {
		plane[i] = rng.Float64()
	}
	p := DefaultParams()
	p.Method = MethodLi
	p.WindowSize = 16

	first, err := estimateBlocks(plane, nil, width, height, p, 0.5)
	require.NoError(t, err)
	for range 5 {
		again, err := estimateBlocks(plane, nil, width, height, p, 0.5)
		require.NoError(t, err)
		assert.Equal(t, first.vals, again.vals)
	}
}

func TestInterpolateGridConstantGrid(t *testing.T) {
	grid := blockGrid{
		vals:     []float64{0.3, 0.3, 0.3, 0.3},
		nx:       2,
		ny:       2,
		centersX: []float64{4.5, 14.5},
		centersY: []float64{4.5, 14.5},
	}
	surface := interpolateGrid(grid, 20, 20)
	for i, v := range surface {
		require.InDelta(t, 0.3, v, 1e-12, "pixel %d", i)
	}
}

func TestInterpolateGridSingleBlockIsConstant(t *testing.T) {
	grid := blockGrid{
		vals:     []float64{0.55},
		nx:       1,
		ny:       1,
		centersX: []float64{9.5},
		centersY: []float64{9.5},
	}
	surface := interpolateGrid(grid, 20, 20)
	for i, v := range surface {
		require.InDelta(t, 0.55, v, 1e-12, "pixel %d", i)
	}
}

func TestInterpolateGridVariesContinuously(t *testing.T) {
	grid := blockGrid{
		vals:     []float64{0.2, 0.8},
		nx:       2,
		ny:       1,
		centersX: []float64{9.5, 29.5},
		centersY: []float64{9.5},
	}
	surface := interpolateGrid(grid, 40, 20)
	// Interpolated values at the centers match the block scalars.
	assert.InDelta(t, 0.2, surface[10*40+9], 0.02)
	assert.InDelta(t, 0.8, surface[10*40+30], 0.02)
	// No jump larger than a small step anywhere along a row.
	for x := 1; x < 40; x++ {
		jump := surface[x] - surface[x-1]
		if jump < 0 {
			jump = -jump
		}
		assert.Less(t, jump, 0.06, "jump at x=%d", x)
	}
}

func TestClampToGuideBoundsSurface(t *testing.T) {
	surface := []float64{0.0, 0.1, 0.5, 0.9, 2.0}
	clampToGuide(surface, 0.4)
	for _, v := range surface {
		assert.GreaterOrEqual(t, v, 0.7*0.4-1e-12)
		assert.LessOrEqual(t, v, 1.5*0.4+1e-12)
	}
}

func TestClampToGuideNegativeGuideOrdersBounds(t *testing.T) {
	surface := []float64{-1, 0, 1}
	clampToGuide(surface, -0.2)
	for _, v := range surface {
		assert.GreaterOrEqual(t, v, 1.5*-0.2-1e-12)
		assert.LessOrEqual(t, v, 0.7*-0.2+1e-12)
	}
}

func TestCatmullRomWeightsSumToOne(t *testing.T) {
	for _, tt := range []float64{0, 0.25, 0.5, 0.75, 1} {
		w := catmullRomWeights(tt)
		sum := w[0] + w[1] + w[2] + w[3]
		assert.InDelta(t, 1.0, sum, 1e-12, "t=%g", tt)
	}
}

func TestCatmullRomEndpointsInterpolate(t *testing.T) {
	w0 := catmullRomWeights(0)
	assert.InDelta(t, 1.0, w0[1], 1e-12)
	w1 := catmullRomWeights(1)
	assert.InDelta(t, 1.0, w1[2], 1e-12)
}
