package threshold

import (
	"runtime"
	"sync"
)

// minBlockSamples is the smallest valid-sample count a block may have and
// still be estimated; sparser blocks inherit the guide threshold so no block
// is ever left undefined.
const minBlockSamples = 5

// Guide corridor: adaptive per-pixel thresholds are clamped between these
// multiples of the global guide threshold, anchoring background-only windows
// to a plausible global regime.
const (
	guideLowerFactor = 0.7
	guideUpperFactor = 1.5
)

// clampToGuide bounds every element of surface to the guide corridor.
// The bounds are ordered first so a negative guide (possible with robust
// background and negative deviation counts) still yields a valid interval.
func clampToGuide(surface []float64, guide float64) {
	lo := guideLowerFactor * guide
	hi := guideUpperFactor * guide
	if lo > hi {
		lo, hi = hi, lo
	}
	for i, v := range surface {
		surface[i] = clamp(v, lo, hi)
	}
}

// blockGrid holds one estimated scalar per window along with the pixel
// coordinates of each window center.
type blockGrid struct {
	vals     []float64 // row-major, ny*nx
	nx, ny   int
	centersX []float64
	centersY []float64
}

// adaptiveSurface partitions one plane into window-sized blocks, estimates a
// threshold per block, and blends the block scalars into a smooth per-pixel
// surface. Volumetric inputs call this once per depth plane, so the in-plane
// behavior is identical in 2D and 3D.
func adaptiveSurface(plane []float64, mask []bool, width, height int, p Params, guide float64) ([]float64, error) {
	grid, err := estimateBlocks(plane, mask, width, height, p, guide)
	if err != nil {
		return nil, err
	}
	return interpolateGrid(grid, width, height), nil
}

// estimateBlocks runs the configured global estimator over each block's
// valid samples. Blocks are independent and processed by a small worker
// pool; results are written by block index, so the output is identical to a
// sequential run.
func estimateBlocks(plane []float64, mask []bool, width, height int, p Params, guide float64) (blockGrid, error) {
	win := p.WindowSize
	nx := (width + win - 1) / win
	ny := (height + win - 1) / win

	grid := blockGrid{
		vals:     make([]float64, nx*ny),
		nx:       nx,
		ny:       ny,
		centersX: blockCenters(width, win, nx),
		centersY: blockCenters(height, win, ny),
	}

	workers := runtime.NumCPU()
	if workers > nx*ny {
		workers = nx * ny
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	jobs := make(chan int, nx*ny)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				bx, by := b%nx, b/nx
				v, err := estimateBlock(plane, mask, width, height, bx, by, win, p, guide)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				grid.vals[b] = v
			}
		}()
	}
	for b := range nx * ny {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return blockGrid{}, firstErr
	}
	return grid, nil
}

// estimateBlock gathers the valid samples of one block and estimates its
// threshold. Blocks with too few valid samples borrow the guide threshold.
func estimateBlock(plane []float64, mask []bool, width, height, bx, by, win int, p Params, guide float64) (float64, error) {
	x0 := bx * win
	x1 := x0 + win
	if x1 > width {
		x1 = width
	}
	y0 := by * win
	y1 := y0 + win
	if y1 > height {
		y1 = height
	}

	values := make([]float64, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		row := y * width
		for x := x0; x < x1; x++ {
			if maskAt(mask, row+x) {
				values = append(values, plane[row+x])
			}
		}
	}
	if len(values) < minBlockSamples {
		return guide, nil
	}
	return estimateGlobal(values, p, "adaptive block")
}

// blockCenters returns the pixel coordinate of each block center along one
// axis. The last block is clipped to the remaining extent, so its center
// shifts accordingly.
func blockCenters(extent, win, n int) []float64 {
	centers := make([]float64, n)
	for i := range n {
		lo := i * win
		hi := lo + win
		if hi > extent {
			hi = extent
		}
		centers[i] = float64(lo+hi-1) / 2
	}
	return centers
}

// interpolateGrid blends the per-block scalars into a per-pixel surface with
// separable Catmull-Rom interpolation across block centers, so the surface
// varies continuously instead of jumping at block boundaries. Beyond the
// outermost centers the surface extends with the edge value; a single block
// along an axis yields a constant along that axis.
func interpolateGrid(grid blockGrid, width, height int) []float64 {
	xIdx, xW := splineCoefficients(grid.centersX, width)
	yIdx, yW := splineCoefficients(grid.centersY, height)

	surface := make([]float64, width*height)
	sample := func(iy, ix int) float64 {
		if iy < 0 {
			iy = 0
		} else if iy >= grid.ny {
			iy = grid.ny - 1
		}
		if ix < 0 {
			ix = 0
		} else if ix >= grid.nx {
			ix = grid.nx - 1
		}
		return grid.vals[iy*grid.nx+ix]
	}

	for y := range height {
		jy := yIdx[y]
		wy := yW[y]
		for x := range width {
			jx := xIdx[x]
			wx := xW[x]
			var v float64
			for i := range 4 {
				var row float64
				for j := range 4 {
					row += wx[j] * sample(jy+i-1, jx+j-1)
				}
				v += wy[i] * row
			}
			surface[y*width+x] = v
		}
	}
	return surface
}

// splineCoefficients precomputes, for every pixel coordinate along one axis,
// the index of the segment between block centers it falls into and the four
// Catmull-Rom weights for that position.
func splineCoefficients(centers []float64, extent int) ([]int, [][4]float64) {
	idx := make([]int, extent)
	weights := make([][4]float64, extent)
	n := len(centers)
	seg := 0
	for x := range extent {
		fx := float64(x)
		for seg < n-2 && fx > centers[seg+1] {
			seg++
		}
		t := 0.0
		if n > 1 {
			span := centers[seg+1] - centers[seg]
			if span > 0 {
				t = clamp((fx-centers[seg])/span, 0, 1)
			}
		}
		idx[x] = seg
		weights[x] = catmullRomWeights(t)
	}
	return idx, weights
}

// catmullRomWeights returns the basis weights for the four control points
// around parameter t in [0,1]. The weights always sum to one.
func catmullRomWeights(t float64) [4]float64 {
	t2 := t * t
	t3 := t2 * t
	return [4]float64{
		0.5 * (-t3 + 2*t2 - t),
		0.5 * (3*t3 - 5*t2 + 2),
		0.5 * (-3*t3 + 4*t2 + t),
		0.5 * (t3 - t2),
	}
}
