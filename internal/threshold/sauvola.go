package threshold

import (
	"math"

	"github.com/MeKo-Tech/thresh/internal/mempool"
)

// Sauvola constants: sensitivity k and dynamic-range normalizer R. R is the
// maximum expected standard deviation of a [0,1]-normalized image.
const (
	sauvolaK = 0.5
	sauvolaR = 0.5
)

// sauvolaSurface computes a true per-pixel threshold for one plane from the
// local mean m and standard deviation s over a square window centered on
// each pixel: m * (1 + k*(s/R - 1)). Local statistics are mask-aware and
// computed from integral images of the masked values, so every pixel gets an
// exact statistic with no block interpolation. Windows containing no valid
// samples fall back to the whole-plane mean and standard deviation.
func sauvolaSurface(plane []float64, mask []bool, width, height, window int) []float64 {
	// Integral tables are (width+1)*(height+1) with a zero top row and left
	// column, so window sums need no boundary special cases.
	iw := width + 1
	n := iw * (height + 1)
	sum := mempool.GetFloat64(n)
	sumSq := mempool.GetFloat64(n)
	count := mempool.GetFloat64(n)
	defer func() {
		mempool.PutFloat64(sum)
		mempool.PutFloat64(sumSq)
		mempool.PutFloat64(count)
	}()

	for y := 1; y <= height; y++ {
		var rowSum, rowSumSq, rowCount float64
		for x := 1; x <= width; x++ {
			i := (y-1)*width + (x - 1)
			if maskAt(mask, i) {
				v := plane[i]
				rowSum += v
				rowSumSq += v * v
				rowCount++
			}
			sum[y*iw+x] = sum[(y-1)*iw+x] + rowSum
			sumSq[y*iw+x] = sumSq[(y-1)*iw+x] + rowSumSq
			count[y*iw+x] = count[(y-1)*iw+x] + rowCount
		}
	}

	// Whole-plane statistics for the empty-window fallback.
	totalCount := count[height*iw+width]
	var globalMean, globalStd float64
	if totalCount > 0 {
		globalMean = sum[height*iw+width] / totalCount
		globalStd = math.Sqrt(math.Max(0, sumSq[height*iw+width]/totalCount-globalMean*globalMean))
	}

	half := window / 2
	surface := make([]float64, width*height)
	for y := range height {
		y0 := y - half
		if y0 < 0 {
			y0 = 0
		}
		y1 := y + half + 1
		if y1 > height {
			y1 = height
		}
		for x := range width {
			x0 := x - half
			if x0 < 0 {
				x0 = 0
			}
			x1 := x + half + 1
			if x1 > width {
				x1 = width
			}

			c := count[y1*iw+x1] - count[y0*iw+x1] - count[y1*iw+x0] + count[y0*iw+x0]
			m, s := globalMean, globalStd
			if c > 0 {
				total := sum[y1*iw+x1] - sum[y0*iw+x1] - sum[y1*iw+x0] + sum[y0*iw+x0]
				totalSq := sumSq[y1*iw+x1] - sumSq[y0*iw+x1] - sumSq[y1*iw+x0] + sumSq[y0*iw+x0]
				m = total / c
				s = math.Sqrt(math.Max(0, totalSq/c-m*m))
			}
			surface[y*width+x] = m * (1 + sauvolaK*(s/sauvolaR-1))
		}
	}
	return surface
}
