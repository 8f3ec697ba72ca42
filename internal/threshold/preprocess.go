package threshold

import (
	"math"

	"github.com/MeKo-Tech/thresh/internal/mempool"
)

// smoothingSigmaDivisor converts the user-facing smoothing scale into a
// Gaussian sigma so that roughly half of the kernel mass falls within the
// scale of the center (sigma = scale / 0.674).
const smoothingSigmaDivisor = 0.674

// automaticSmoothingScale is the scale forced by automatic mode; it
// corresponds to a sigma of 1.
const automaticSmoothingScale = smoothingSigmaDivisor

// smoothAndTransform prepares the working image for estimation: optional
// mask-aware Gaussian smoothing followed by an optional log transform.
// It returns a freshly allocated buffer and the sigma that was applied
// (0 when no smoothing took place). The input image is never mutated.
func smoothAndTransform(img Image, mask []bool, scale float64, logTransform bool) ([]float64, float64) {
	working := make([]float64, img.Len())
	copy(working, img.Pix)

	sigma := 0.0
	if scale > 0 {
		sigma = scale / smoothingSigmaDivisor
		for p := range img.Planes {
			lo := p * img.Width * img.Height
			var planeMask []bool
			if mask != nil {
				planeMask = mask[lo : lo+img.Width*img.Height]
			}
			smoothPlane(working[lo:lo+img.Width*img.Height], planeMask, img.Width, img.Height, sigma)
		}
	}

	if logTransform {
		for i, v := range working {
			working[i] = forwardLog(v)
		}
	}
	return working, sigma
}

// forwardLog compresses intensities with log1p; inverseLog is its exact
// inverse and is applied to thresholds computed in log space.
func forwardLog(v float64) float64 { return math.Log1p(v) }

func inverseLog(v float64) float64 { return math.Expm1(v) }

// gaussianKernel builds a normalized 1D Gaussian with radius 3*sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// smoothPlane convolves one plane in place with a separable Gaussian.
// Masked-out samples contribute no intensity: the convolution runs over
// image*mask and is renormalized by the convolved mask weight, so intensity
// never leaks across the mask boundary. Samples with zero local weight keep
// their original value.
func smoothPlane(plane []float64, mask []bool, width, height int, sigma float64) {
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	n := width * height

	weighted := mempool.GetFloat64(n)
	weights := mempool.GetFloat64(n)
	tmpV := mempool.GetFloat64(n)
	tmpW := mempool.GetFloat64(n)
	defer func() {
		mempool.PutFloat64(weighted)
		mempool.PutFloat64(weights)
		mempool.PutFloat64(tmpV)
		mempool.PutFloat64(tmpW)
	}()

	for i := range n {
		if mask == nil || mask[i] {
			weighted[i] = plane[i]
			weights[i] = 1
		} else {
			weighted[i] = 0
			weights[i] = 0
		}
	}

	// Horizontal pass.
	for y := range height {
		row := y * width
		for x := range width {
			var v, w float64
			for k, kv := range kernel {
				sx := x + k - radius
				if sx < 0 || sx >= width {
					continue
				}
				v += kv * weighted[row+sx]
				w += kv * weights[row+sx]
			}
			tmpV[row+x] = v
			tmpW[row+x] = w
		}
	}

	// Vertical pass.
	for y := range height {
		for x := range width {
			var v, w float64
			for k, kv := range kernel {
				sy := y + k - radius
				if sy < 0 || sy >= height {
					continue
				}
				v += kv * tmpV[sy*width+x]
				w += kv * tmpW[sy*width+x]
			}
			if w > 0 {
				plane[y*width+x] = v / w
			}
		}
	}
}
