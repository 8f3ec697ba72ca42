package testutil

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/thresh/internal/threshold"
)

// Bimodal returns an image whose left half sits at lo and right half at hi,
// the canonical two-mode input for global estimators.
func Bimodal(width, height int, lo, hi float64) threshold.Image {
	img := threshold.NewImage(width, height)
	for y := range height {
		for x := range width {
			v := lo
			if x >= width/2 {
				v = hi
			}
			img.Pix[y*width+x] = v
		}
	}
	return img
}

// NoisyBimodal is Bimodal with uniform noise of the given amplitude added,
// clamped to [0,1]. The seed makes fixtures reproducible across runs.
func NoisyBimodal(width, height int, lo, hi, amplitude float64, seed int64) threshold.Image {
	img := Bimodal(width, height, lo, hi)
	rng := rand.New(rand.NewSource(seed))
	for i, v := range img.Pix {
		v += (rng.Float64()*2 - 1) * amplitude
		img.Pix[i] = math.Min(1, math.Max(0, v))
	}
	return img
}

// Gradient returns an image ramping linearly from lo at the left edge to hi
// at the right edge, the standard input for adaptive strategies.
func Gradient(width, height int, lo, hi float64) threshold.Image {
	img := threshold.NewImage(width, height)
	for y := range height {
		for x := range width {
			t := float64(x) / float64(width-1)
			img.Pix[y*width+x] = lo + t*(hi-lo)
		}
	}
	return img
}

// Disc returns a background-valued image with a centered bright disc of the
// given radius, a blob-on-background fixture.
func Disc(width, height int, radius float64, background, foreground float64) threshold.Image {
	img := threshold.NewImage(width, height)
	cx := float64(width-1) / 2
	cy := float64(height-1) / 2
	for y := range height {
		for x := range width {
			v := background
			if math.Hypot(float64(x)-cx, float64(y)-cy) <= radius {
				v = foreground
			}
			img.Pix[y*width+x] = v
		}
	}
	return img
}

// Flat returns a constant-intensity image.
func Flat(width, height int, value float64) threshold.Image {
	img := threshold.NewImage(width, height)
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

// BorderMask returns a mask that invalidates a border of the given width on
// all four sides.
func BorderMask(width, height, border int) []bool {
	mask := make([]bool, width*height)
	for y := range height {
		for x := range width {
			mask[y*width+x] = x >= border && x < width-border &&
				y >= border && y < height-border
		}
	}
	return mask
}

// ToGray renders the first plane of a normalized image as an 8-bit grayscale
// raster.
func ToGray(img threshold.Image) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := range img.Height {
		for x := range img.Width {
			v := img.At(0, y, x)
			v = math.Min(1, math.Max(0, v))
			gray.SetGray(x, y, color.Gray{Y: uint8(math.Round(v * 255))})
		}
	}
	return gray
}

// SavePNG writes an image fixture into dir and returns its path.
func SavePNG(t *testing.T, dir, name string, img threshold.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(ToGray(img), path))
	return path
}
