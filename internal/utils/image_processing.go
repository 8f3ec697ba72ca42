package utils

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/thresh/internal/threshold"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing failed at %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

// ImageConstraints defines the constraints for image processing.
type ImageConstraints struct {
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

// DefaultImageConstraints returns the default constraints for thresholding.
// The upper bound keeps worst-case memory for the per-pixel surfaces sane.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MinWidth:  1,
		MinHeight: 1,
		MaxWidth:  8192,
		MaxHeight: 8192,
	}
}

// ValidateImageConstraints checks dimensions against the provided constraints.
func ValidateImageConstraints(img image.Image, constraints ImageConstraints) error {
	if img == nil {
		return &ImageProcessingError{Operation: "validate", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < constraints.MinWidth || h < constraints.MinHeight {
		return &ImageProcessingError{
			Operation: "validate",
			Err: fmt.Errorf(
				"image too small: %dx%d < %dx%d",
				w, h, constraints.MinWidth, constraints.MinHeight,
			),
		}
	}
	return nil
}

// ResizeImage scales an image down to fit within the constraints' maximum
// dimensions, preserving aspect ratio. Images already within bounds are
// returned unchanged.
func ResizeImage(img image.Image, constraints ImageConstraints) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Dx() <= constraints.MaxWidth && b.Dy() <= constraints.MaxHeight {
		return img, nil
	}
	return imaging.Fit(img, constraints.MaxWidth, constraints.MaxHeight, imaging.Lanczos), nil
}

// ToFloatImage converts a decoded raster to the engine's normalized
// grayscale representation, using the Rec. 601 luma of each pixel scaled to
// [0, 1].
func ToFloatImage(img image.Image) (threshold.Image, error) {
	if img == nil {
		return threshold.Image{}, &ImageProcessingError{Operation: "convert", Err: errors.New("input image is nil")}
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return threshold.Image{}, &ImageProcessingError{Operation: "convert", Err: errors.New("invalid image dimensions")}
	}

	out := threshold.NewImage(width, height)
	if gray, ok := img.(*image.Gray); ok {
		for y := range height {
			row := gray.Pix[(y+bounds.Min.Y-gray.Rect.Min.Y)*gray.Stride:]
			for x := range width {
				out.Pix[y*width+x] = float64(row[x+bounds.Min.X-gray.Rect.Min.X]) / 255.0
			}
		}
		return out, nil
	}
	for y := range height {
		for x := range width {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			out.Pix[y*width+x] = luma / 255.0
		}
	}
	return out, nil
}

// BinaryToGray renders a binary segmentation as an 8-bit raster with
// foreground white.
func BinaryToGray(binary []bool, width, height int) (*image.Gray, error) {
	if len(binary) != width*height {
		return nil, &ImageProcessingError{
			Operation: "render",
			Err:       fmt.Errorf("binary length %d does not match %dx%d", len(binary), width, height),
		}
	}
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for i, fg := range binary {
		if fg {
			gray.Pix[i] = 255
		}
	}
	return gray, nil
}

// SurfaceToGray renders a threshold surface as an 8-bit raster for
// inspection, clamping values into [0, 1].
func SurfaceToGray(surface []float64, width, height int) (*image.Gray, error) {
	if len(surface) != width*height {
		return nil, &ImageProcessingError{
			Operation: "render",
			Err:       fmt.Errorf("surface length %d does not match %dx%d", len(surface), width, height),
		}
	}
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range surface {
		v = math.Min(1, math.Max(0, v))
		gray.Pix[i] = uint8(math.Round(v * 255))
	}
	return gray, nil
}

// MaskFromAlpha derives a validity mask from an image's alpha channel:
// fully transparent pixels are invalid. Returns nil when the image is fully
// opaque, which the engine treats as an all-valid mask.
func MaskFromAlpha(img image.Image) []bool {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	mask := make([]bool, width*height)
	anyMasked := false
	for y := range height {
		for x := range width {
			_, _, _, a := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			valid := a > 0
			mask[y*width+x] = valid
			anyMasked = anyMasked || !valid
		}
	}
	if !anyMasked {
		return nil
	}
	return mask
}
