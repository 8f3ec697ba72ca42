package threshold

import "fmt"

// Image is a grayscale intensity image with two or three spatial axes.
// Samples are stored plane-major, then row-major, with values conventionally
// normalized to [0,1] by the caller. A Planes value of 1 describes a plain
// 2D image; volumetric stacks set Planes > 1.
//
// The engine treats Image values as read-only and never mutates Pix.
type Image struct {
	Pix    []float64
	Width  int
	Height int
	Planes int
}

// NewImage allocates a zero-filled 2D image.
func NewImage(width, height int) Image {
	return Image{
		Pix:    make([]float64, width*height),
		Width:  width,
		Height: height,
		Planes: 1,
	}
}

// NewVolume allocates a zero-filled volumetric image.
func NewVolume(width, height, planes int) Image {
	return Image{
		Pix:    make([]float64, width*height*planes),
		Width:  width,
		Height: height,
		Planes: planes,
	}
}

// Len returns the total number of samples.
func (img Image) Len() int {
	return img.Width * img.Height * img.Planes
}

// At returns the sample at (x, y) in plane p.
func (img Image) At(p, y, x int) float64 {
	return img.Pix[(p*img.Height+y)*img.Width+x]
}

// Plane returns the sample slice covering plane p.
func (img Image) Plane(p int) []float64 {
	n := img.Width * img.Height
	return img.Pix[p*n : (p+1)*n]
}

// validate checks the image geometry against its backing buffer.
func (img Image) validate() error {
	if img.Width <= 0 || img.Height <= 0 || img.Planes <= 0 {
		return &ShapeError{
			Stage: "input",
			Err:   fmt.Errorf("invalid dimensions %dx%dx%d", img.Width, img.Height, img.Planes),
		}
	}
	if len(img.Pix) != img.Len() {
		return &ShapeError{
			Stage: "input",
			Err: fmt.Errorf("pixel buffer length %d does not match %dx%dx%d",
				len(img.Pix), img.Width, img.Height, img.Planes),
		}
	}
	return nil
}

// checkMask verifies that a mask is congruent to the image. A nil mask is
// valid and equivalent to an all-true mask.
func (img Image) checkMask(mask []bool) error {
	if mask == nil {
		return nil
	}
	if len(mask) != img.Len() {
		return &ShapeError{
			Stage: "input",
			Err: fmt.Errorf("mask length %d does not match image %dx%dx%d",
				len(mask), img.Width, img.Height, img.Planes),
		}
	}
	return nil
}

// maskAt reports whether the sample at linear index i is valid.
func maskAt(mask []bool, i int) bool {
	return mask == nil || mask[i]
}
