// Package threshold implements a pure, stateless image thresholding engine:
// given a grayscale 2D or 3D intensity image and an optional validity mask,
// it computes a binary foreground/background segmentation using one of
// several statistical estimators, either as a single global threshold or as
// a spatially-varying adaptive threshold.
//
// The engine performs no I/O, holds no state across calls and never mutates
// its inputs, so it is safe to invoke concurrently on independent images.
package threshold

import (
	"fmt"
)

// Result is the outcome of one threshold invocation. FinalThreshold and
// OrigThreshold hold a single element for the global strategy and one
// element per pixel for the adaptive strategy. OrigThreshold is the raw
// estimator output before correction-factor scaling and range clamping.
// GuideThreshold is only meaningful when HasGuide is set (adaptive strategy).
type Result struct {
	FinalThreshold []float64
	OrigThreshold  []float64
	GuideThreshold float64
	HasGuide       bool
	Binary         []bool
	SigmaUsed      float64
}

// FinalMean returns the mean of the final threshold, the value persisted as
// a per-image measurement when the threshold is array-valued.
func (r Result) FinalMean() float64 { return meanOf(r.FinalThreshold) }

// OrigMean returns the mean of the uncorrected threshold.
func (r Result) OrigMean() float64 { return meanOf(r.OrigThreshold) }

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Threshold runs the full pipeline: preprocessing, estimation (or a supplied
// manual/measurement value), postprocessing and binarization. The returned
// buffers are freshly allocated; image and mask are only read.
func Threshold(img Image, mask []bool, p Params) (Result, error) {
	if p.Automatic {
		// Automatic mode pins the historical defaults used when another
		// module requests a threshold without exposing the settings.
		p.SmoothingScale = automaticSmoothingScale
		p.CorrectionFactor = 1
		p.MinThreshold = 0
		p.MaxThreshold = 1
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if err := img.validate(); err != nil {
		return Result{}, err
	}
	if err := img.checkMask(mask); err != nil {
		return Result{}, err
	}

	switch p.Source {
	case SourceManual:
		return suppliedThreshold(img, mask, p, false)
	case SourceMeasurement:
		return suppliedThreshold(img, mask, p, true)
	case SourceEstimated:
		// fall through to estimation
	default:
		return Result{}, &ConfigError{Param: "source", Err: fmt.Errorf("unknown threshold source %d", int(p.Source))}
	}

	linear, sigma := smoothAndTransform(img, mask, p.SmoothingScale, false)
	working := linear
	logT := p.logApplies()
	if logT {
		working = make([]float64, len(linear))
		for i, v := range linear {
			working[i] = forwardLog(v)
		}
	}

	if p.Strategy == StrategyAdaptive {
		return adaptiveThreshold(img, mask, p, linear, working, logT, sigma)
	}
	return globalThreshold(img, mask, p, linear, working, logT, sigma)
}

// ApplyThreshold smooths the image and binarizes it against a pre-computed
// threshold, which may be a single scalar or a per-pixel array. No estimator
// runs; this is the path for manual and measurement-origin thresholds.
func ApplyThreshold(img Image, thresh []float64, mask []bool, smoothingScale float64) ([]bool, float64, error) {
	if err := img.validate(); err != nil {
		return nil, 0, err
	}
	if err := img.checkMask(mask); err != nil {
		return nil, 0, err
	}
	if len(thresh) != 1 && len(thresh) != img.Len() {
		return nil, 0, &ShapeError{
			Stage: "apply",
			Err:   fmt.Errorf("threshold length %d is neither scalar nor congruent to image (%d)", len(thresh), img.Len()),
		}
	}
	working, sigma := smoothAndTransform(img, mask, smoothingScale, false)
	return binarize(working, mask, thresh), sigma, nil
}

// globalThreshold estimates a single scalar over the whole masked image.
func globalThreshold(img Image, mask []bool, p Params, linear, working []float64, logT bool, sigma float64) (Result, error) {
	values := gatherValid(working, mask)
	orig, err := estimateGlobal(values, p, "global")
	if err != nil {
		return Result{}, err
	}
	if logT {
		orig = inverseLog(orig)
	}
	final := clamp(orig*p.CorrectionFactor, p.MinThreshold, p.MaxThreshold)
	return Result{
		FinalThreshold: []float64{final},
		OrigThreshold:  []float64{orig},
		Binary:         binarize(linear, mask, []float64{final}),
		SigmaUsed:      sigma,
	}, nil
}

// adaptiveThreshold computes the guide threshold, a per-pixel surface (block
// interpolation or Sauvola), clamps the surface to the guide corridor and
// finalizes. Volumetric images are processed plane by plane with in-plane
// windows; there is no blending across the depth axis.
func adaptiveThreshold(img Image, mask []bool, p Params, linear, working []float64, logT bool, sigma float64) (Result, error) {
	guideParams := p
	if p.Method == MethodSauvola {
		// Sauvola has no global form; Li guides it.
		guideParams.Method = MethodLi
	}
	guide, err := estimateGlobal(gatherValid(working, mask), guideParams, "guide")
	if err != nil {
		return Result{}, err
	}

	planeLen := img.Width * img.Height
	surface := make([]float64, img.Len())
	for pl := range img.Planes {
		lo := pl * planeLen
		plane := working[lo : lo+planeLen]
		var planeMask []bool
		if mask != nil {
			planeMask = mask[lo : lo+planeLen]
		}

		var planeSurface []float64
		if p.Method == MethodSauvola {
			planeSurface = sauvolaSurface(plane, planeMask, img.Width, img.Height, p.WindowSize)
		} else {
			planeSurface, err = adaptiveSurface(plane, planeMask, img.Width, img.Height, p, guide)
			if err != nil {
				return Result{}, err
			}
		}
		copy(surface[lo:lo+planeLen], planeSurface)
	}

	clampToGuide(surface, guide)

	if logT {
		guide = inverseLog(guide)
		for i, v := range surface {
			surface[i] = inverseLog(v)
		}
	}

	final := make([]float64, len(surface))
	for i, v := range surface {
		final[i] = clamp(v*p.CorrectionFactor, p.MinThreshold, p.MaxThreshold)
	}

	return Result{
		FinalThreshold: final,
		OrigThreshold:  surface,
		GuideThreshold: guide,
		HasGuide:       true,
		Binary:         binarize(linear, mask, final),
		SigmaUsed:      sigma,
	}, nil
}

// suppliedThreshold handles the manual and measurement sources, which bypass
// all estimators. Measurement values still pass through correction-factor
// scaling and range clamping; manual values are used exactly as entered.
func suppliedThreshold(img Image, mask []bool, p Params, applyCorrection bool) (Result, error) {
	orig := p.SuppliedThreshold
	final := orig
	if applyCorrection {
		final = clamp(orig*p.CorrectionFactor, p.MinThreshold, p.MaxThreshold)
	}
	binary, sigma, err := ApplyThreshold(img, []float64{final}, mask, p.SmoothingScale)
	if err != nil {
		return Result{}, err
	}
	return Result{
		FinalThreshold: []float64{final},
		OrigThreshold:  []float64{orig},
		Binary:         binary,
		SigmaUsed:      sigma,
	}, nil
}

// binarize classifies every pixel: foreground where the working intensity
// reaches the threshold and the pixel is valid. Masked-out pixels are always
// background.
func binarize(working []float64, mask []bool, thresh []float64) []bool {
	binary := make([]bool, len(working))
	if len(thresh) == 1 {
		t := thresh[0]
		for i, v := range working {
			binary[i] = maskAt(mask, i) && v >= t
		}
		return binary
	}
	for i, v := range working {
		binary[i] = maskAt(mask, i) && v >= thresh[i]
	}
	return binary
}

// gatherValid collects the unmasked samples of buf into a fresh slice.
func gatherValid(buf []float64, mask []bool) []float64 {
	if mask == nil {
		out := make([]float64, len(buf))
		copy(out, buf)
		return out
	}
	out := make([]float64, 0, len(buf))
	for i, v := range buf {
		if mask[i] {
			out = append(out, v)
		}
	}
	return out
}
