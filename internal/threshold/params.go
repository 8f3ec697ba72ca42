package threshold

import (
	"errors"
	"fmt"
)

// Strategy selects between a single global threshold and a spatially
// adaptive, per-pixel threshold.
type Strategy int

const (
	StrategyGlobal Strategy = iota
	StrategyAdaptive
)

func (s Strategy) String() string {
	switch s {
	case StrategyGlobal:
		return "global"
	case StrategyAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Method identifies a statistical threshold estimator.
type Method int

const (
	MethodLi Method = iota
	MethodOtsu
	MethodRobustBackground
	MethodSauvola
)

func (m Method) String() string {
	switch m {
	case MethodLi:
		return "li"
	case MethodOtsu:
		return "otsu"
	case MethodRobustBackground:
		return "robust_background"
	case MethodSauvola:
		return "sauvola"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod maps a method name to its Method value. Unknown names are a
// configuration error, never a silent fallback.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "li", "minimum_cross_entropy":
		return MethodLi, nil
	case "otsu":
		return MethodOtsu, nil
	case "multiotsu":
		return MethodOtsu, nil
	case "robust_background":
		return MethodRobustBackground, nil
	case "sauvola":
		return MethodSauvola, nil
	default:
		return 0, &ConfigError{Param: "method", Err: fmt.Errorf("unknown method %q", name)}
	}
}

// ParseStrategy maps a strategy name to its Strategy value.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "global":
		return StrategyGlobal, nil
	case "adaptive":
		return StrategyAdaptive, nil
	default:
		return 0, &ConfigError{Param: "strategy", Err: fmt.Errorf("unknown strategy %q", name)}
	}
}

// ParseAveraging maps an averaging name to its Averaging value.
func ParseAveraging(name string) (Averaging, error) {
	switch name {
	case "mean":
		return AveragingMean, nil
	case "median":
		return AveragingMedian, nil
	case "mode":
		return AveragingMode, nil
	default:
		return 0, &ConfigError{Param: "averaging", Err: fmt.Errorf("unknown averaging %q", name)}
	}
}

// ParseVariance maps a variance name to its Variance value.
func ParseVariance(name string) (Variance, error) {
	switch name {
	case "standard_deviation", "sd":
		return VarianceSD, nil
	case "median_absolute_deviation", "mad":
		return VarianceMAD, nil
	default:
		return 0, &ConfigError{Param: "variance", Err: fmt.Errorf("unknown variance %q", name)}
	}
}

// ParseSource maps a source name to its Source value.
func ParseSource(name string) (Source, error) {
	switch name {
	case "estimated":
		return SourceEstimated, nil
	case "manual":
		return SourceManual, nil
	case "measurement":
		return SourceMeasurement, nil
	default:
		return 0, &ConfigError{Param: "source", Err: fmt.Errorf("unknown source %q", name)}
	}
}

// OtsuVariant selects between the standard two-class Otsu split and the
// three-class variant, which additionally decides where the middle intensity
// class ends up.
type OtsuVariant struct {
	ThreeClass         bool
	MiddleIsForeground bool
}

// Averaging selects the center statistic for Robust Background.
type Averaging int

const (
	AveragingMean Averaging = iota
	AveragingMedian
	AveragingMode
)

func (a Averaging) String() string {
	switch a {
	case AveragingMean:
		return "mean"
	case AveragingMedian:
		return "median"
	case AveragingMode:
		return "mode"
	default:
		return fmt.Sprintf("averaging(%d)", int(a))
	}
}

// Variance selects the spread statistic for Robust Background.
type Variance int

const (
	VarianceSD Variance = iota
	VarianceMAD
)

func (v Variance) String() string {
	switch v {
	case VarianceSD:
		return "standard_deviation"
	case VarianceMAD:
		return "median_absolute_deviation"
	default:
		return fmt.Sprintf("variance(%d)", int(v))
	}
}

// Source distinguishes estimated thresholds from values supplied directly by
// the caller. Manual values are used exactly as entered; measurement values
// still pass through correction-factor scaling and range clamping.
type Source int

const (
	SourceEstimated Source = iota
	SourceManual
	SourceMeasurement
)

func (s Source) String() string {
	switch s {
	case SourceEstimated:
		return "estimated"
	case SourceManual:
		return "manual"
	case SourceMeasurement:
		return "measurement"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Robust background trimmed-statistics options.
type RobustParams struct {
	LowerOutlierFraction float64
	UpperOutlierFraction float64
	Averaging            Averaging
	Variance             Variance
	NumberOfDeviations   float64
}

// Params is the immutable configuration bundle for a threshold call.
type Params struct {
	Strategy Strategy
	Method   Method
	Source   Source
	Otsu     OtsuVariant
	Robust   RobustParams

	// SuppliedThreshold carries the threshold for SourceManual and
	// SourceMeasurement; it is ignored for SourceEstimated.
	SuppliedThreshold float64

	SmoothingScale   float64
	LogTransform     bool
	CorrectionFactor float64
	MinThreshold     float64
	MaxThreshold     float64
	WindowSize       int
	Volumetric       bool

	// Automatic forces the historical defaults: smoothing with sigma 1,
	// correction factor 1 and the full [0,1] range.
	Automatic bool
}

// DefaultParams returns the defaults of the interactive module: global
// minimum cross-entropy with no smoothing and the full threshold range.
func DefaultParams() Params {
	return Params{
		Strategy:         StrategyGlobal,
		Method:           MethodLi,
		Source:           SourceEstimated,
		SmoothingScale:   0,
		CorrectionFactor: 1,
		MinThreshold:     0,
		MaxThreshold:     1,
		WindowSize:       50,
		Robust: RobustParams{
			LowerOutlierFraction: 0.05,
			UpperOutlierFraction: 0.05,
			Averaging:            AveragingMean,
			Variance:             VarianceSD,
			NumberOfDeviations:   2,
		},
	}
}

// Validate checks the parameter bundle before any computation.
func (p Params) Validate() error {
	if p.MinThreshold < 0 || p.MaxThreshold > 1 || p.MinThreshold > p.MaxThreshold {
		return &ConfigError{
			Param: "threshold_range",
			Err:   fmt.Errorf("range [%g, %g] must satisfy 0 <= min <= max <= 1", p.MinThreshold, p.MaxThreshold),
		}
	}
	if p.SmoothingScale < 0 {
		return &ConfigError{
			Param: "smoothing_scale",
			Err:   fmt.Errorf("smoothing scale %g must not be negative", p.SmoothingScale),
		}
	}
	if p.Strategy == StrategyAdaptive && p.WindowSize <= 0 {
		return &ConfigError{
			Param: "window_size",
			Err:   fmt.Errorf("window size %d must be positive", p.WindowSize),
		}
	}
	if p.Strategy == StrategyGlobal && p.Method == MethodSauvola {
		return &ConfigError{
			Param: "method",
			Err:   errors.New("sauvola has no global form"),
		}
	}
	if p.Source != SourceEstimated && (p.SuppliedThreshold < 0 || p.SuppliedThreshold > 1) {
		return &ConfigError{
			Param: "supplied_threshold",
			Err:   fmt.Errorf("%s threshold %g must be in [0, 1]", p.Source, p.SuppliedThreshold),
		}
	}
	if p.Method == MethodRobustBackground {
		if err := p.Robust.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r RobustParams) validate() error {
	if r.LowerOutlierFraction < 0 || r.LowerOutlierFraction > 1 {
		return &ConfigError{
			Param: "lower_outlier_fraction",
			Err:   fmt.Errorf("fraction %g must be in [0, 1]", r.LowerOutlierFraction),
		}
	}
	if r.UpperOutlierFraction < 0 || r.UpperOutlierFraction > 1 {
		return &ConfigError{
			Param: "upper_outlier_fraction",
			Err:   fmt.Errorf("fraction %g must be in [0, 1]", r.UpperOutlierFraction),
		}
	}
	if r.LowerOutlierFraction+r.UpperOutlierFraction >= 1 {
		return &ConfigError{
			Param: "outlier_fractions",
			Err: fmt.Errorf("lower (%g) and upper (%g) outlier fractions must sum to less than one",
				r.LowerOutlierFraction, r.UpperOutlierFraction),
		}
	}
	return nil
}

// logApplies reports whether the log transform is honored for the configured
// method. The transform is only meaningful for histogram-shape methods; the
// module never offers it for Robust Background or Sauvola.
func (p Params) logApplies() bool {
	return p.LogTransform && (p.Method == MethodLi || p.Method == MethodOtsu)
}
