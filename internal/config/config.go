package config

import (
	"fmt"

	"github.com/MeKo-Tech/thresh/internal/threshold"
)

// Config represents the complete configuration for the thresh application.
// It includes settings for all commands (image, batch, serve) and supports
// loading from configuration files, environment variables, and command-line
// flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Thresholding engine configuration
	Threshold ThresholdConfig `mapstructure:"threshold" yaml:"threshold" json:"threshold"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// ThresholdConfig mirrors threshold.Params with string-typed enums so it can
// be expressed in YAML, environment variables and flags.
type ThresholdConfig struct {
	Strategy           string  `mapstructure:"strategy" yaml:"strategy" json:"strategy"`
	Method             string  `mapstructure:"method" yaml:"method" json:"method"`
	Source             string  `mapstructure:"source" yaml:"source" json:"source"`
	SuppliedThreshold  float64 `mapstructure:"supplied_threshold" yaml:"supplied_threshold" json:"supplied_threshold"`
	OtsuThreeClass     bool    `mapstructure:"otsu_three_class" yaml:"otsu_three_class" json:"otsu_three_class"`
	OtsuMiddleIsFG     bool    `mapstructure:"otsu_middle_is_foreground" yaml:"otsu_middle_is_foreground" json:"otsu_middle_is_foreground"`
	SmoothingScale     float64 `mapstructure:"smoothing_scale" yaml:"smoothing_scale" json:"smoothing_scale"`
	LogTransform       bool    `mapstructure:"log_transform" yaml:"log_transform" json:"log_transform"`
	CorrectionFactor   float64 `mapstructure:"correction_factor" yaml:"correction_factor" json:"correction_factor"`
	MinThreshold       float64 `mapstructure:"min_threshold" yaml:"min_threshold" json:"min_threshold"`
	MaxThreshold       float64 `mapstructure:"max_threshold" yaml:"max_threshold" json:"max_threshold"`
	WindowSize         int     `mapstructure:"window_size" yaml:"window_size" json:"window_size"`
	Volumetric         bool    `mapstructure:"volumetric" yaml:"volumetric" json:"volumetric"`
	Automatic          bool    `mapstructure:"automatic" yaml:"automatic" json:"automatic"`
	LowerOutlierFrac   float64 `mapstructure:"lower_outlier_fraction" yaml:"lower_outlier_fraction" json:"lower_outlier_fraction"`
	UpperOutlierFrac   float64 `mapstructure:"upper_outlier_fraction" yaml:"upper_outlier_fraction" json:"upper_outlier_fraction"`
	Averaging          string  `mapstructure:"averaging" yaml:"averaging" json:"averaging"`
	Variance           string  `mapstructure:"variance" yaml:"variance" json:"variance"`
	NumberOfDeviations float64 `mapstructure:"number_of_deviations" yaml:"number_of_deviations" json:"number_of_deviations"`
}

// OutputConfig contains output settings.
type OutputConfig struct {
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	File        string `mapstructure:"file" yaml:"file" json:"file"`
	BinaryDir   string `mapstructure:"binary_dir" yaml:"binary_dir" json:"binary_dir"`
	SaveSurface bool   `mapstructure:"save_surface" yaml:"save_surface" json:"save_surface"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Recursive       bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// DefaultConfig returns the configuration with all defaults applied.
func DefaultConfig() Config {
	p := threshold.DefaultParams()
	return Config{
		LogLevel: "info",
		Threshold: ThresholdConfig{
			Strategy:           p.Strategy.String(),
			Method:             p.Method.String(),
			Source:             p.Source.String(),
			SuppliedThreshold:  0.5,
			SmoothingScale:     p.SmoothingScale,
			CorrectionFactor:   p.CorrectionFactor,
			MinThreshold:       p.MinThreshold,
			MaxThreshold:       p.MaxThreshold,
			WindowSize:         p.WindowSize,
			LowerOutlierFrac:   p.Robust.LowerOutlierFraction,
			UpperOutlierFrac:   p.Robust.UpperOutlierFraction,
			Averaging:          p.Robust.Averaging.String(),
			Variance:           "sd",
			NumberOfDeviations: p.Robust.NumberOfDeviations,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
		},
		Batch: BatchConfig{
			Workers:         0, // 0 means NumCPU
			ContinueOnError: true,
			OutputDir:       "out",
		},
	}
}

// ToParams resolves the string-typed engine settings into threshold.Params.
// Unknown enum names surface as the engine's ConfigError. The method names
// "manual" and "measurement" select the corresponding threshold source
// instead of an estimator, mirroring how the interactive module lists them
// alongside the statistical methods.
func (tc ThresholdConfig) ToParams() (threshold.Params, error) {
	p := threshold.DefaultParams()

	methodName := tc.Method
	sourceName := tc.Source
	switch methodName {
	case "manual":
		sourceName, methodName = "manual", "li"
	case "measurement":
		sourceName, methodName = "measurement", "li"
	}

	strategy, err := threshold.ParseStrategy(tc.Strategy)
	if err != nil {
		return p, err
	}
	method, err := threshold.ParseMethod(methodName)
	if err != nil {
		return p, err
	}
	source, err := threshold.ParseSource(sourceName)
	if err != nil {
		return p, err
	}
	averaging, err := threshold.ParseAveraging(tc.Averaging)
	if err != nil {
		return p, err
	}
	variance, err := threshold.ParseVariance(tc.Variance)
	if err != nil {
		return p, err
	}

	p.Strategy = strategy
	p.Method = method
	p.Source = source
	p.SuppliedThreshold = tc.SuppliedThreshold
	p.Otsu = threshold.OtsuVariant{
		ThreeClass:         tc.OtsuThreeClass || methodName == "multiotsu",
		MiddleIsForeground: tc.OtsuMiddleIsFG,
	}
	p.SmoothingScale = tc.SmoothingScale
	p.LogTransform = tc.LogTransform
	p.CorrectionFactor = tc.CorrectionFactor
	p.MinThreshold = tc.MinThreshold
	p.MaxThreshold = tc.MaxThreshold
	p.WindowSize = tc.WindowSize
	p.Volumetric = tc.Volumetric
	p.Automatic = tc.Automatic
	p.Robust = threshold.RobustParams{
		LowerOutlierFraction: tc.LowerOutlierFrac,
		UpperOutlierFraction: tc.UpperOutlierFrac,
		Averaging:            averaging,
		Variance:             variance,
		NumberOfDeviations:   tc.NumberOfDeviations,
	}
	return p, p.Validate()
}

// Validate checks the full configuration.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if _, err := c.Threshold.ToParams(); err != nil {
		return fmt.Errorf("threshold settings: %w", err)
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output format %q", c.Output.Format)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload %d MB must be positive", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("server timeout %d s must be positive", c.Server.TimeoutSec)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch workers %d must not be negative", c.Batch.Workers)
	}
	return nil
}
