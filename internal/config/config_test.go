package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/thresh/internal/threshold"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfigToParamsMatchesEngineDefaults(t *testing.T) {
	cfg := DefaultConfig()
	p, err := cfg.Threshold.ToParams()
	require.NoError(t, err)

	want := threshold.DefaultParams()
	assert.Equal(t, want.Strategy, p.Strategy)
	assert.Equal(t, want.Method, p.Method)
	assert.Equal(t, want.Source, p.Source)
	assert.Equal(t, want.WindowSize, p.WindowSize)
	assert.Equal(t, want.Robust, p.Robust)
}

func TestToParamsResolvesEnums(t *testing.T) {
	tc := DefaultConfig().Threshold
	tc.Strategy = "adaptive"
	tc.Method = "otsu"
	tc.Averaging = "median"
	tc.Variance = "mad"

	p, err := tc.ToParams()
	require.NoError(t, err)
	assert.Equal(t, threshold.StrategyAdaptive, p.Strategy)
	assert.Equal(t, threshold.MethodOtsu, p.Method)
	assert.Equal(t, threshold.AveragingMedian, p.Robust.Averaging)
	assert.Equal(t, threshold.VarianceMAD, p.Robust.Variance)
}

func TestToParamsMultiOtsuAlias(t *testing.T) {
	tc := DefaultConfig().Threshold
	tc.Method = "multiotsu"

	p, err := tc.ToParams()
	require.NoError(t, err)
	assert.Equal(t, threshold.MethodOtsu, p.Method)
	assert.True(t, p.Otsu.ThreeClass)
}

func TestToParamsManualAndMeasurementMethods(t *testing.T) {
	tc := DefaultConfig().Threshold
	tc.Method = "manual"
	tc.SuppliedThreshold = 0.42

	p, err := tc.ToParams()
	require.NoError(t, err)
	assert.Equal(t, threshold.SourceManual, p.Source)
	assert.InDelta(t, 0.42, p.SuppliedThreshold, 1e-12)

	tc.Method = "measurement"
	p, err = tc.ToParams()
	require.NoError(t, err)
	assert.Equal(t, threshold.SourceMeasurement, p.Source)
}

func TestToParamsRejectsUnknownNames(t *testing.T) {
	for _, mutate := range []func(*ThresholdConfig){
		func(tc *ThresholdConfig) { tc.Strategy = "magic" },
		func(tc *ThresholdConfig) { tc.Method = "banana" },
		func(tc *ThresholdConfig) { tc.Source = "psychic" },
		func(tc *ThresholdConfig) { tc.Averaging = "midrange" },
		func(tc *ThresholdConfig) { tc.Variance = "iqr" },
	} {
		tc := DefaultConfig().Threshold
		mutate(&tc)
		_, err := tc.ToParams()
		var configErr *threshold.ConfigError
		require.ErrorAs(t, err, &configErr)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"output format", func(c *Config) { c.Output.Format = "xml" }},
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = -1 }},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }},
		{"workers", func(c *Config) { c.Batch.Workers = -2 }},
		{"range", func(c *Config) { c.Threshold.MinThreshold = 0.9; c.Threshold.MaxThreshold = 0.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold.Strategy = "adaptive"
	cfg.Threshold.WindowSize = 64
	cfg.Server.Port = 9090
	cfg.Batch.Recursive = true

	data, err := yaml.Marshal(&cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, cfg, decoded)
}
