package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/thresh/internal/overlap"
	"github.com/MeKo-Tech/thresh/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBinaryPNG writes a row-major boolean raster as a PNG for comparison.
func writeBinaryPNG(t *testing.T, dir, name string, binary []bool, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, utils.SaveBinaryPNG(binary, width, height, path))
	return path
}

func TestCompareCommandPerfectMatch(t *testing.T) {
	dir := t.TempDir()
	raster := make([]bool, 8*8)
	for i := 20; i < 44; i++ {
		raster[i] = true
	}
	truth := writeBinaryPNG(t, dir, "truth.png", raster, 8, 8)
	test := writeBinaryPNG(t, dir, "test.png", raster, 8, 8)

	out, err := runCommand(t, "compare", truth, test, "--format", "json")
	require.NoError(t, err)

	var score overlap.Score
	require.NoError(t, json.Unmarshal([]byte(out), &score))
	assert.Equal(t, 24, score.TruePositives)
	assert.Zero(t, score.FalsePositives)
	assert.Zero(t, score.FalseNegatives)
	assert.InDelta(t, 1.0, score.FFactor, 1e-9)
	assert.InDelta(t, 1.0, score.Jaccard, 1e-9)
	assert.InDelta(t, 0.0, score.EarthMoversDistance, 1e-9)
}

func TestCompareCommandPartialOverlap(t *testing.T) {
	dir := t.TempDir()
	truthRaster := make([]bool, 8*8)
	testRaster := make([]bool, 8*8)
	for i := 0; i < 16; i++ {
		truthRaster[i] = true
	}
	for i := 8; i < 24; i++ {
		testRaster[i] = true
	}
	truth := writeBinaryPNG(t, dir, "truth.png", truthRaster, 8, 8)
	test := writeBinaryPNG(t, dir, "test.png", testRaster, 8, 8)

	out, err := runCommand(t, "compare", truth, test, "--format", "json")
	require.NoError(t, err)

	var score overlap.Score
	require.NoError(t, json.Unmarshal([]byte(out), &score))
	assert.Equal(t, 8, score.TruePositives)
	assert.Equal(t, 8, score.FalsePositives)
	assert.Equal(t, 8, score.FalseNegatives)
	assert.InDelta(t, 0.5, score.Recall, 1e-9)
	assert.InDelta(t, 0.5, score.Precision, 1e-9)
}

func TestCompareCommandTextOutput(t *testing.T) {
	dir := t.TempDir()
	raster := make([]bool, 4*4)
	raster[5] = true
	truth := writeBinaryPNG(t, dir, "truth.png", raster, 4, 4)

	out, err := runCommand(t, "compare", truth, truth, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "f-factor:")
	assert.Contains(t, out, "earth mover's distance:")
}

func TestCompareCommandDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	truth := writeBinaryPNG(t, dir, "truth.png", make([]bool, 4*4), 4, 4)
	test := writeBinaryPNG(t, dir, "test.png", make([]bool, 8*8), 8, 8)

	_, err := runCommand(t, "compare", truth, test)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestCompareCommandBadDecimation(t *testing.T) {
	dir := t.TempDir()
	truth := writeBinaryPNG(t, dir, "truth.png", make([]bool, 4*4), 4, 4)

	_, err := runCommand(t, "compare", truth, truth, "--decimation", "nonsense")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown decimation")
}
