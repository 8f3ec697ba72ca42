package testutil

import (
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBimodalSplitsAtMidline(t *testing.T) {
	img := Bimodal(10, 4, 0.2, 0.8)
	assert.Equal(t, 0.2, img.At(0, 0, 4))
	assert.Equal(t, 0.8, img.At(0, 0, 5))
}

func TestNoisyBimodalIsReproducible(t *testing.T) {
	a := NoisyBimodal(16, 16, 0.2, 0.8, 0.05, 7)
	b := NoisyBimodal(16, 16, 0.2, 0.8, 0.05, 7)
	assert.Equal(t, a.Pix, b.Pix)

	for _, v := range a.Pix {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestGradientEndpoints(t *testing.T) {
	img := Gradient(11, 3, 0.1, 0.9)
	assert.InDelta(t, 0.1, img.At(0, 1, 0), 1e-12)
	assert.InDelta(t, 0.9, img.At(0, 1, 10), 1e-12)
	assert.InDelta(t, 0.5, img.At(0, 1, 5), 1e-12)
}

func TestDiscGeometry(t *testing.T) {
	img := Disc(21, 21, 5, 0.1, 0.9)
	assert.Equal(t, 0.9, img.At(0, 10, 10), "center is foreground")
	assert.Equal(t, 0.1, img.At(0, 0, 0), "corner is background")
}

func TestBorderMask(t *testing.T) {
	mask := BorderMask(6, 6, 1)
	assert.False(t, mask[0])
	assert.False(t, mask[5])
	assert.True(t, mask[1*6+1])
	assert.True(t, mask[4*6+4])
	assert.False(t, mask[5*6+5])
}

func TestSavePNGRoundTrip(t *testing.T) {
	dir := CreateTempDir(t)
	img := Disc(20, 20, 6, 0.1, 0.9)

	path := SavePNG(t, dir, "disc.png", img)
	require.True(t, FileExists(path))

	loaded, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.Bounds().Dx())
	assert.Equal(t, 20, loaded.Bounds().Dy())
}

func TestGetProjectRootFindsGoMod(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(root+"/go.mod"))
}
