package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("a.png"))
	assert.True(t, IsSupportedImage("A.JPG"))
	assert.True(t, IsSupportedImage("scan.bmp"))
	assert.False(t, IsSupportedImage("doc.pdf"))
	assert.False(t, IsSupportedImage("noext"))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "binary.png")

	binary := []bool{true, false, true, false, true, false}
	require.NoError(t, SaveBinaryPNG(binary, 3, 2, path))

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 3, meta.Width)
	assert.Equal(t, 2, meta.Height)
	assert.Positive(t, meta.SizeBytes)

	fimg, err := ToFloatImage(img)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fimg.Pix[0])
	assert.Equal(t, 0.0, fimg.Pix[1])
}

func TestSaveSurfacePNGBroadcastsScalar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "surface.png")

	require.NoError(t, SaveSurfacePNG([]float64{0.5}, 2, 2, path))

	img, _, err := LoadImage(path)
	require.NoError(t, err)
	fimg, err := ToFloatImage(img)
	require.NoError(t, err)
	for _, v := range fimg.Pix {
		assert.InDelta(t, 0.5, v, 0.01)
	}
}

func TestLoadImageErrors(t *testing.T) {
	_, _, err := LoadImage("")
	var procErr *ImageProcessingError
	require.ErrorAs(t, err, &procErr)

	_, _, err = LoadImage("missing.png")
	require.ErrorAs(t, err, &procErr)

	// A supported extension with garbage content fails at decode.
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "decode", procErr.Operation)
}
