package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.healthHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	srv.healthHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestThresholdHandlerJSON(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	data, err := encodeImageToPNG(createBimodalImage(64, 32))
	require.NoError(t, err)

	req, err := createMultipartFormRequest(data, "test.png", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.thresholdImageHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ThresholdResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 64, resp.Result.Width)
	assert.Equal(t, 32, resp.Result.Height)

	// The two modes sit at ~0.2 and ~0.8; any sane split lands between them.
	final := resp.Result.Measurements.FinalThreshold
	assert.Greater(t, final, 0.2)
	assert.Less(t, final, 0.8)
}

func TestThresholdHandlerPNGFormat(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	data, err := encodeImageToPNG(createBimodalImage(64, 32))
	require.NoError(t, err)

	req, err := createMultipartFormRequest(data, "test.png", map[string]string{"format": "png"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.thresholdImageHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	out, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 32), out.Bounds())

	gray, ok := out.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(63, 0).Y)
}

func TestThresholdHandlerNoFile(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "/threshold", &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")

	rec := httptest.NewRecorder()
	srv.thresholdImageHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ThresholdResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestThresholdHandlerInvalidImage(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	req, err := createMultipartFormRequest([]byte("not an image"), "test.png", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.thresholdImageHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ThresholdResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "Invalid image format")
}

func TestThresholdHandlerMethodNotAllowed(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/threshold", nil)
	rec := httptest.NewRecorder()
	srv.thresholdImageHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestThresholdHandlerParameterOverrides(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	data, err := encodeImageToPNG(createBimodalImage(64, 32))
	require.NoError(t, err)

	req, err := createMultipartFormRequest(data, "test.png", map[string]string{
		"method":     "otsu",
		"correction": "1.0",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.thresholdImageHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ThresholdResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	// Otsu splits the 0.2/0.8 histogram at the midpoint.
	assert.InDelta(t, 0.5, resp.Result.Measurements.FinalThreshold, 0.05)
}

func TestThresholdHandlerBadOverride(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	data, err := encodeImageToPNG(createBimodalImage(16, 16))
	require.NoError(t, err)

	for name, fields := range map[string]map[string]string{
		"unknown method":   {"method": "bogus"},
		"bad float":        {"correction": "abc"},
		"inverted range":   {"min": "0.9", "max": "0.1"},
		"bad window value": {"window": "1.5"},
	} {
		req, err := createMultipartFormRequest(data, "test.png", fields)
		require.NoError(t, err, name)

		rec := httptest.NewRecorder()
		srv.thresholdImageHandler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestThresholdHandlerFileTooLarge(t *testing.T) {
	cfg := newServerConfigForTest()
	cfg.MaxUploadMB = 1
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	// 2 MiB of noise fails the size check before decoding.
	big := bytes.Repeat([]byte{0xAB}, 2*1024*1024)
	req, err := createMultipartFormRequest(big, "big.png", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.thresholdImageHandler(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
