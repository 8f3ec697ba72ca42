package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/thresh/internal/config"
)

// newServerConfigForTest returns a server config with default engine
// parameters and permissive limits.
func newServerConfigForTest() Config {
	cfg := config.DefaultConfig()
	return Config{
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		TimeoutSec:  5,
		Threshold:   cfg.Threshold,
	}
}

// newTestServer builds a server with default engine parameters.
func newTestServer() (*Server, error) {
	return NewServer(newServerConfigForTest())
}

// createBimodalImage creates a grayscale image whose left half is dark and
// right half is bright, giving a clean two-class histogram.
func createBimodalImage(width, height int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := uint8(51) // ~0.2
			if x >= width/2 {
				v = 204 // ~0.8
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// encodeImageToPNG encodes an image to PNG bytes.
func encodeImageToPNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	return buf.Bytes(), err
}

// createMultipartFormRequest creates a multipart form request with an image.
func createMultipartFormRequest(
	imageData []byte,
	filename string,
	extraFields map[string]string,
) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// Add image file
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	_, err = part.Write(imageData)
	if err != nil {
		return nil, err
	}

	// Add extra fields
	for key, value := range extraFields {
		err = writer.WriteField(key, value)
		if err != nil {
			return nil, err
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/threshold", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req, nil
}
