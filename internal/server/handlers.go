package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/thresh/internal/pipeline"
	"github.com/MeKo-Tech/thresh/internal/utils"
	_ "golang.org/x/image/bmp"
)

const formatPNG = "png"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// thresholdImageHandler processes image thresholding requests.
func (s *Server) thresholdImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Set content length limit
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	// Parse multipart form
	err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	// Get uploaded file
	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	// Validate file size
	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	// Read file content
	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}

	// Decode image
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	// Resolve the pipeline for this request: per-request form values override
	// the server's configured engine parameters.
	pl, err := s.pipelineForRequest(r)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid parameters: %v", err), http.StatusBadRequest)
		return
	}

	start := time.Now()
	res, err := pl.ProcessImage(r.Context(), img)
	duration := time.Since(start)
	if err != nil {
		thresholdRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Thresholding failed: %v", err), http.StatusInternalServerError)
		return
	}

	thresholdRequestsTotal.WithLabelValues("image", "success").Inc()
	thresholdDuration.WithLabelValues("image").Observe(duration.Seconds())

	// Determine output format: default json; allow 'format' in query or form
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == formatPNG {
		s.writeBinaryPNG(w, res)
		return
	}

	result := &ThresholdResult{
		Width:        res.Width,
		Height:       res.Height,
		Measurements: res.Measurements,
	}
	result.Processing.TotalTimeMs = duration.Milliseconds()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ThresholdResponse{Success: true, Result: result}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding threshold response: %v\n", err)
	}
}

// writeBinaryPNG writes the segmentation as a grayscale PNG.
func (s *Server) writeBinaryPNG(w http.ResponseWriter, res *pipeline.FileResult) {
	gray, err := utils.BinaryToGray(res.Binary, res.Width, res.Height)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Rendering failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, gray)
}

// pipelineForRequest returns the server's default pipeline, or a fresh one
// when the request carries engine parameter overrides.
func (s *Server) pipelineForRequest(r *http.Request) (*pipeline.Pipeline, error) {
	return s.pipelineFromValues(r.FormValue)
}

// pipelineFromValues applies per-request parameter overrides, looked up by
// key, on top of the server's configured defaults. Empty values leave the
// default untouched.
func (s *Server) pipelineFromValues(get func(string) string) (*pipeline.Pipeline, error) {
	cfg := s.baseConfig
	overridden := false

	setString := func(dst *string, key string) {
		if v := get(key); v != "" {
			*dst = v
			overridden = true
		}
	}
	setFloat := func(dst *float64, key string) error {
		v := get(key)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
		overridden = true
		return nil
	}
	setBool := func(dst *bool, key string) error {
		v := get(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		overridden = true
		return nil
	}

	setString(&cfg.Strategy, "strategy")
	setString(&cfg.Method, "method")
	if err := setFloat(&cfg.SuppliedThreshold, "threshold"); err != nil {
		return nil, err
	}
	if err := setFloat(&cfg.SmoothingScale, "smoothing"); err != nil {
		return nil, err
	}
	if err := setFloat(&cfg.CorrectionFactor, "correction"); err != nil {
		return nil, err
	}
	if err := setFloat(&cfg.MinThreshold, "min"); err != nil {
		return nil, err
	}
	if err := setFloat(&cfg.MaxThreshold, "max"); err != nil {
		return nil, err
	}
	if err := setBool(&cfg.LogTransform, "log"); err != nil {
		return nil, err
	}
	if v := get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("window: %w", err)
		}
		cfg.WindowSize = n
		overridden = true
	}

	if !overridden {
		return s.pipeline, nil
	}

	params, err := cfg.ToParams()
	if err != nil {
		return nil, err
	}
	return pipeline.New(params)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ThresholdResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Log error, but can't send another response
		fmt.Fprintf(os.Stderr, "Error writing error response: %v\n", err)
	}
}
