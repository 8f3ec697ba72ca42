package server

import (
	"net/http"

	"github.com/MeKo-Tech/thresh/internal/config"
	"github.com/MeKo-Tech/thresh/internal/measure"
	"github.com/MeKo-Tech/thresh/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	baseConfig  config.ThresholdConfig
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	Threshold   config.ThresholdConfig
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ThresholdResult is the JSON payload for a successful threshold request.
type ThresholdResult struct {
	Width        int                  `json:"width"`
	Height       int                  `json:"height"`
	Measurements measure.Measurements `json:"measurements"`
	Processing   struct {
		TotalTimeMs int64 `json:"total_time_ms"`
	} `json:"processing"`
}

type ThresholdResponse struct {
	Success bool             `json:"success"`
	Result  *ThresholdResult `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// NewServer creates a new thresholding server instance.
func NewServer(cfg Config) (*Server, error) {
	params, err := cfg.Threshold.ToParams()
	if err != nil {
		return nil, err
	}

	pl, err := pipeline.New(params)
	if err != nil {
		return nil, err
	}

	return &Server{
		pipeline:    pl,
		baseConfig:  cfg.Threshold,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeoutSec:  cfg.TimeoutSec,
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/threshold", s.corsMiddleware(s.thresholdImageHandler))
	mux.HandleFunc("/ws/batch", s.batchWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
