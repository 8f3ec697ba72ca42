package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/thresh/internal/pipeline"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocketRequest represents a thresholding request via WebSocket.
type WebSocketRequest struct {
	Type    string            `json:"type"` // "image" or "batch"
	Image   []byte            `json:"image,omitempty"`
	Paths   []string          `json:"paths,omitempty"`
	Workers int               `json:"workers,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse represents a thresholding response via WebSocket.
type WebSocketResponse struct {
	Type      string      `json:"type"`
	Status    string      `json:"status"` // "processing", "completed", "error"
	Progress  float64     `json:"progress,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// batchWebSocketHandler handles WebSocket connections for streaming
// thresholding with live progress.
func (s *Server) batchWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	// Increment active connections metric
	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	// Handle the WebSocket connection
	s.handleWebSocketConnection(r, conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(r *http.Request, conn *websocket.Conn) {
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		// Read message from client
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		// Record message metric
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(r, conn, data)
		}
	}
}

// handleWebSocketMessage processes a WebSocket message.
func (s *Server) handleWebSocketMessage(r *http.Request, conn *websocket.Conn, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	// Generate a request ID for tracking
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	// Send processing start message
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "threshold_response",
		Status:    "processing",
		Progress:  0.0,
		RequestID: requestID,
	})

	// Process the request based on type
	switch req.Type {
	case "image":
		s.processWebSocketImage(r, conn, req, requestID)
	case "batch":
		s.processWebSocketBatch(r, conn, req, requestID)
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketImage thresholds a single in-memory image.
func (s *Server) processWebSocketImage(r *http.Request, conn *websocket.Conn, req WebSocketRequest, requestID string) {
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No image data provided")
		return
	}

	// Decode image
	img, _, err := image.Decode(bytes.NewReader(req.Image))
	if err != nil {
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	// Get pipeline for this request
	pl, err := s.pipelineFromValues(func(key string) string { return req.Options[key] })
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Invalid parameters: %v", err))
		return
	}

	// Send progress update
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "threshold_response",
		Status:    "processing",
		Progress:  0.5,
		RequestID: requestID,
	})

	// Process image
	start := time.Now()
	res, err := pl.ProcessImage(r.Context(), img)
	duration := time.Since(start)

	if err != nil {
		thresholdRequestsTotal.WithLabelValues("websocket_image", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Thresholding failed: %v", err))
		return
	}

	// Record metrics
	thresholdRequestsTotal.WithLabelValues("websocket_image", "success").Inc()
	thresholdDuration.WithLabelValues("websocket_image").Observe(duration.Seconds())

	result := &ThresholdResult{
		Width:        res.Width,
		Height:       res.Height,
		Measurements: res.Measurements,
	}
	result.Processing.TotalTimeMs = duration.Milliseconds()

	// Send completion response
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "threshold_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    result,
		RequestID: requestID,
	})
}

// wsProgress streams batch progress messages over the connection. The parallel
// driver invokes callbacks from a single goroutine, so writes stay ordered.
type wsProgress struct {
	server    *Server
	conn      *websocket.Conn
	requestID string
}

func (p *wsProgress) OnStart(total int) {}

func (p *wsProgress) OnProgress(current, total int) {
	p.server.sendWebSocketResponse(p.conn, WebSocketResponse{
		Type:      "batch_progress",
		Status:    "processing",
		Progress:  float64(current) / float64(total),
		RequestID: p.requestID,
	})
}

func (p *wsProgress) OnComplete() {}

func (p *wsProgress) OnError(index int, err error) {
	p.server.sendWebSocketResponse(p.conn, WebSocketResponse{
		Type:      "batch_progress",
		Status:    "error",
		Error:     err.Error(),
		ErrorType: "file_error",
		RequestID: p.requestID,
	})
}

// processWebSocketBatch thresholds server-local files, streaming progress as
// each one completes.
func (s *Server) processWebSocketBatch(r *http.Request, conn *websocket.Conn, req WebSocketRequest, requestID string) {
	if len(req.Paths) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No input paths provided")
		return
	}

	pl, err := s.pipelineFromValues(func(key string) string { return req.Options[key] })
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Invalid parameters: %v", err))
		return
	}

	cfg := pipeline.DefaultParallelConfig()
	cfg.ContinueOnError = true
	cfg.ProgressCallback = &wsProgress{server: s, conn: conn, requestID: requestID}
	if req.Workers > 0 {
		cfg.MaxWorkers = req.Workers
	}

	start := time.Now()
	results, err := pl.ProcessFilesParallel(r.Context(), req.Paths, cfg)
	duration := time.Since(start)

	if err != nil && len(results) == 0 {
		thresholdRequestsTotal.WithLabelValues("websocket_batch", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Batch processing failed: %v", err))
		return
	}

	thresholdRequestsTotal.WithLabelValues("websocket_batch", "success").Inc()
	thresholdDuration.WithLabelValues("websocket_batch").Observe(duration.Seconds())

	// Drop entries for failed files; their errors were already streamed.
	completed := make([]*pipeline.FileResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			completed = append(completed, res)
		}
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "threshold_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    completed,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	response := WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	}

	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket error response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket error message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
