// Package server exposes the HTTP surface: PDF upload + evaluation, chat
// queries against cached results, and a health probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dealgraph/internal/logging"
	"dealgraph/internal/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSession is used when an upload omits the sessionId field.
const DefaultSession = "demo-session"

// Ingestor is the document ingestion collaborator.
type Ingestor interface {
	IngestPDF(ctx context.Context, sessionID, path string) (int, error)
}

// Config holds HTTP server settings.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns sensible defaults. The write timeout is generous
// because an upload triggers a full evaluation run with several model calls.
func DefaultConfig() Config {
	return Config{
		Addr:           ":3001",
		MaxUploadBytes: 32 << 20,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
	}
}

// Server wires the HTTP handlers over the evaluation service.
type Server struct {
	ingestor  Ingestor
	service   *pipeline.Service
	logger    *zap.Logger
	maxUpload int64

	httpServer *http.Server
}

// New creates a server from config; zero-value fields fall back to defaults.
func New(config Config, ingestor Ingestor, service *pipeline.Service, logger *zap.Logger) *Server {
	defaults := DefaultConfig()
	if strings.TrimSpace(config.Addr) == "" {
		config.Addr = defaults.Addr
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	s := &Server{
		ingestor:  ingestor,
		service:   service,
		logger:    logger,
		maxUpload: config.MaxUploadBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload-pdf", s.handleUploadPDF)
	mux.HandleFunc("POST /ask-deal-agent", s.handleAskDealAgent)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.withRequestID(mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	logging.Server("Listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type ctxKey int

const requestIDKey ctxKey = 0

// withRequestID tags every request with a uuid and logs method, path, and
// duration on completion.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// RequestID returns the request id stored by the middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no file attached")
		return
	}
	defer file.Close()

	sessionID := strings.TrimSpace(r.FormValue("sessionId"))
	if sessionID == "" {
		sessionID = DefaultSession
	}

	logging.API("Upload request %s: session=%s file=%s", RequestID(ctx), sessionID, header.Filename)

	tmpPath, err := spoolUpload(file)
	if err != nil {
		s.logger.Error("failed to spool upload", zap.String("request_id", RequestID(ctx)), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}
	defer os.Remove(tmpPath)

	if _, err := s.ingestor.IngestPDF(ctx, sessionID, tmpPath); err != nil {
		s.logger.Error("ingestion failed", zap.String("request_id", RequestID(ctx)), zap.String("session", sessionID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to ingest document")
		return
	}

	if _, err := s.service.Evaluate(ctx, sessionID); err != nil {
		s.logger.Error("evaluation failed", zap.String("request_id", RequestID(ctx)), zap.String("session", sessionID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to evaluate document")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":   "PDF processed and deal evaluated",
		"sessionId": sessionID,
	})
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleAskDealAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = DefaultSession
	}

	logging.API("Chat request %s: session=%s", RequestID(ctx), sessionID)

	answer, err := s.service.Ask(ctx, sessionID, req.Question)
	if err != nil {
		if errors.Is(err, pipeline.ErrSessionNotFound) {
			s.writeError(w, http.StatusBadRequest, "no session found; upload a document first")
			return
		}
		s.logger.Error("chat failed", zap.String("request_id", RequestID(ctx)), zap.String("session", sessionID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// spoolUpload writes the uploaded file to a temp path. The caller removes it
// once ingestion finishes.
func spoolUpload(file io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "dealgraph-upload-*.pdf")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return filepath.Clean(tmp.Name()), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
