// Package httpapi serves classification over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-classifier/internal/core"
)

const maxRequestBody = 10 << 20

// Classifier classifies one message
type Classifier interface {
	Classify(ctx context.Context, req *core.ClassificationRequest, useExternal bool) (*core.Outcome, error)
}

// BatchProcessor classifies an ordered batch of messages
type BatchProcessor interface {
	Process(ctx context.Context, reqs []core.ClassificationRequest) *core.BatchResult
}

// Server holds the handlers of the HTTP API
type Server struct {
	classifier Classifier
	batch      BatchProcessor
	metrics    http.Handler
	logger     *zap.Logger
}

// New creates the API server. metrics may be nil.
func New(classifier Classifier, batch BatchProcessor, metrics http.Handler, logger *zap.Logger) *Server {
	return &Server{classifier: classifier, batch: batch, metrics: metrics, logger: logger}
}

type classifyRequest struct {
	core.ClassificationRequest
	UseExternal *bool `json:"use_external,omitempty"`
}

type classifyResponse struct {
	*core.Verdict
	Provenance     core.Provenance `json:"provenance"`
	Attempts       int             `json:"attempts,omitempty"`
	FallbackReason string          `json:"fallback_reason,omitempty"`
	ModelUsed      string          `json:"model_used"`
	ProcessingID   string          `json:"processing_id"`
	AnalyzedAt     time.Time       `json:"analyzed_at"`
}

type batchRequest struct {
	Items []core.ClassificationRequest `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Routes returns the chi router of the API
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Post("/classify/batch", s.handleBatch)
	})
	return r
}

// ListenAndServe serves the API on addr until ctx is canceled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("HTTP API listening", zap.String("address", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var body classifyRequest
	if err := decode(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	useExternal := true
	if body.UseExternal != nil {
		useExternal = *body.UseExternal
	}

	outcome, err := s.classifier.Classify(r.Context(), &body.ClassificationRequest, useExternal)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("Classification failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "classification failed"})
		return
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		Verdict:        outcome.Verdict,
		Provenance:     outcome.Provenance,
		Attempts:       outcome.Attempts,
		FallbackReason: outcome.FallbackReason,
		ModelUsed:      outcome.ModelUsed,
		ProcessingID:   outcome.ProcessingID,
		AnalyzedAt:     outcome.AnalyzedAt,
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := decode(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if body.Items == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `expected "items" array in request body`})
		return
	}

	writeJSON(w, http.StatusOK, s.batch.Process(r.Context(), body.Items))
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
