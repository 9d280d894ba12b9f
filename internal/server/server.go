package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"searchtrack/internal/config"
	"searchtrack/internal/pipeline"
)

// Service exposes the ingest pipeline as a webhook: POST / takes a payload
// and GET / answers a health probe.
type Service struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(cfg config.Config, p *pipeline.Pipeline, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, pipeline: p, log: log, now: time.Now}
}

func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverJSON)

	r.Post("/", s.handlePost)
	r.Get("/", s.handleGet)
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: time.Duration(s.cfg.HTTPReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(s.cfg.HTTPReadTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.HTTPAddr).Str("sheet", s.cfg.SheetName).Msg("webhook listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Service) handlePost(w http.ResponseWriter, r *http.Request) {
	log := s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		err = fmt.Errorf("%w: %v", pipeline.ErrMalformedInput, err)
		log.Warn().Err(err).Msg("could not read request body")
		writeJSON(w, http.StatusBadRequest, pipeline.Failure(err, s.now()))
		return
	}

	resp, err := s.pipeline.Handle(r.Context(), body, s.now())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case pipeline.IsClientError(err):
		log.Warn().Err(err).Msg("rejected payload")
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		log.Error().Err(err).Msg("ingest failed")
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

type healthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	SheetID   string `json:"sheet_id,omitempty"`
	SheetName string `json:"sheet_name"`
	Backend   string `json:"backend"`
}

func (s *Service) handleGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Message:   "webhook up",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		SheetID:   s.cfg.SheetID,
		SheetName: s.cfg.SheetName,
		Backend:   s.cfg.StoreBackend,
	})
}

// requestID keeps an inbound X-Request-ID or assigns a uuid, and mirrors it
// on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

// recoverJSON turns a panic into the usual failure body with a 500.
func (s *Service) recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.log.Error().
					Str("request_id", middleware.GetReqID(r.Context())).
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				writeJSON(w, http.StatusInternalServerError, pipeline.Failure(fmt.Errorf("internal error: %v", v), s.now()))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
