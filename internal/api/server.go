// Package api is the HTTP surface: guardrail administration, function
// overrides, duplicate detection, guarded GenAI execution and article intake.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/duplicate"
	"github.com/labhacker007/Joti-sub001/internal/engine"
	"github.com/labhacker007/Joti-sub001/internal/guardrail"
	"github.com/labhacker007/Joti-sub001/internal/logger"
)

const maxBodySize = 1 << 20 // 1MB

// userHeader carries the acting administrator. Authentication happens in
// front of this service.
const userHeader = "X-Admin-User"

// ArticleStore persists accepted articles.
type ArticleStore interface {
	SaveArticle(ctx context.Context, a *duplicate.Article) error
}

// Invalidator drops cached candidate windows after an article is stored.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Config struct {
	Guardrails *guardrail.Manager
	Engine     *engine.Engine
	// Invoke is the model call used by /genai/execute. Nil disables the endpoint.
	Invoke   engine.InvokeFunc
	Detector *duplicate.Detector
	Articles ArticleStore
	// Cache is optional.
	Cache Invalidator
	// ExecutionLog is optional.
	ExecutionLog *logger.ExecutionLog
	Logger       *zap.Logger
}

type Server struct {
	guardrails *guardrail.Manager
	engine     *engine.Engine
	invoke     engine.InvokeFunc
	detector   *duplicate.Detector
	articles   ArticleStore
	cache      Invalidator
	execLog    *logger.ExecutionLog
	log        *zap.Logger
	now        func() time.Time
	server     *http.Server
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		guardrails: cfg.Guardrails,
		engine:     cfg.Engine,
		invoke:     cfg.Invoke,
		detector:   cfg.Detector,
		articles:   cfg.Articles,
		cache:      cfg.Cache,
		execLog:    cfg.ExecutionLog,
		log:        log,
		now:        time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /admin/genai-guardrails", s.handleListGuardrails)
	mux.HandleFunc("POST /admin/genai-guardrails", s.handleCreateGuardrail)
	mux.HandleFunc("GET /admin/genai-guardrails/resolve", s.handleResolve)
	mux.HandleFunc("GET /admin/genai-guardrails/{id}", s.handleGetGuardrail)
	mux.HandleFunc("PUT /admin/genai-guardrails/{id}", s.handleUpdateGuardrail)
	mux.HandleFunc("DELETE /admin/genai-guardrails/{id}", s.handleDeleteGuardrail)
	mux.HandleFunc("POST /admin/genai-guardrails/{id}/disable", s.handleDisableGuardrail)
	mux.HandleFunc("POST /admin/genai-guardrails/{id}/enable", s.handleEnableGuardrail)
	mux.HandleFunc("GET /admin/genai-guardrails/{id}/audit", s.handleAudit)

	mux.HandleFunc("GET /admin/genai-function-overrides/{function}", s.handleListOverrides)
	mux.HandleFunc("PUT /admin/genai-function-overrides/{function}/{guardrail}", s.handleSetOverride)
	mux.HandleFunc("DELETE /admin/genai-function-overrides/{function}/{guardrail}", s.handleDeleteOverride)

	mux.HandleFunc("POST /guardrails/duplicate-detection/check", s.handleDuplicateCheck)
	mux.HandleFunc("GET /guardrails/duplicate-detection/config", s.handleGetDuplicateConfig)
	mux.HandleFunc("PUT /guardrails/duplicate-detection/config", s.handlePutDuplicateConfig)

	mux.HandleFunc("POST /genai/execute", s.handleExecute)
	mux.HandleFunc("POST /articles", s.handleCreateArticle)

	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second, // model calls and fix rounds
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.log.Info("api server started", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}

// decode reads a size-limited JSON body. A *guardrail.ValidationError from a
// custom unmarshaler is passed through so its reason can be shown.
func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errBadRequest
	}
	if err := json.Unmarshal(body, v); err != nil {
		if guardrail.IsValidation(err) {
			return err
		}
		return errBadRequest
	}
	return nil
}

var errBadRequest = errors.New("invalid JSON")

// writeFailure maps an error to a status and a message safe for clients.
// Anything unrecognized is logged and reported generically.
func (s *Server) writeFailure(rw http.ResponseWriter, r *http.Request, err error) {
	var ve *guardrail.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(rw, http.StatusBadRequest, ve.Error())
	case errors.Is(err, errBadRequest):
		writeError(rw, http.StatusBadRequest, errBadRequest.Error())
	case errors.Is(err, duplicate.ErrInvalidConfig):
		writeError(rw, http.StatusBadRequest, err.Error())
	case errors.Is(err, guardrail.ErrNotFound):
		writeError(rw, http.StatusNotFound, guardrail.ErrNotFound.Error())
	case errors.Is(err, guardrail.ErrReferenced):
		writeError(rw, http.StatusConflict, guardrail.ErrReferenced.Error()+"; disable it instead")
	case errors.Is(err, guardrail.ErrConflict):
		writeError(rw, http.StatusConflict, guardrail.ErrConflict.Error())
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(rw, http.StatusInternalServerError, "internal error")
	}
}

func actingUser(r *http.Request) string {
	if u := r.Header.Get(userHeader); u != "" {
		return u
	}
	return "anonymous"
}
