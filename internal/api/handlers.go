package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/duplicate"
	"github.com/labhacker007/Joti-sub001/internal/engine"
	"github.com/labhacker007/Joti-sub001/internal/guardrail"
	"github.com/labhacker007/Joti-sub001/internal/invoker"
	"github.com/labhacker007/Joti-sub001/internal/logger"
)

func (s *Server) handleListGuardrails(rw http.ResponseWriter, r *http.Request) {
	defs, err := s.guardrails.List(r.Context())
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"guardrails": orEmpty(defs)})
}

func (s *Server) handleCreateGuardrail(rw http.ResponseWriter, r *http.Request) {
	var d guardrail.Definition
	if err := decode(r, &d); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	created, err := s.guardrails.Create(r.Context(), d, actingUser(r))
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusCreated, created)
}

func (s *Server) handleGetGuardrail(rw http.ResponseWriter, r *http.Request) {
	d, err := s.guardrails.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, d)
}

func (s *Server) handleUpdateGuardrail(rw http.ResponseWriter, r *http.Request) {
	var d guardrail.Definition
	if err := decode(r, &d); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	updated, err := s.guardrails.Update(r.Context(), r.PathValue("id"), d, actingUser(r))
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, updated)
}

func (s *Server) handleDeleteGuardrail(rw http.ResponseWriter, r *http.Request) {
	if err := s.guardrails.Delete(r.Context(), r.PathValue("id"), actingUser(r)); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisableGuardrail(rw http.ResponseWriter, r *http.Request) {
	d, err := s.guardrails.Disable(r.Context(), r.PathValue("id"), actingUser(r))
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, d)
}

func (s *Server) handleEnableGuardrail(rw http.ResponseWriter, r *http.Request) {
	d, err := s.guardrails.Enable(r.Context(), r.PathValue("id"), actingUser(r))
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, d)
}

func (s *Server) handleAudit(rw http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(rw, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.guardrails.Audit(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"audit": orEmpty(entries)})
}

func (s *Server) handleResolve(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	function := q.Get("function")
	if function == "" {
		writeError(rw, http.StatusBadRequest, "function is required")
		return
	}
	defs, err := s.guardrails.ResolveEffective(r.Context(), function, q.Get("platform"))
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"function":   function,
		"platform":   q.Get("platform"),
		"guardrails": orEmpty(guardrail.Order(defs)),
	})
}

func (s *Server) handleListOverrides(rw http.ResponseWriter, r *http.Request) {
	overrides, err := s.guardrails.Overrides(r.Context(), r.PathValue("function"))
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"overrides": orEmpty(overrides)})
}

type overrideRequest struct {
	Enabled  *bool              `json:"enabled"`
	Severity guardrail.Severity `json:"severity,omitempty"`
	Config   map[string]any     `json:"config,omitempty"`
}

func (s *Server) handleSetOverride(rw http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	if req.Enabled == nil {
		writeError(rw, http.StatusBadRequest, "enabled is required")
		return
	}
	o, err := s.guardrails.SetOverride(r.Context(), guardrail.Override{
		Function:    r.PathValue("function"),
		GuardrailID: r.PathValue("guardrail"),
		Enabled:     *req.Enabled,
		Severity:    req.Severity,
		Config:      req.Config,
	}, actingUser(r))
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, o)
}

func (s *Server) handleDeleteOverride(rw http.ResponseWriter, r *http.Request) {
	if err := s.guardrails.DeleteOverride(r.Context(), r.PathValue("function"), r.PathValue("guardrail"), actingUser(r)); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateCheck(rw http.ResponseWriter, r *http.Request) {
	var in duplicate.Input
	if err := decode(r, &in); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeError(rw, http.StatusBadRequest, "title is required")
		return
	}
	res, err := s.detector.CheckDuplicate(r.Context(), in)
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, res)
}

func (s *Server) handleGetDuplicateConfig(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, s.detector.GetConfig())
}

func (s *Server) handlePutDuplicateConfig(rw http.ResponseWriter, r *http.Request) {
	// Start from the current values so partial bodies only change what they name.
	cfg := s.detector.GetConfig()
	if err := decode(r, &cfg); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	if err := s.detector.UpdateConfig(cfg); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	s.log.Info("duplicate detection config changed", zap.String("user", actingUser(r)))
	writeJSON(rw, http.StatusOK, cfg)
}

type executeRequest struct {
	Function     string `json:"function"`
	Platform     string `json:"platform,omitempty"`
	UserPrompt   string `json:"user_prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type executeResponse struct {
	RequestID   string             `json:"request_id"`
	State       engine.State       `json:"state"`
	Output      string             `json:"output,omitempty"`
	ModelUsed   string             `json:"model_used,omitempty"`
	Violations  []guardrail.Result `json:"violations"`
	RetryCount  int                `json:"retry_count"`
	FinalAction guardrail.Action   `json:"final_action,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func (s *Server) handleExecute(rw http.ResponseWriter, r *http.Request) {
	if s.invoke == nil {
		writeError(rw, http.StatusServiceUnavailable, "no model provider configured")
		return
	}
	var req executeRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	if req.Function == "" || strings.TrimSpace(req.UserPrompt) == "" {
		writeError(rw, http.StatusBadRequest, "function and user_prompt are required")
		return
	}

	start := s.now()
	id := uuid.NewString()
	out, err := s.engine.Process(r.Context(), engine.Request{
		RequestID:    id,
		Function:     req.Function,
		Platform:     req.Platform,
		UserPrompt:   req.UserPrompt,
		SystemPrompt: req.SystemPrompt,
	}, s.invoke)
	if err != nil {
		// Cancelled: the client is gone and nothing is logged.
		s.log.Debug("execute cancelled", zap.String("request_id", id))
		return
	}

	s.recordExecution(r, req, out, start)

	status := http.StatusOK
	resp := executeResponse{
		RequestID:   out.RequestID,
		State:       out.State,
		Output:      out.Output,
		ModelUsed:   out.ModelUsed,
		Violations:  orEmpty(out.Violations),
		RetryCount:  out.RetryCount,
		FinalAction: out.FinalAction,
		Error:       publicError(out.Err),
	}
	if out.State == engine.StateFailed {
		status = http.StatusBadGateway
		if errors.Is(out.Err, invoker.ErrModelUnavailable) {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(rw, status, resp)
}

// publicError names the failure class without internal detail.
func publicError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrRetryExhausted):
		return engine.ErrRetryExhausted.Error()
	case errors.Is(err, invoker.ErrModelUnavailable):
		return invoker.ErrModelUnavailable.Error()
	default:
		return "request failed"
	}
}

func (s *Server) recordExecution(r *http.Request, req executeRequest, out *engine.Outcome, start time.Time) {
	if s.execLog == nil {
		return
	}
	rec := logger.ExecutionRecord{
		Timestamp:   start.UTC().Format(time.RFC3339),
		RequestID:   out.RequestID,
		Function:    req.Function,
		Platform:    req.Platform,
		User:        r.Header.Get(userHeader),
		State:       string(out.State),
		FinalAction: string(out.FinalAction),
		ModelUsed:   out.ModelUsed,
		RetryCount:  out.RetryCount,
		Violations:  out.Violations,
		UserPrompt:  req.UserPrompt,
		Output:      out.Output,
		DurationMs:  s.now().Sub(start).Milliseconds(),
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	if err := s.execLog.Log(rec); err != nil {
		s.log.Warn("failed to write execution log", zap.Error(err))
	}
}

type articleRequest struct {
	duplicate.Input
	// Force stores the article even when it is reported as a duplicate.
	Force bool `json:"force,omitempty"`
}

type articleResponse struct {
	Article        *duplicate.Article `json:"article,omitempty"`
	DuplicateCheck duplicate.Result   `json:"duplicate_check"`
}

func (s *Server) handleCreateArticle(rw http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(rw, http.StatusBadRequest, "title is required")
		return
	}

	check, err := s.detector.CheckDuplicate(r.Context(), req.Input)
	if err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	if check.IsDuplicate && !req.Force {
		writeJSON(rw, http.StatusConflict, articleResponse{DuplicateCheck: check})
		return
	}

	a := &duplicate.Article{
		SourceID:    req.SourceID,
		Title:       req.Title,
		Content:     req.Content,
		Summary:     req.Summary,
		URL:         req.URL,
		PublishedAt: req.PublishedAt,
	}
	if err := s.articles.SaveArticle(r.Context(), a); err != nil {
		s.writeFailure(rw, r, err)
		return
	}
	if s.cache != nil {
		s.cache.Invalidate(r.Context())
	}
	writeJSON(rw, http.StatusCreated, articleResponse{Article: a, DuplicateCheck: check})
}

// orEmpty keeps empty lists encoding as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
