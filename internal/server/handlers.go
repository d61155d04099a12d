package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"atslite/internal/ai"
	"atslite/internal/errors"
	"atslite/internal/plan"
	"atslite/internal/ranking"
	"atslite/internal/stats"
	"atslite/internal/workflow"
)

const (
	tracerName         = "atslite.api"
	healthCheckTimeout = 5 * time.Second
)

// healthHandler reports dataset and AI model availability
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := map[string]any{
		"status":  "healthy",
		"service": "atslite",
		"version": s.Version,
	}
	healthy := true

	if ds, err := s.data.Get(ctx); err != nil {
		healthy = false
		response["dataset"] = map[string]any{
			"available": false,
			"error":     errors.UserMessage(err),
		}
	} else {
		response["dataset"] = map[string]any{
			"available":  true,
			"candidates": len(ds.Candidates),
			"loaded_at":  ds.LoadedAt,
		}
	}

	if s.aiService != nil {
		models := s.aiService.GetModelInfo(ctx)
		for _, info := range models {
			if info != nil && !info.Available {
				healthy = false
			}
		}
		response["ai_models"] = models
		response["circuit_breakers"] = s.aiService.CircuitBreakerStats()
	}

	if s.watcher != nil {
		response["watcher"] = map[string]any{
			"running": s.watcher.IsRunning(),
			"path":    s.watcher.Path(),
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "atslite",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           len(s.APIKeys) > 0,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if st, ok := s.data.(interface{ Stats() map[string]any }); ok {
		response["dataset"] = st.Stats()
	}

	if s.aiService != nil {
		response["circuit_breakers"] = s.aiService.CircuitBreakerStats()
	}

	writeJSON(w, http.StatusOK, response)
}

// testHandler is a liveness probe for the browser client
func (s *Server) testHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chatHandler streams the think, filter, rank and speak phases as NDJSON
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.om.Tracer(tracerName).Start(r.Context(), "api.chat")
	defer span.End()

	var req ChatRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeRequestError(w, span, err)
		return
	}

	var query string
	if n := len(req.Messages); n > 0 {
		query = req.Messages[n-1].Content
	}
	if query == "" {
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeErrorResponse(w, "No message content provided", "", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("request.query_length", len(query)))

	ds, err := s.data.Get(ctx)
	if err != nil {
		s.Logger.LogError(err, "Failed to load candidate data")
		span.RecordError(err)
		ds = nil
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !stderrors.Is(err, http.ErrNotSupported) {
		s.Logger.Debug("Could not clear write deadline for stream", "error", err)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	emit := workflow.NDJSON(w, func() { _ = rc.Flush() })
	if err := s.engine.Run(ctx, query, ds, emit); err != nil {
		if stderrors.Is(err, context.Canceled) {
			s.Logger.Debug("Chat stream ended early", "reason", err)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "workflow failed")
		s.Logger.Warn("Chat stream ended with error", "error", err)
	}
}

// thinkHandler turns a query into filter and ranking plans
func (s *Server) thinkHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.om.Tracer(tracerName).Start(r.Context(), "api.think")
	defer span.End()

	var req ThinkRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeRequestError(w, span, err)
		return
	}

	plans, err := s.planner.Think(ctx, req.UserMessage, req.CSVHeaders)
	if err != nil {
		s.writeRequestError(w, span, err)
		return
	}

	span.SetAttributes(attribute.Bool("success", true))
	writeJSON(w, http.StatusOK, plans)
}

// speakHandler writes a summary for a shortlist computed by the client
func (s *Server) speakHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.om.Tracer(tracerName).Start(r.Context(), "api.speak")
	defer span.End()

	var req SpeakRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeRequestError(w, span, err)
		return
	}

	summary, err := s.summarizer.Speak(ctx, ai.SpeakRequest{
		Query:         req.OriginalQuery,
		TopCandidates: req.TopCandidates,
		Stats:         req.Stats.toStats(),
	})
	if err != nil {
		s.writeRequestError(w, span, err)
		return
	}

	span.SetAttributes(attribute.Int("response.summary_length", len(summary)))
	writeJSON(w, http.StatusOK, SpeakResponse{Summary: summary})
}

// rankHandler runs a client-supplied plan against the cached dataset
func (s *Server) rankHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.om.Tracer(tracerName).Start(r.Context(), "api.rank")
	defer span.End()

	raw, err := readJSONBody(r)
	if err != nil {
		s.writeRequestError(w, span, err)
		return
	}

	if problems := plan.ValidatePlans(raw); len(problems) > 0 {
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid plan",
			Message: problems[0],
			Details: problems,
		})
		return
	}

	var plans plan.Plans
	if err := json.Unmarshal(raw, &plans); err != nil {
		s.writeRequestError(w, span, errors.NewValidationError(errors.ErrCodeInvalidPlan, "Invalid plan", err))
		return
	}

	ds, err := s.data.Get(ctx)
	if err != nil {
		s.writeRequestError(w, span, err)
		return
	}

	start := time.Now()
	result := ranking.FilterAndRank(ds.Candidates, plans)
	s.metrics.RecordFilter(ctx, result.MatchedCount, result.TotalCount)
	s.metrics.RecordRanking(ctx, len(result.RankedIDs), time.Since(start))

	ids := result.RankedIDs
	if ids == nil {
		ids = []int{}
	}

	span.SetAttributes(
		attribute.Int("response.matched", result.MatchedCount),
		attribute.Int("response.total", result.TotalCount),
	)
	writeJSON(w, http.StatusOK, RankResponse{
		MatchedCount: result.MatchedCount,
		TotalCount:   result.TotalCount,
		RankedIDs:    ids,
		Stats:        stats.Of(result.Ranked),
	})
}

// candidatesHandler describes the loaded dataset
func (s *Server) candidatesHandler(w http.ResponseWriter, r *http.Request) {
	ds, err := s.data.Get(r.Context())
	if err != nil {
		s.writeRequestError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, CandidatesResponse{
		Count:    len(ds.Candidates),
		Headers:  ds.Headers,
		LoadedAt: ds.LoadedAt.UTC().Format(time.RFC3339),
	})
}

// decodeRequest parses a JSON body and validates the resulting DTO
func (s *Server) decodeRequest(r *http.Request, v any) error {
	raw, err := readJSONBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to parse JSON: %v", err), err)
	}
	if err := s.validate.Struct(v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, describeValidation(err), err)
	}
	return nil
}

// readJSONBody enforces the JSON content type and the body size limit
func readJSONBody(r *http.Request) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"content-type must be application/json", err)
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err).
				WithContext("status", http.StatusRequestEntityTooLarge)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read request body", err)
	}
	return body, nil
}

// describeValidation flattens validator errors into one message
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// writeRequestError maps an error to its HTTP status and records it on span
func (s *Server) writeRequestError(w http.ResponseWriter, span trace.Span, err error) {
	status := statusFor(err)
	if span != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed")
	}
	writeErrorResponse(w, http.StatusText(status), errors.UserMessage(err), status)
}

// statusFor picks the HTTP status for an error
func statusFor(err error) int {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}
	if status, ok := appErr.Context["status"].(int); ok {
		return status
	}

	switch appErr.Type {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeIO:
		if appErr.Code == errors.ErrCodeFileNotFound || appErr.Code == errors.ErrCodeEmptyDataset {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	case errors.ErrorTypeAI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}
