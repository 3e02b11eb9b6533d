package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/orchestrate"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// QueryRequest is the body of POST /v1/query and POST /v1/classify.
type QueryRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

// InvalidateRequest is the body of POST /v1/cache/{category}/invalidate.
type InvalidateRequest struct {
	Params map[string]any `json:"params"`
}

// LimitResponse describes one rate-limit window.
type LimitResponse struct {
	Operation string  `json:"operation"`
	Budget    int     `json:"budget"`
	WindowMs  int64   `json:"window_ms"`
	InWindow  int     `json:"in_window"`
	Waits     int64   `json:"waits"`
	WaitedMs  float64 `json:"waited_ms"`
	Saturated bool    `json:"saturated"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body QueryRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	env := s.orch.Handle(r.Context(), orchestrate.Request{
		ID:     RequestIDFromContext(r.Context()),
		Query:  body.Query,
		Params: body.Params,
	})
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var body QueryRequest
	if !s.decode(w, r, &body) {
		return
	}
	if s.classifier == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "no classifier configured")
		return
	}
	writeJSON(w, http.StatusOK, s.classifier.Classify(body.Query))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager().Stats(r.PathValue("category"))
	if err != nil {
		s.writeCacheError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var body InvalidateRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.manager().Invalidate(r.Context(), r.PathValue("category"), body.Params); err != nil {
		s.writeCacheError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLimits(w http.ResponseWriter, _ *http.Request) {
	limiters := s.orch.Registry().Limiters()
	snapshot := limiters.Snapshot()
	out := make([]LimitResponse, 0, len(snapshot))
	for _, op := range limiters.Operations() {
		st, ok := snapshot[op]
		if !ok {
			continue
		}
		out = append(out, LimitResponse{
			Operation: op,
			Budget:    st.Budget,
			WindowMs:  st.Window.Milliseconds(),
			InWindow:  st.InWindow,
			Waits:     st.Waits,
			WaitedMs:  float64(st.Waited) / float64(time.Millisecond),
			Saturated: st.Saturated(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) manager() *cache.Manager {
	return s.orch.Registry().Manager()
}

func (s *Server) writeCacheError(w http.ResponseWriter, err error) {
	if errors.Is(err, cache.ErrUnknownCategory) {
		writeError(w, http.StatusNotFound, "unknown_category", err.Error())
		return
	}
	s.logger.Warn("cache request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "cache request failed")
}

// decode reads a JSON body, answering 400 or 413 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "invalid_request", "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON: "+err.Error())
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
