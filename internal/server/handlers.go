package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/hypogen/internal/hypothesis"
	"github.com/hyperjump/hypogen/internal/llm"
	"github.com/hyperjump/hypogen/internal/models"
	"github.com/hyperjump/hypogen/internal/network"
	"go.uber.org/zap"
)

type askRequest struct {
	Question       string `json:"question"`
	IncludeContext bool   `json:"include_context,omitempty"`
}

type askResponse struct {
	Answer       string               `json:"answer"`
	RequestID    string               `json:"request_id"`
	ContextCount int                  `json:"context_count"`
	NetworkFacts []string             `json:"network_facts"`
	DurationMS   int64                `json:"duration_ms"`
	Context      []models.ContextItem `json:"context,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

type neighborsResponse struct {
	Gene         string         `json:"gene"`
	Successors   []network.Edge `json:"successors"`
	Predecessors []network.Edge `json:"predecessors"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", false)
		return
	}
	s.logger.Debug("ask request",
		zap.String("http_request_id", middleware.GetReqID(r.Context())),
		zap.Int("question_len", len(req.Question)))

	h, err := s.svc.Generate(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, hypothesis.ErrEmptyQuestion) {
			s.respondError(w, http.StatusBadRequest, "question is required", false)
			return
		}
		status, retryable := classify(r.Context(), err)
		var le *llm.Error
		if errors.As(err, &le) && le.RetryAfter > 0 {
			w.Header().Set("Retry-After", retryAfterSeconds(le.RetryAfter))
		}
		s.logger.Error("ask failed", zap.Int("status", status), zap.Error(err))
		s.respondError(w, status, err.Error(), retryable)
		return
	}

	facts := h.NetworkFacts
	if facts == nil {
		facts = []string{}
	}
	resp := askResponse{
		Answer:       h.Answer,
		RequestID:    h.RequestID,
		ContextCount: len(h.Context),
		NetworkFacts: facts,
		DurationMS:   h.Duration.Milliseconds(),
	}
	if req.IncludeContext {
		resp.Context = h.Context
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// classify maps a generation failure to an HTTP status and whether retrying may help.
func classify(ctx context.Context, err error) (int, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return http.StatusGatewayTimeout, true
	case llm.IsTransient(err):
		return http.StatusServiceUnavailable, true
	case llm.IsPermanent(err):
		return http.StatusBadGateway, false
	default:
		return http.StatusInternalServerError, false
	}
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.GeneNetwork(r.Context())
	if err != nil {
		s.logger.Error("gene network unavailable", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "gene network unavailable: "+err.Error(), true)
		return
	}
	id, ok := g.Lookup(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "gene not found", false)
		return
	}
	resp := neighborsResponse{
		Gene:         id,
		Successors:   g.Successors(id),
		Predecessors: g.Predecessors(id),
	}
	if resp.Successors == nil {
		resp.Successors = []network.Edge{}
	}
	if resp.Predecessors == nil {
		resp.Predecessors = []network.Edge{}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string, retryable bool) {
	s.respondJSON(w, status, errorResponse{Error: message, Retryable: retryable})
}

// retryAfterSeconds renders d as whole seconds, rounding up so a client never retries early.
func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
