// Package api exposes the compliance core over HTTP for the dashboard
// frontend. The CLI remains the primary surface; this is a thin JSON
// layer over the same internal packages.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/plannetic/compliance-cli/internal/config"
	"github.com/plannetic/compliance-cli/internal/model"
	"github.com/plannetic/compliance-cli/internal/records"
	"github.com/plannetic/compliance-cli/internal/scoring"
	"github.com/plannetic/compliance-cli/internal/store"
	"github.com/plannetic/compliance-cli/internal/workflow"
)

// QuestionLoader resolves the questionnaire for a record type, so the
// server honors the same YAML overrides as the CLI.
type QuestionLoader func(rt model.RecordType) ([]model.Question, error)

// Server handles HTTP requests against the compliance store.
type Server struct {
	store         store.Store
	materializer  *records.Materializer
	loadQuestions QuestionLoader
	cfg           *config.Config
}

// NewServer creates an API server over the given store.
func NewServer(s store.Store, loader QuestionLoader, cfg *config.Config) *Server {
	return &Server{
		store:         s,
		materializer:  records.NewMaterializer(s),
		loadQuestions: loader,
		cfg:           cfg,
	}
}

// Router builds the chi router with CORS and rate limiting applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimit(s.cfg.Server.RequestsPerSec))

	r.Get("/health", s.handleHealth)
	r.Get("/records/{type}", s.handleListRecords)
	r.Post("/records/{type}/{id}/status", s.handleSetStatus)
	r.Post("/assessments/{type}", s.handleAssess)
	r.Get("/assessments/{type}", s.handleListAssessments)
	r.Get("/assessments/{type}/latest", s.handleLatestAssessment)
	r.Get("/reviews/due", s.handleDueReviews)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	rt := model.RecordType(chi.URLParam(r, "type"))
	if !rt.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown record type")
		return
	}

	merged, err := s.materializer.Reconcile(r.Context(), rt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

type setStatusRequest struct {
	Category string `json:"category"`
	Status   string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	rt := model.RecordType(chi.URLParam(r, "type"))
	if !rt.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown record type")
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate before touching the store; failures past this point are
	// persistence errors, not client errors.
	scratch := model.ComplianceRecord{Type: rt, Statuses: model.DefaultStatuses(rt)}
	if err := workflow.SetStatus(&scratch, req.Category, req.Status); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rec, err := s.materializer.SetStatus(r.Context(), rt, chi.URLParam(r, "id"), req.Category, req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type assessRequest struct {
	SubjectID string         `json:"subject_id"`
	Answers   []model.Answer `json:"answers"`
	Complete  bool           `json:"complete"`
}

type assessResponse struct {
	Total      int               `json:"total"`
	Tier       model.RiskTier    `json:"tier"`
	Assessment *model.Assessment `json:"assessment,omitempty"`
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	rt := model.RecordType(chi.URLParam(r, "type"))

	questions, err := s.loadQuestions(rt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Complete {
		result := scoring.Score(req.Answers, questions, s.cfg.Scoring)
		writeJSON(w, http.StatusOK, assessResponse{Total: result.Total, Tier: result.Tier})
		return
	}

	if req.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "subject_id is required to complete an assessment")
		return
	}

	assessment, err := s.materializer.CompleteAssessment(r.Context(), rt, req.SubjectID, req.Answers, questions, s.cfg.Scoring, s.cfg.Schedule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, assessResponse{
		Total:      assessment.Total,
		Tier:       assessment.Tier,
		Assessment: assessment,
	})
}

func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	rt := model.RecordType(chi.URLParam(r, "type"))
	if !rt.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown record type")
		return
	}

	filter := store.AssessmentFilter{
		Type:      rt,
		SubjectID: r.URL.Query().Get("subject_id"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	list, err := s.store.ListAssessments(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLatestAssessment(w http.ResponseWriter, r *http.Request) {
	rt := model.RecordType(chi.URLParam(r, "type"))
	if !rt.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown record type")
		return
	}
	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "subject_id is required")
		return
	}

	latest, err := s.store.LatestAssessment(r.Context(), rt, subjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "subject has no assessment")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleDueReviews(w http.ResponseWriter, r *http.Request) {
	dueBy := time.Now().UTC()
	if by := r.URL.Query().Get("by"); by != "" {
		parsed, err := time.Parse("2006-01-02", by)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid by date, expected YYYY-MM-DD")
			return
		}
		dueBy = parsed
	}

	due, err := s.store.ListDueReviews(r.Context(), dueBy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, due)
}

// rateLimit applies a shared token bucket across all requests.
func rateLimit(perSec float64) func(http.Handler) http.Handler {
	if perSec <= 0 {
		perSec = 20
	}
	limiter := rate.NewLimiter(rate.Limit(perSec), int(perSec))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
