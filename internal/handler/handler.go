// Package handler exposes the assessment and admin JSON APIs over chi.
// Candidate-facing responses only ever carry answer-stripped section
// projections; the correct answers stay server-side until submission.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/evalueate/proctor/internal/exam"
	"github.com/evalueate/proctor/internal/model"
	"github.com/evalueate/proctor/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	exam   *exam.Service
	store  *store.Store
	auth   *Auth
	logger *slog.Logger
}

// New creates a new Handler.
func New(svc *exam.Service, st *store.Store, auth *Auth, logger *slog.Logger) *Handler {
	return &Handler{exam: svc, store: st, auth: auth, logger: logger}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/assessment/generate", h.handleGenerate)

		r.Group(func(r chi.Router) {
			r.Use(h.requireCandidate)
			r.Post("/assessment/generate-section", h.handleGenerateSection)
			r.Post("/assessment/heartbeat", h.handleHeartbeat)
			r.Post("/assessment/terminate", h.handleTerminate)
			r.Post("/assessment/submit", h.handleSubmit)
		})

		r.Post("/admin/login", h.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/admin/sessions", h.handleListSessions)
			r.Get("/admin/sessions/{sessionID}/evidence", h.handleEvidence)
			r.Get("/admin/sessions/{sessionID}/logs", h.handleLogs)
			r.Get("/admin/candidates", h.handleListCandidates)
			r.Post("/admin/candidates", h.handleCreateCandidate)
			r.Post("/admin/candidates/reactivate", h.handleReactivate)
		})
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto the HTTP status taxonomy.
// Provider failures never reach this point: they degrade to fallback
// content or zero scores inside the exam service.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exam.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or access code")
	case errors.Is(err, exam.ErrAttemptUsed):
		writeError(w, http.StatusForbidden, "this access code has already been used")
	case errors.Is(err, exam.ErrSessionNotActive):
		writeError(w, http.StatusForbidden, "session is no longer active")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type generateRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	AccessCode     string `json:"accessCode"`
	JobDescription string `json:"jobDescription"`
}

type generateResponse struct {
	Token     string              `json:"token"`
	SessionID string              `json:"sessionId"`
	Status    model.SessionStatus `json:"status"`
	Sections  []model.SectionView `json:"sections"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.AccessCode == "" {
		writeError(w, http.StatusBadRequest, "email and access code are required")
		return
	}

	sess, err := h.exam.Start(r.Context(),
		model.Candidate{Name: req.Name, Email: req.Email}, req.AccessCode, req.JobDescription)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	token, err := h.auth.IssueCandidateToken(sess.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		Token:     token,
		SessionID: sess.ID,
		Status:    sess.Status,
		Sections:  sectionViews(sess.Sections),
	})
}

func sectionViews(sections []model.Section) []model.SectionView {
	views := make([]model.SectionView, 0, len(sections))
	for _, sec := range sections {
		views = append(views, sec.View())
	}
	return views
}

type generateSectionRequest struct {
	SectionID model.SectionID `json:"sectionId"`
}

func (h *Handler) handleGenerateSection(w http.ResponseWriter, r *http.Request) {
	var req generateSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SectionID == "" {
		writeError(w, http.StatusBadRequest, "sectionId is required")
		return
	}

	claims := claimsFromContext(r.Context())
	sec, err := h.exam.GenerateSection(r.Context(), claims.SessionID, req.SectionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sec.View())
}

type heartbeatRequest struct {
	Violation string `json:"violation"`
	Details   string `json:"details"`
	Snapshot  string `json:"snapshot"`
}

type heartbeatResponse struct {
	Status model.SessionStatus `json:"status"`
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := claimsFromContext(r.Context())
	if req.Violation != "" {
		if _, err := h.exam.RecordViolation(claims.SessionID, req.Violation, req.Details, req.Snapshot); err != nil {
			h.writeServiceError(w, err)
			return
		}
	}

	sess, err := h.exam.Session(claims.SessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, heartbeatResponse{Status: sess.Status})
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	var req terminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "terminated by client"
	}

	claims := claimsFromContext(r.Context())
	if err := h.exam.Terminate(claims.SessionID, req.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}
	sess, err := h.exam.Session(claims.SessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, heartbeatResponse{Status: sess.Status})
}

type submitRequest struct {
	UserAnswers model.AnswerSet `json:"userAnswers"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserAnswers == nil {
		req.UserAnswers = model.AnswerSet{}
	}

	claims := claimsFromContext(r.Context())
	result, err := h.exam.Submit(r.Context(), claims.SessionID, req.UserAnswers)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
