package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/evalueate/proctor/internal/model"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, err := h.store.GetAdminByUsername(req.Username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if admin == nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.auth.IssueAdminToken(admin.Username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adminLoginResponse{Token: token})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListSessions()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []model.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleEvidence(w http.ResponseWriter, r *http.Request) {
	captures, err := h.store.ListEvidence(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if captures == nil {
		captures = []model.Evidence{}
	}
	writeJSON(w, http.StatusOK, captures)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListEvents(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListCandidates()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []model.DirectoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type createCandidateRequest struct {
	Email      string `json:"email"`
	AccessCode string `json:"accessCode"`
}

func (h *Handler) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req createCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.AccessCode = strings.TrimSpace(req.AccessCode)
	if req.Email == "" || req.AccessCode == "" {
		writeError(w, http.StatusBadRequest, "email and access code are required")
		return
	}

	if err := h.store.CreateCandidate(req.Email, req.AccessCode); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("candidate provisioned", "email", req.Email)
	writeJSON(w, http.StatusCreated, model.DirectoryEntry{Email: req.Email, AccessCode: req.AccessCode})
}

type reactivateRequest struct {
	Email string `json:"email"`
}

type reactivateResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	var req reactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	changed, err := h.store.Unlock(req.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	status := "not locked"
	if changed {
		status = "reactivated"
		h.logger.Info("candidate reactivated", "email", req.Email)
	}
	writeJSON(w, http.StatusOK, reactivateResponse{Status: status})
}
