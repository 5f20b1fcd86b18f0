// Package dispatch exposes the dispatch core over HTTP: job intake, status
// queries and contractor responses.
package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/dispatch"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/logger"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// DispatchRequest is the inbound job payload.
type DispatchRequest struct {
	JobID          string  `json:"job_id"`
	ServiceType    string  `json:"service_type" validate:"required"`
	Urgency        string  `json:"urgency" validate:"required,oneof=emergency urgent standard"`
	Suburb         string  `json:"suburb"`
	State          string  `json:"state"`
	Postcode       string  `json:"postcode"`
	EstimatedValue float64 `json:"estimated_value" validate:"gte=0"`
	HasInsurance   bool    `json:"has_insurance"`
	Description    string  `json:"description" validate:"max=2000"`
}

// RespondRequest is a contractor's accept or decline.
type RespondRequest struct {
	ContractorID string `json:"contractor_id" validate:"required"`
	Decision     string `json:"decision" validate:"required,oneof=accept decline"`
	Reason       string `json:"reason" validate:"max=500"`
}

type dispatchResponse struct {
	JobID         string    `json:"job_id"`
	Round         int       `json:"round"`
	NotifiedCount int       `json:"notified_count"`
	Notified      []string  `json:"notified_contractors"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type statusResponse struct {
	JobID              string              `json:"job_id"`
	State              string              `json:"state"`
	Rounds             []dispatch.Round    `json:"rounds"`
	Responses          []dispatch.Response `json:"responses,omitempty"`
	AssignedContractor string              `json:"assigned_contractor,omitempty"`
}

type respondResponse struct {
	Outcome string `json:"outcome"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the dispatch API.
type Handler struct {
	manager  *dispatch.Manager
	validate *validator.Validate
	logger   logger.Logger
}

// NewHandler creates a Handler around the dispatch manager.
func NewHandler(manager *dispatch.Manager, log logger.Logger) *Handler {
	return &Handler{manager: manager, validate: validator.New(), logger: log}
}

// Register mounts the dispatch routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/dispatch", h.dispatchJob)
	mux.HandleFunc("GET /api/dispatch/{jobID}", h.status)
	mux.HandleFunc("POST /api/dispatch/{jobID}/respond", h.respond)
	mux.HandleFunc("POST /api/dispatch/{jobID}/cancel", h.cancel)
	mux.HandleFunc("POST /api/dispatch/{jobID}/start", h.start)
	mux.HandleFunc("POST /api/dispatch/{jobID}/complete", h.complete)
}

func (h *Handler) dispatchJob(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	serviceType, err := model.ParseServiceType(req.ServiceType)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	urgency, err := model.ParseUrgency(req.Urgency)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	job := model.Job{
		ID:          req.JobID,
		ServiceType: serviceType,
		Urgency:     urgency,
		Location: model.Location{
			Suburb:   req.Suburb,
			State:    req.State,
			Postcode: req.Postcode,
		},
		EstimatedValue: req.EstimatedValue,
		HasInsurance:   req.HasInsurance,
		Description:    req.Description,
		CreatedAt:      time.Now(),
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	res, err := h.manager.DispatchJob(r.Context(), job)
	switch {
	case errors.Is(err, dispatch.ErrNoEligibleContractors):
		writeError(w, http.StatusConflict, "no_eligible_contractors")
		return
	case errors.Is(err, dispatch.ErrRecordExists):
		writeError(w, http.StatusConflict, "job already dispatched")
		return
	case err != nil:
		h.logger.Errorf("dispatch %s: %v", job.ID, err)
		writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	ids := make([]string, len(res.Notified))
	for i, n := range res.Notified {
		ids[i] = n.ContractorID
	}
	writeJSON(w, http.StatusOK, dispatchResponse{
		JobID:         res.JobID,
		Round:         res.Round,
		NotifiedCount: len(ids),
		Notified:      ids,
		ExpiresAt:     res.ExpiresAt,
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	rec, err := h.manager.Status(r.Context(), jobID)
	if errors.Is(err, dispatch.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	if err != nil {
		h.logger.Errorf("status %s: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		JobID:              rec.JobID,
		State:              rec.State.String(),
		Rounds:             rec.Rounds,
		Responses:          rec.Responses,
		AssignedContractor: rec.AssignedContractor,
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	decision := dispatch.DecisionAccept
	if req.Decision == "decline" {
		decision = dispatch.DecisionDecline
	}

	outcome, err := h.manager.Respond(r.Context(), jobID, req.ContractorID, decision, req.Reason)
	if errors.Is(err, dispatch.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	if err != nil {
		h.logger.Errorf("respond %s/%s: %v", jobID, req.ContractorID, err)
		writeError(w, http.StatusInternalServerError, "respond failed")
		return
	}
	writeJSON(w, http.StatusOK, respondResponse{Outcome: outcome.String()})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	err := h.manager.Cancel(r.Context(), jobID)
	switch {
	case errors.Is(err, dispatch.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "unknown job")
	case errors.Is(err, dispatch.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "job already resolved")
	case err != nil:
		h.logger.Errorf("cancel %s: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "cancel failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"state": dispatch.StateCancelled.String()})
	}
}

type startRequest struct {
	ContractorID string `json:"contractor_id" validate:"required"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	err := h.manager.Start(r.Context(), jobID, req.ContractorID)
	switch {
	case errors.Is(err, dispatch.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "unknown job")
	case err != nil:
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"state": dispatch.StateInProgress.String()})
	}
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	err := h.manager.Complete(r.Context(), jobID, req.ContractorID)
	switch {
	case errors.Is(err, dispatch.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "unknown job")
	case err != nil:
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"state": dispatch.StateCompleted.String()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
