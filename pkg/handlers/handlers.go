package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/analytics"
	"lead-response-engine/pkg/directory"
	"lead-response-engine/pkg/escalation"
	"lead-response-engine/pkg/models"
	"lead-response-engine/pkg/scoring"
)

type Handler struct {
	engine       *escalation.Engine
	directory    *directory.Directory
	analytics    *analytics.Store
	logger       *logrus.Logger
	isLeaderFunc func() bool
}

func NewHandler(engine *escalation.Engine, dir *directory.Directory, store *analytics.Store, logger *logrus.Logger, isLeaderFunc func() bool) *Handler {
	return &Handler{
		engine:       engine,
		directory:    dir,
		analytics:    store,
		logger:       logger,
		isLeaderFunc: isLeaderFunc,
	}
}

// NewLead scores an inbound lead and starts its escalation case
func (h *Handler) NewLead(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ID         string                `json:"id"`
		Name       string                `json:"name"`
		Attributes models.LeadAttributes `json:"attributes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	score, temperature, err := scoring.Score(request.Attributes)
	if err != nil {
		if errors.Is(err, scoring.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if request.ID == "" {
		request.ID = uuid.New().String()
	}

	lead := models.Lead{
		ID:          request.ID,
		Name:        request.Name,
		Attributes:  request.Attributes,
		Score:       score,
		Temperature: temperature,
		CreatedAt:   time.Now(),
	}

	escalationCase, err := h.engine.Start(r.Context(), lead)
	if err != nil {
		if errors.Is(err, escalation.ErrDuplicatePending) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.WithError(err).WithField("lead_id", lead.ID).Error("Failed to start escalation case")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"lead": lead,
		"case": escalationCase,
	})

	h.logger.WithFields(logrus.Fields{
		"lead_id":     lead.ID,
		"score":       score,
		"temperature": temperature,
		"case_id":     escalationCase.ID,
	}).Debug("Lead intake complete")
}

// Acknowledge marks a lead as accepted by a team member. Stale or duplicate
// acknowledgements are informational, not errors.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]

	var request struct {
		MemberID  string    `json:"member_id"`
		Timestamp time.Time `json:"timestamp,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.MemberID == "" {
		http.Error(w, "Missing member_id", http.StatusBadRequest)
		return
	}
	if request.Timestamp.IsZero() {
		request.Timestamp = time.Now()
	}

	err := h.engine.Acknowledge(r.Context(), caseID, request.MemberID, request.Timestamp)
	switch {
	case err == nil:
		writeJSON(w, map[string]interface{}{
			"success":         true,
			"case_id":         caseID,
			"acknowledged_at": request.Timestamp,
		})
	case errors.Is(err, escalation.ErrStaleAcknowledgement), errors.Is(err, escalation.ErrCaseAlreadyTerminal):
		writeJSON(w, map[string]interface{}{
			"success": false,
			"stale":   true,
			"case_id": caseID,
		})
	case errors.Is(err, escalation.ErrUnknownCase):
		http.Error(w, "Case not found", http.StatusNotFound)
	default:
		h.logger.WithError(err).WithField("case_id", caseID).Error("Failed to acknowledge case")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Abort terminates a case for a withdrawn lead
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]

	err := h.engine.Abort(r.Context(), caseID)
	switch {
	case err == nil:
		writeJSON(w, map[string]interface{}{"success": true, "case_id": caseID})
	case errors.Is(err, escalation.ErrCaseAlreadyTerminal):
		http.Error(w, "Case already terminal", http.StatusConflict)
	case errors.Is(err, escalation.ErrUnknownCase):
		http.Error(w, "Case not found", http.StatusNotFound)
	default:
		h.logger.WithError(err).WithField("case_id", caseID).Error("Failed to abort case")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// GetCase returns the case with its full audit trail
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]

	escalationCase, ok := h.engine.GetCase(r.Context(), caseID)
	if !ok {
		http.Error(w, "Case not found", http.StatusNotFound)
		return
	}

	writeJSON(w, escalationCase)
}

// UpsertMember creates or replaces a team member record
func (h *Handler) UpsertMember(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["id"]

	var member models.TeamMember
	if err := json.NewDecoder(r.Body).Decode(&member); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	member.ID = memberID

	h.directory.Upsert(member)
	writeJSON(w, map[string]interface{}{"success": true, "member_id": memberID})
}

// SetAvailability flips a member's availability flag
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["id"]

	var request struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !h.directory.SetAvailability(memberID, request.Available) {
		http.Error(w, "Member not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{
		"success":   true,
		"member_id": memberID,
		"available": request.Available,
	})
}

// SetWorkload updates a member's active workload count
func (h *Handler) SetWorkload(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["id"]

	var request struct {
		Workload int `json:"workload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Workload < 0 {
		http.Error(w, "Workload must be non-negative", http.StatusBadRequest)
		return
	}

	if !h.directory.SetWorkload(memberID, request.Workload) {
		http.Error(w, "Member not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{"success": true, "member_id": memberID})
}

// TeamStats returns team-wide response statistics for a window
func (h *Handler) TeamStats(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, h.analytics.TeamStats(window))
}

// MemberStats returns one member's response statistics for a window
func (h *Handler) MemberStats(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["id"]

	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, h.analytics.MemberStats(memberID, window))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"is_leader": h.isLeaderFunc(),
		"timestamp": time.Now(),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"is_leader":        h.isLeaderFunc(),
		"responses_logged": h.analytics.Count(),
		"timestamp":        time.Now(),
	})
}

func parseWindow(r *http.Request) (time.Duration, error) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return 0, errors.New("invalid window")
		}
		window = parsed
	}
	return window, nil
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
