package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/therapyflow/calsync/internal/repositories"
	"github.com/therapyflow/calsync/internal/services"
	"github.com/therapyflow/calsync/internal/sync"
)

// Handler wires the sync engine to its HTTP trigger surface. The engine does
// all the work; these handlers only translate requests and results.
type Handler struct {
	engine  *sync.Engine
	queue   *sync.OperationQueue
	history *sync.History
	status  repositories.SyncStatusRepository
	tokens  *services.TokenService
}

func NewHandler(
	engine *sync.Engine,
	queue *sync.OperationQueue,
	history *sync.History,
	status repositories.SyncStatusRepository,
	tokens *services.TokenService,
) *Handler {
	return &Handler{
		engine:  engine,
		queue:   queue,
		history: history,
		status:  status,
		tokens:  tokens,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequireAuth(h.tokens))
	r.Post("/calendar/sync", h.triggerSync)
	r.Get("/sync/history", h.syncHistory)
	r.Get("/sync/status", h.syncStatus)
	r.Post("/appointments/check-conflicts", h.checkConflicts)
	return r
}

type syncRequest struct {
	TimeMin     *time.Time `json:"time_min,omitempty"`
	TimeMax     *time.Time `json:"time_max,omitempty"`
	ForceUpdate bool       `json:"force_update"`
	CalendarID  string     `json:"calendar_id,omitempty"`
}

func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	therapistID, ok := TherapistID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing scope")
		return
	}

	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result := h.engine.SyncFromExternal(r.Context(), therapistID, sync.SyncOptions{
		TimeMin:     req.TimeMin,
		TimeMax:     req.TimeMax,
		ForceUpdate: req.ForceUpdate,
		CalendarID:  req.CalendarID,
	})

	// A run that never started (lock held) is a conflict; a run with
	// per-event errors still returns its partial result.
	if result.InProgress {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) syncHistory(w http.ResponseWriter, r *http.Request) {
	therapistID, ok := TherapistID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing scope")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": h.history.ListByScope(therapistID, limit),
	})
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	therapistID, ok := TherapistID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing scope")
		return
	}

	lastSync, err := h.status.GetLastSync(r.Context(), therapistID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load sync status")
		return
	}

	resp := map[string]interface{}{
		"sync_in_progress": h.engine.Busy(),
		"queue_length":     h.queue.Len(),
		"queue_busy":       h.queue.Busy(),
		"success_rate_24h": h.history.SuccessRate(24 * time.Hour),
	}
	if !lastSync.IsZero() {
		resp["last_sync"] = lastSync
	}
	writeJSON(w, http.StatusOK, resp)
}

type conflictRequest struct {
	StartTime            time.Time  `json:"start_time"`
	EndTime              time.Time  `json:"end_time"`
	ExcludeAppointmentID *uuid.UUID `json:"exclude_appointment_id,omitempty"`
}

func (h *Handler) checkConflicts(w http.ResponseWriter, r *http.Request) {
	therapistID, ok := TherapistID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing scope")
		return
	}

	var req conflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conflicts, err := h.engine.CheckConflicts(r.Context(), therapistID, req.StartTime, req.EndTime, req.ExcludeAppointmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"has_conflicts": len(conflicts) > 0,
		"conflicts":     conflicts,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
