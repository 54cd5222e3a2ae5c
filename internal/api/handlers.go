// Package api exposes HTTP handlers for the progress engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/progress/internal/domain"
)

// Handler coordinates HTTP requests with the aggregation engine.
type Handler struct {
	engine *domain.Engine
}

// NewHandler builds a Handler.
func NewHandler(engine *domain.Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/events", h.events)
	mux.HandleFunc("/v1/summaries", h.summaries)
	mux.HandleFunc("/v1/streaks", h.streaks)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req ApplyEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	eventID := req.EventID
	if eventID == "" {
		// Caller-assigned ids are what make retries safe; a generated id
		// still deduplicates the outbox path but not caller resubmission.
		eventID = uuid.NewString()
	}

	delta, err := h.engine.Apply(r.Context(), domain.ActivityEvent{
		EventID:         eventID,
		UserID:          req.UserID,
		Kind:            domain.EventKind(req.Kind),
		OccurredAt:      req.OccurredAt.UTC(),
		DurationMinutes: req.DurationMin,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEvent), errors.Is(err, domain.ErrUnknownKind):
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.Is(err, domain.ErrProfileNotFound):
			writeError(w, http.StatusNotFound, "not_found", err.Error())
		case errors.Is(err, domain.ErrInvalidTimezone):
			writeError(w, http.StatusUnprocessableEntity, "invalid_timezone", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	resp := ApplyEventResponse{
		EventID:   eventID,
		Duplicate: delta.Duplicate,
		Summary:   toSummaryView(delta.Summary),
	}
	if delta.Streak != nil {
		view := toStreakView(*delta.Streak)
		resp.Streak = &view
		resp.Transition = string(delta.Transition)
	}

	status := http.StatusAccepted
	if delta.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) summaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if strings.TrimSpace(userID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid from date")
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid to date")
		return
	}

	summaries, err := h.engine.SummariesByUser(r.Context(), userID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]SummaryView, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, toSummaryView(summary))
	}
	writeJSON(w, http.StatusOK, ListSummariesResponse{Items: items})
}

func (h *Handler) streaks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if strings.TrimSpace(userID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	streaks, err := h.engine.StreaksByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]StreakView, 0, len(streaks))
	for _, streak := range streaks {
		items = append(items, toStreakView(streak))
	}
	writeJSON(w, http.StatusOK, ListStreaksResponse{Items: items})
}

func parseDateParam(r *http.Request, key string) (*domain.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

// ApplyEventRequest is the payload for POST /v1/events.
type ApplyEventRequest struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	OccurredAt  time.Time `json:"occurred_at"`
	DurationMin int       `json:"duration_min"`
}

// Validate ensures request correctness before the engine sees the event.
func (r ApplyEventRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if !domain.EventKind(r.Kind).Valid() {
		return errors.New("kind must be one of focus, learning, assignment_completion")
	}
	if r.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	if r.DurationMin < 0 {
		return errors.New("duration_min must be >= 0")
	}
	return nil
}

// ApplyEventResponse describes the result of an ingest call.
type ApplyEventResponse struct {
	EventID    string      `json:"event_id"`
	Duplicate  bool        `json:"duplicate"`
	Summary    SummaryView `json:"summary"`
	Streak     *StreakView `json:"streak,omitempty"`
	Transition string      `json:"transition,omitempty"`
}

// SummaryView exposes a daily summary row.
type SummaryView struct {
	UserID               string    `json:"user_id"`
	ActivityDate         string    `json:"activity_date"`
	TotalFocusMinutes    int       `json:"total_focus_minutes"`
	CompletedAssignments int       `json:"completed_assignments"`
	ProductivityScore    float64   `json:"productivity_score"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// StreakView exposes a streak row.
type StreakView struct {
	UserID           string    `json:"user_id"`
	StreakType       string    `json:"streak_type"`
	CurrentCount     int       `json:"current_count"`
	LastActivityDate string    `json:"last_activity_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ListSummariesResponse packages summary list results.
type ListSummariesResponse struct {
	Items []SummaryView `json:"items"`
}

// ListStreaksResponse packages streak list results.
type ListStreaksResponse struct {
	Items []StreakView `json:"items"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toSummaryView(summary domain.DailySummary) SummaryView {
	return SummaryView{
		UserID:               summary.UserID,
		ActivityDate:         summary.Date.String(),
		TotalFocusMinutes:    summary.TotalFocusMinutes,
		CompletedAssignments: summary.CompletedAssignments,
		ProductivityScore:    summary.ProductivityScore,
		CreatedAt:            summary.CreatedAt,
		UpdatedAt:            summary.UpdatedAt,
	}
}

func toStreakView(streak domain.Streak) StreakView {
	return StreakView{
		UserID:           streak.UserID,
		StreakType:       string(streak.Type),
		CurrentCount:     streak.CurrentCount,
		LastActivityDate: streak.LastActivityDate.String(),
		CreatedAt:        streak.CreatedAt,
		UpdatedAt:        streak.UpdatedAt,
	}
}
