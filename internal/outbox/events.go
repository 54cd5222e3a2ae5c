package outbox

import "time"

// SummaryUpdated is emitted after every fresh event application so downstream
// dashboards can refresh without polling.
type SummaryUpdated struct {
	UserID               string    `json:"user_id"`
	ActivityDate         string    `json:"activity_date"`
	Kind                 string    `json:"kind"`
	TotalFocusMinutes    int       `json:"total_focus_minutes"`
	CompletedAssignments int       `json:"completed_assignments"`
	ProductivityScore    float64   `json:"productivity_score"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// StreakAdvanced is emitted when a streak row actually changes (started,
// extended, or reset); same-day and out-of-order deltas produce nothing.
type StreakAdvanced struct {
	UserID           string    `json:"user_id"`
	StreakType       string    `json:"streak_type"`
	CurrentCount     int       `json:"current_count"`
	LastActivityDate string    `json:"last_activity_date"`
	Transition       string    `json:"transition"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

// Catalog maps event types to their routing metadata.
var Catalog = map[string]EventMetadata{
	"summary.updated": {
		AggregateType: "daily_summary",
		Topic:         "progress_summary_events",
		SchemaSubject: "progress_summary_events-value",
	},
	"streak.advanced": {
		AggregateType: "streak",
		Topic:         "progress_streak_events",
		SchemaSubject: "progress_streak_events-value",
	},
}
