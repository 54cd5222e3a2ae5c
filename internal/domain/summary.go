package domain

import (
	"context"
	"time"
)

// Score formula weights. The score is a deterministic, monotone function of
// the two stored integer totals only, so recomputation from the same event
// set always yields the same value.
const (
	focusWeight      = 0.8
	assignmentWeight = 0.2
	assignmentTarget = 3
)

// DailySummary is the per-(user, day) aggregate. Rows are created on the
// first event of a day and merged additively afterwards, never deleted.
type DailySummary struct {
	UserID               string
	Date                 Date
	TotalFocusMinutes    int
	CompletedAssignments int
	ProductivityScore    float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SummaryApply carries one event's contribution to a summary row. The store
// merges FocusMinutes and CompletedAssignments additively (commutative, so
// concurrent applies need no ordering) and records EventID in the applied
// ledger; a replayed EventID turns the whole apply into a no-op.
type SummaryApply struct {
	EventID              string
	UserID               string
	Date                 Date
	Kind                 EventKind
	FocusMinutes         int
	CompletedAssignments int
	DailyFocusGoal       int
}

// SummaryDelta is the result of one Apply, pushed to the streak evaluator and
// returned to the caller.
type SummaryDelta struct {
	UserID     string
	Date       Date
	Kind       EventKind
	Duplicate  bool
	Summary    DailySummary
	Streak     *Streak
	Transition Transition
}

// SummaryStore persists daily summaries behind idempotent merge semantics.
type SummaryStore interface {
	// ApplyEvent folds one event contribution into the (user, date) row and
	// returns the merged summary. The bool result is true when the event id
	// was already applied and nothing changed.
	ApplyEvent(ctx context.Context, apply SummaryApply) (DailySummary, bool, error)
	GetSummary(ctx context.Context, userID string, date Date) (*DailySummary, error)
	ListSummaries(ctx context.Context, userID string, from, to *Date) ([]DailySummary, error)
}

// Score computes the productivity score from the stored totals against the
// user's daily focus goal. Clamped to [0, 1] and monotone in both inputs.
func Score(focusMinutes, completedAssignments, dailyFocusGoal int) float64 {
	if dailyFocusGoal <= 0 {
		dailyFocusGoal = 1
	}
	focus := float64(focusMinutes) / float64(dailyFocusGoal)
	if focus > 1 {
		focus = 1
	}
	assignments := float64(completedAssignments) / float64(assignmentTarget)
	if assignments > 1 {
		assignments = 1
	}
	score := focus*focusWeight + assignments*assignmentWeight
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Contribution maps an event onto its additive summary deltas. The kind set
// is closed; an unknown kind is rejected before this point by Validate.
func Contribution(event ActivityEvent) (focusMinutes, completedAssignments int) {
	switch event.Kind {
	case KindFocus, KindLearning:
		return event.DurationMinutes, 0
	case KindAssignmentCompletion:
		return 0, 1
	}
	return 0, 0
}
