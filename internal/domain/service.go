package domain

import (
	"context"
	"fmt"

	"example.com/progress/internal/observability"
)

// Engine orchestrates the apply pipeline: profile lookup, day bucketing,
// summary fold, then streak advance driven by the resulting delta.
type Engine struct {
	profiles  ProfileSource
	summaries SummaryStore
	streaks   StreakStore
}

// NewEngine constructs an Engine.
func NewEngine(profiles ProfileSource, summaries SummaryStore, streaks StreakStore) *Engine {
	return &Engine{profiles: profiles, summaries: summaries, streaks: streaks}
}

// Apply folds one activity event into the owner's daily summary and advances
// the matching streak. Re-applying an event id leaves the summary unchanged
// but still runs the streak evaluator: the summary and streak writes commit
// separately, so a retry after a streak store failure must be able to finish
// the advance the first attempt lost. A same-day re-advance is unchanged, so
// replays stay no-ops. ErrInvalidTimezone aborts the apply and is not
// retryable.
func (e *Engine) Apply(ctx context.Context, event ActivityEvent) (*SummaryDelta, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	profile, err := e.profiles.Profile(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, event.UserID)
	}

	day, err := BucketDate(event.OccurredAt, profile.Timezone)
	if err != nil {
		return nil, err
	}

	focusMinutes, completedAssignments := Contribution(event)
	summary, duplicate, err := e.summaries.ApplyEvent(ctx, SummaryApply{
		EventID:              event.EventID,
		UserID:               event.UserID,
		Date:                 day,
		Kind:                 event.Kind,
		FocusMinutes:         focusMinutes,
		CompletedAssignments: completedAssignments,
		DailyFocusGoal:       profile.DailyFocusGoal,
	})
	if err != nil {
		return nil, fmt.Errorf("apply summary: %w", err)
	}

	delta := &SummaryDelta{
		UserID:    event.UserID,
		Date:      day,
		Kind:      event.Kind,
		Duplicate: duplicate,
		Summary:   summary,
	}

	if duplicate {
		observability.RecordDuplicateAbsorbed(string(event.Kind))
	} else {
		observability.RecordEventApplied(string(event.Kind))
	}

	streak, transition, err := e.streaks.Advance(ctx, event.UserID, KindStreakType(event.Kind), day)
	if err != nil {
		return nil, fmt.Errorf("advance streak: %w", err)
	}
	observability.RecordStreakTransition(string(transition))

	delta.Streak = &streak
	delta.Transition = transition
	return delta, nil
}

// SummariesByUser returns the user's summaries within the optional date range.
func (e *Engine) SummariesByUser(ctx context.Context, userID string, from, to *Date) ([]DailySummary, error) {
	return e.summaries.ListSummaries(ctx, userID, from, to)
}

// SummaryByDay fetches one summary row, nil when the day has no activity.
func (e *Engine) SummaryByDay(ctx context.Context, userID string, date Date) (*DailySummary, error) {
	return e.summaries.GetSummary(ctx, userID, date)
}

// StreaksByUser returns every streak the user has started.
func (e *Engine) StreaksByUser(ctx context.Context, userID string) ([]Streak, error) {
	return e.streaks.ListStreaks(ctx, userID)
}
