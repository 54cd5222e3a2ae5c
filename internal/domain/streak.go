package domain

import (
	"context"
	"time"
)

// StreakType categorizes a recurring activity tracked independently per user.
type StreakType string

const (
	StreakFocus      StreakType = "focus"
	StreakLearning   StreakType = "learning"
	StreakAssignment StreakType = "assignment"
)

// KindStreakType maps an event kind to the streak it advances.
func KindStreakType(kind EventKind) StreakType {
	switch kind {
	case KindFocus:
		return StreakFocus
	case KindLearning:
		return StreakLearning
	case KindAssignmentCompletion:
		return StreakAssignment
	}
	return ""
}

// Streak is the per-(user, type) consecutive-day counter. CurrentCount is 0
// only before the first qualifying day; a broken streak resets to 1 on the
// next qualifying day rather than entering a distinct state.
type Streak struct {
	UserID           string
	Type             StreakType
	CurrentCount     int
	LastActivityDate Date
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Transition names the outcome of advancing a streak with a new activity day.
type Transition string

const (
	TransitionStarted    Transition = "started"
	TransitionExtended   Transition = "extended"
	TransitionReset      Transition = "reset"
	TransitionUnchanged  Transition = "unchanged"
	TransitionOutOfOrder Transition = "out_of_order"
)

// Changed reports whether the transition mutated the streak row.
func (t Transition) Changed() bool {
	switch t {
	case TransitionStarted, TransitionExtended, TransitionReset:
		return true
	}
	return false
}

// AdvanceStreak applies one activity day to a streak state. The transitions
// are not commutative, so callers must serialize invocations per
// (user, streak type); both store implementations do. A day earlier than
// LastActivityDate is a late event for a past day: it corrects the historical
// summary elsewhere but never rewinds the streak.
func AdvanceStreak(current Streak, day Date) (Streak, Transition) {
	switch {
	case current.LastActivityDate.IsZero():
		current.CurrentCount = 1
		current.LastActivityDate = day
		return current, TransitionStarted
	case day == current.LastActivityDate:
		return current, TransitionUnchanged
	case day == current.LastActivityDate.Next():
		current.CurrentCount++
		current.LastActivityDate = day
		return current, TransitionExtended
	case day.After(current.LastActivityDate):
		current.CurrentCount = 1
		current.LastActivityDate = day
		return current, TransitionReset
	default:
		return current, TransitionOutOfOrder
	}
}

// StreakStore persists streaks. Advance must run the transition inside an
// exclusive per-key critical section (a row lock or equivalent) and release
// it before returning; cross-user calls never contend.
type StreakStore interface {
	Advance(ctx context.Context, userID string, streakType StreakType, day Date) (Streak, Transition, error)
	GetStreak(ctx context.Context, userID string, streakType StreakType) (*Streak, error)
	ListStreaks(ctx context.Context, userID string) ([]Streak, error)
}
