// Package domain defines the aggregation and streak logic for the progress engine.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidTimezone indicates the user profile carries an unknown IANA zone id.
	// It is non-retryable: bucketing with a default zone would corrupt streaks.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrUnknownKind is returned for an event kind outside the closed set.
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrInvalidEvent is returned when a consumed event is missing required fields.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrProfileNotFound is returned when no profile exists for the event owner.
	ErrProfileNotFound = errors.New("user profile not found")
)

// EventKind identifies the closed set of activity kinds the engine folds.
type EventKind string

const (
	KindFocus                EventKind = "focus"
	KindLearning             EventKind = "learning"
	KindAssignmentCompletion EventKind = "assignment_completion"
)

// Valid reports whether the kind belongs to the closed set.
func (k EventKind) Valid() bool {
	switch k {
	case KindFocus, KindLearning, KindAssignmentCompletion:
		return true
	}
	return false
}

// ActivityEvent is the immutable record emitted by the tracker's CRUD services.
// EventID is caller-assigned and globally unique; it drives the idempotency ledger.
type ActivityEvent struct {
	EventID         string
	UserID          string
	Kind            EventKind
	OccurredAt      time.Time
	DurationMinutes int
}

// Validate checks the fields the engine depends on. Free-text payload fields
// are a collaborator concern and are not inspected here.
func (e ActivityEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred_at is required", ErrInvalidEvent)
	}
	if e.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration_minutes must be >= 0", ErrInvalidEvent)
	}
	return nil
}
