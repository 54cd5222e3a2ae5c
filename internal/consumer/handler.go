package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/progress/internal/domain"
)

// Wire event types emitted by the tracker services.
const (
	EventFocusCompleted      = "focus.completed"
	EventLearningLogged      = "learning.logged"
	EventAssignmentCompleted = "assignment.completed"
)

// activityPayload is the shared shape of the tracker's activity events.
type activityPayload struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	DurationMin int       `json:"duration_min"`
}

// EngineHandler maps consumed tracker events onto the aggregation engine.
type EngineHandler struct {
	engine *domain.Engine
	logger logrus.FieldLogger
}

// NewEngineHandler constructs a handler around the engine.
func NewEngineHandler(engine *domain.Engine, logger logrus.FieldLogger) *EngineHandler {
	return &EngineHandler{engine: engine, logger: logger}
}

// Handle decodes the payload and applies it. Unknown event types and bad
// configuration (invalid timezone, missing profile) are swallowed after
// decode so the offset commits and the message is not redelivered forever;
// store failures propagate to force redelivery.
func (h *EngineHandler) Handle(ctx context.Context, msg Message) error {
	kind, ok := kindForEventType(msg.EventType)
	if !ok {
		// Topics may carry event types this service does not fold.
		return nil
	}

	var payload activityPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}

	event := domain.ActivityEvent{
		EventID:         payload.EventID,
		UserID:          payload.UserID,
		Kind:            kind,
		OccurredAt:      payload.OccurredAt.UTC(),
		DurationMinutes: payload.DurationMin,
	}

	_, err := h.engine.Apply(ctx, event)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTimezone) || errors.Is(err, domain.ErrProfileNotFound) || errors.Is(err, domain.ErrInvalidEvent) || errors.Is(err, domain.ErrUnknownKind) {
			// Non-retryable: redelivery cannot fix the profile or the payload.
			h.logger.WithError(err).WithFields(logrus.Fields{
				"event_type": msg.EventType,
				"user_id":    payload.UserID,
				"event_id":   payload.EventID,
			}).Error("event rejected")
			recordRejected(msg.Topic, msg.EventType)
			return nil
		}
		return err
	}
	return nil
}

func kindForEventType(eventType string) (domain.EventKind, bool) {
	switch eventType {
	case EventFocusCompleted:
		return domain.KindFocus, true
	case EventLearningLogged:
		return domain.KindLearning, true
	case EventAssignmentCompleted:
		return domain.KindAssignmentCompletion, true
	}
	return "", false
}
