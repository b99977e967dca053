package core

import (
	"context"
	"time"
)

// Event types
const (
	EventStepCompleted  = "progress.step_completed"
	EventModuleFinished = "progress.module_finished"
	EventAttemptGraded  = "quiz.attempt_graded"
)

type (
	// Event is a domain notification. Payload is JSON-encodable.
	Event struct {
		Type       string                 `json:"type"`
		LearnerID  string                 `json:"learner_id"`
		Email      string                 `json:"email,omitempty"`
		Name       string                 `json:"name,omitempty"`
		Payload    map[string]interface{} `json:"payload,omitempty"`
		OccurredAt time.Time              `json:"occurred_at"`
	}

	// EventPublisher is any service that can broadcast events.
	// The core never depends on its availability: publish errors are only logged.
	EventPublisher interface {
		Publish(ctx context.Context, evt Event) error
	}

	// EventHandler consumes events delivered by a subscription.
	EventHandler func(ctx context.Context, evt Event)
)

// NewEvent returns an Event of type typ emitted on behalf of lrn.
func NewEvent(typ string, lrn Learner, payload map[string]interface{}) Event {
	return Event{
		Type:       typ,
		LearnerID:  lrn.ID,
		Email:      lrn.Email,
		Name:       lrn.Name,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
