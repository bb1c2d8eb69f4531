package crm

import (
	"context"
	"time"

	"github.com/goliatone/go-crm/audit"
	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventSessionDowngraded    ActivityEventType = "auth.session.downgraded"
	ActivityEventSignup               ActivityEventType = "user.signup"
	ActivityEventAccountVerified      ActivityEventType = "user.verified"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
)

// ActorRef identifies who performed an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Summary    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// NewAuditActivitySink forwards activity events to the audit recorder.
// Events without a summary get a default one derived from the event type so
// the recorder's required-field policy does not drop them silently.
func NewAuditActivitySink(recorder *audit.Recorder) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		if recorder == nil {
			return nil
		}

		summary := event.Summary
		if summary == "" {
			summary = string(event.EventType)
		}

		entry := audit.Entry{
			Action:     string(event.EventType),
			TargetType: "user",
			TargetID:   event.UserID,
			Summary:    summary,
			Metadata:   event.Metadata,
		}

		if event.Actor.ID != "" {
			if actorID, err := uuid.Parse(event.Actor.ID); err == nil {
				entry.ActorID = &actorID
			}
		}

		if !event.OccurredAt.IsZero() {
			occurred := event.OccurredAt
			entry.CreatedAt = &occurred
		}

		recorder.Record(ctx, entry)
		return nil
	})
}
