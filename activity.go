package featmy

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventLogout            ActivityEventType = "auth.logout"
	ActivityEventSignupPersonal    ActivityEventType = "auth.signup.personal"
	ActivityEventStudentCreated    ActivityEventType = "student.created"
	ActivityEventStudentActivated  ActivityEventType = "student.activated"
	ActivityEventStudentDeleted    ActivityEventType = "student.deleted"
	ActivityEventStudentStatus     ActivityEventType = "student.status_changed"
	ActivityEventSessionChanged    ActivityEventType = "session.changed"
	ActivityEventReconcilePending  ActivityEventType = "reconcile.pending"
	ActivityEventNavigationBlocked ActivityEventType = "navigation.blocked"
)

// ActivityEvent captures audit-friendly information about an action. Events
// of type reconcile.pending describe a best-effort write that failed after
// the primary effect of its operation already committed; consumers can use
// them to drive repair jobs.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
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
