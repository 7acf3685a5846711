// Package pubsub provides the pub/sub abstraction the control plane uses
// for the three notification channels (new_message, human_request_resolved,
// task_status_changed) and the team-scoped live event feed
// (openclaw:events:<team_id>). NATS is the production implementation;
// an in-memory bus backs single-process deployments and tests.
package pubsub

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published on every subject.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEvent builds an Event with a fresh ID and current timestamp.
func NewEvent(eventType, source string, data map[string]any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Handler processes one delivered Event.
type Handler func(ctx context.Context, event *Event) error

// Subscription is a live subscription that can be cancelled.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// Well-known subjects from §6.
const (
	SubjectNewMessage            = "new_message"
	SubjectHumanRequestResolved  = "human_request_resolved"
	SubjectTaskStatusChanged     = "task_status_changed"
	teamEventsPrefix             = "openclaw:events:"
)

// TeamEventsSubject returns the team-scoped live feed subject.
func TeamEventsSubject(teamID string) string {
	return teamEventsPrefix + teamID
}

// Bus is the pub/sub abstraction every service depends on. Best-effort
// publish failures (transient_infra, §7) are the caller's responsibility to
// log and swallow; Bus itself just reports the error.
type Bus interface {
	Publish(ctx context.Context, subject string, event *Event) error
	Subscribe(subject string, handler Handler) (Subscription, error)
	QueueSubscribe(subject, queue string, handler Handler) (Subscription, error)
	Request(ctx context.Context, subject string, event *Event, timeout time.Duration) (*Event, error)
	Close()
	IsConnected() bool
}
