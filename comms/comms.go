// Package comms provides the in-process domain event bus. Writers publish
// after a successful change; the activity recorder and the SSE stream
// subscribe.
package comms

import (
	"context"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	TaskCreated        EventType = "task.created"
	TaskUpdated        EventType = "task.updated"
	TaskDeleted        EventType = "task.deleted"
	TaskStatusChanged  EventType = "task.status_changed"
	ProjectCreated     EventType = "project.created"
	ProjectUpdated     EventType = "project.updated"
	ProjectDeleted     EventType = "project.deleted"
	AttachmentUploaded EventType = "attachment.uploaded"
	ReminderSent       EventType = "reminder.sent"
	MemberJoined       EventType = "team.member_joined"
)

// AllTopics subscribes a handler to every event type.
const AllTopics = "*"

// Event describes one change to a domain object.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     int64     `json:"user_id"` // actor; 0 for system events
	ObjectType string    `json:"object_type"`
	ObjectID   int64     `json:"object_id"`
	ProjectID  *int64    `json:"project_id,omitempty"`
	FromState  string    `json:"from_state,omitempty"`
	ToState    string    `json:"to_state,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Handler processes a published event.
type Handler func(ctx context.Context, ev *Event) error

// Bus fans events out to subscribers.
type Bus interface {
	// Publish delivers ev to handlers subscribed to its type and to AllTopics.
	// ID and Timestamp are filled when empty.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for an event type or AllTopics.
	// Returns an unsubscribe function.
	Subscribe(topic string, handler Handler) (unsubscribe func())

	// History returns the most recent events caused by userID.
	History(userID int64, limit int) ([]*Event, error)
}
