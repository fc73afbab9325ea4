package core

import (
	"fmt"
	"time"
)

// EventType is the closed set of external triggers the agent reacts to.
type EventType string

const (
	// EventMention is a public mention of the agent on a platform.
	EventMention EventType = "mention"
	// EventDM is a direct/private message addressed to the agent.
	EventDM EventType = "dm"
	// EventScheduled is a time-table trigger fired by an external scheduler.
	EventScheduled EventType = "scheduled"
	// EventWebhook is a platform callback delivered over the webhook ingress.
	EventWebhook EventType = "webhook"
	// EventCustom covers integration-specific triggers.
	EventCustom EventType = "custom"
)

// EventTypes lists all valid event types; handlers can be matched
// exhaustively against this set.
var EventTypes = []EventType{EventMention, EventDM, EventScheduled, EventWebhook, EventCustom}

// Valid reports whether t is a member of the closed event type set.
func (t EventType) Valid() bool {
	switch t {
	case EventMention, EventDM, EventScheduled, EventWebhook, EventCustom:
		return true
	}
	return false
}

// Actor identifies who triggered an event along with the trust signals the
// scoring heuristics consume.
type Actor struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	FollowerCount int    `json:"follower_count"`
	Verified      bool   `json:"verified"`
}

// Event is the unit of work flowing through the dispatcher. It is created by
// ingestion collaborators (webhook server, poller, adapter fan-in), consumed
// exactly once by the delivery loop and must be treated as immutable once
// enqueued. Higher Priority is delivered first; within a priority level
// events are delivered in arrival order.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Content    string         `json:"content"`
	Actor      Actor          `json:"actor"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Priority   int            `json:"priority"`
	Platform   string         `json:"platform,omitempty"`
	SourceID   string         `json:"source_id,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// NewEvent creates an event of the given type with a generated ID and a UTC
// receive timestamp. Metadata starts empty.
func NewEvent(eventType EventType, content string, priority int) Event {
	return Event{
		ID:         NewID(),
		Type:       eventType,
		Content:    content,
		Priority:   priority,
		Metadata:   map[string]any{},
		ReceivedAt: time.Now().UTC(),
	}
}

// Validate checks structural invariants enforced at the ingress boundary.
// A malformed event must never enter the dispatcher.
func (e Event) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if !e.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown event type %q", string(e.Type))}
	}
	if e.ReceivedAt.IsZero() {
		return &ValidationError{Field: "received_at", Reason: "must be set"}
	}
	return nil
}
