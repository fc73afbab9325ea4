package testutil

import (
	"github.com/hupe1980/socialmesh/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Type(core.EventDM).Actor("u1", 500).Content("hey").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	eventType core.EventType
	content   string
	priority  int
	platform  string
	sourceID  string
	actor     core.Actor
	metadata  map[string]any
	id        string
}

// NewEventBuilder creates a builder defaulting to a priority-5 mention.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{eventType: core.EventMention, priority: 5}
}

// Type sets the event type (chainable).
func (b *EventBuilder) Type(t core.EventType) *EventBuilder { b.eventType = t; return b }

// Content sets the event content (chainable).
func (b *EventBuilder) Content(c string) *EventBuilder { b.content = c; return b }

// Priority sets the event priority (chainable).
func (b *EventBuilder) Priority(p int) *EventBuilder { b.priority = p; return b }

// Platform sets the originating platform (chainable).
func (b *EventBuilder) Platform(p string) *EventBuilder { b.platform = p; return b }

// Source sets the platform object ID the event refers to (chainable).
func (b *EventBuilder) Source(id string) *EventBuilder { b.sourceID = id; return b }

// ID overrides the auto-generated event ID (chainable). Use mainly where
// determinism matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Actor sets the triggering actor's ID and follower count (chainable).
func (b *EventBuilder) Actor(userID string, followers int) *EventBuilder {
	b.actor.UserID = userID
	b.actor.FollowerCount = followers
	return b
}

// Verified marks the actor as verified (chainable).
func (b *EventBuilder) Verified() *EventBuilder { b.actor.Verified = true; return b }

// Meta sets one metadata key (chainable).
func (b *EventBuilder) Meta(key string, value any) *EventBuilder {
	if b.metadata == nil {
		b.metadata = map[string]any{}
	}
	b.metadata[key] = value
	return b
}

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.eventType, b.content, b.priority)
	if b.id != "" {
		ev.ID = b.id
	}
	ev.Platform = b.platform
	ev.SourceID = b.sourceID
	ev.Actor = b.actor
	for k, v := range b.metadata {
		ev.Metadata[k] = v
	}
	return ev
}
