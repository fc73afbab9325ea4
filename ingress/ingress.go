// Package ingress is the boundary where platform-native payloads become
// events. Raw webhook/poll bodies are decoded, validated and normalized
// into the common Event shape before dispatch; a malformed payload is
// rejected with a ValidationError and never enters the dispatcher.
package ingress

import (
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/dispatcher"
	"github.com/hupe1980/socialmesh/logging"
)

// Event priority bands used by the normalizers. The dispatcher orders
// strictly by the numeric value, so the bands only need to be distinct.
const (
	PriorityCritical = 9
	PriorityHigh     = 7
	PriorityNormal   = 5
	PriorityLow      = 2
)

// CriticalFollowerCount is the follower count at which a mention is
// escalated to critical priority.
const CriticalFollowerCount = 10000

// MentionPayload is a platform mention notification.
type MentionPayload struct {
	Platform      string         `json:"platform"`
	PostID        string         `json:"post_id"`
	UserID        string         `json:"user_id"`
	Username      string         `json:"username"`
	DisplayName   string         `json:"display_name"`
	Text          string         `json:"text"`
	CreatedAt     string         `json:"created_at"`
	InReplyTo     string         `json:"in_reply_to,omitempty"`
	FollowerCount int            `json:"follower_count"`
	Verified      bool           `json:"verified"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// DMPayload is an inbound direct message notification.
type DMPayload struct {
	Platform  string         `json:"platform"`
	MessageID string         `json:"message_id"`
	UserID    string         `json:"user_id"`
	Username  string         `json:"username"`
	Text      string         `json:"text"`
	Vetted    bool           `json:"vetted"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TrendPayload is a trending-topic alert.
type TrendPayload struct {
	TrendName        string  `json:"trend_name"`
	Volume           int     `json:"volume"`
	Location         string  `json:"location"`
	RelevanceScore   float64 `json:"relevance_score"`
	SuggestedContent string  `json:"suggested_content"`
}

// WebhookPayload is the generic escape hatch for integration-specific
// triggers.
type WebhookPayload struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	SourceID  string         `json:"source_id"`
	UserID    string         `json:"user_id"`
	Username  string         `json:"username"`
	Content   string         `json:"content"`
	Priority  string         `json:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Options configures an Ingress.
type Options struct {
	Logger logging.Logger

	// MinTrendRelevance is the relevance score below which trend alerts
	// are dropped without dispatch.
	MinTrendRelevance float64
}

// Stats is a point-in-time snapshot of ingress counters.
type Stats struct {
	Received uint64 `json:"received"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Ignored  uint64 `json:"ignored"`
}

// Ingress normalizes raw payloads into events and dispatches them. The
// HTTP or polling server owning the wire protocol lives outside this
// module and hands raw bodies to these methods.
type Ingress struct {
	disp         *dispatcher.Dispatcher
	logger       logging.Logger
	minRelevance float64

	received atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
	ignored  atomic.Uint64
}

// New creates an Ingress bound to the given dispatcher.
func New(disp *dispatcher.Dispatcher, optFns ...func(o *Options)) *Ingress {
	opts := Options{
		Logger:            logging.NoOpLogger{},
		MinTrendRelevance: 0.5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Ingress{
		disp:         disp,
		logger:       opts.Logger,
		minRelevance: opts.MinTrendRelevance,
	}
}

// Mention normalizes and dispatches a mention payload. High-follower
// accounts are bumped to critical priority.
func (i *Ingress) Mention(raw []byte) (core.Event, error) {
	i.received.Add(1)

	var p MentionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Event{}, i.reject("payload", "not valid JSON: "+err.Error())
	}
	if p.PostID == "" {
		return core.Event{}, i.reject("post_id", "must not be empty")
	}
	if p.UserID == "" {
		return core.Event{}, i.reject("user_id", "must not be empty")
	}
	if p.Text == "" {
		return core.Event{}, i.reject("text", "must not be empty")
	}

	priority := PriorityHigh
	if p.FollowerCount > CriticalFollowerCount {
		priority = PriorityCritical
	}

	ev := core.NewEvent(core.EventMention, p.Text, priority)
	ev.Platform = p.Platform
	ev.SourceID = p.PostID
	ev.Actor = core.Actor{
		UserID:        p.UserID,
		DisplayName:   displayName(p.DisplayName, p.Username),
		FollowerCount: p.FollowerCount,
		Verified:      p.Verified,
	}
	if p.CreatedAt != "" {
		ev.Metadata["created_at"] = p.CreatedAt
	}
	if p.InReplyTo != "" {
		ev.Metadata["in_reply_to"] = p.InReplyTo
	}
	mergeMetadata(ev.Metadata, p.Metadata)

	return ev, i.dispatch(ev)
}

// DirectMessage normalizes and dispatches an inbound DM payload.
func (i *Ingress) DirectMessage(raw []byte) (core.Event, error) {
	i.received.Add(1)

	var p DMPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Event{}, i.reject("payload", "not valid JSON: "+err.Error())
	}
	if p.UserID == "" {
		return core.Event{}, i.reject("user_id", "must not be empty")
	}
	if p.Text == "" {
		return core.Event{}, i.reject("text", "must not be empty")
	}

	ev := core.NewEvent(core.EventDM, p.Text, PriorityHigh)
	ev.Platform = p.Platform
	ev.SourceID = p.MessageID
	ev.Actor = core.Actor{UserID: p.UserID, DisplayName: p.Username}
	ev.Metadata["actor_vetted"] = p.Vetted
	mergeMetadata(ev.Metadata, p.Metadata)

	return ev, i.dispatch(ev)
}

// Trend normalizes and dispatches a trending-topic alert. Alerts below the
// relevance floor are dropped without dispatch and without error; the
// caller can tell from the zero event ID.
func (i *Ingress) Trend(raw []byte) (core.Event, error) {
	i.received.Add(1)

	var p TrendPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Event{}, i.reject("payload", "not valid JSON: "+err.Error())
	}
	if p.TrendName == "" {
		return core.Event{}, i.reject("trend_name", "must not be empty")
	}
	if p.RelevanceScore < i.minRelevance {
		i.ignored.Add(1)
		i.logger.Debug("trend below relevance floor", "trend", p.TrendName, "relevance", p.RelevanceScore)
		return core.Event{}, nil
	}

	content := p.SuggestedContent
	if content == "" {
		content = "Trending: " + p.TrendName
	}

	priority := PriorityNormal
	if p.RelevanceScore >= 0.8 {
		priority = PriorityHigh
	}

	ev := core.NewEvent(core.EventCustom, content, priority)
	ev.SourceID = p.TrendName
	ev.Metadata["trending_topic"] = p.TrendName
	ev.Metadata["trend_volume"] = p.Volume
	ev.Metadata["relevance_score"] = p.RelevanceScore
	ev.Metadata["action_type"] = string(core.ActionPost)

	return ev, i.dispatch(ev)
}

// Webhook normalizes and dispatches a generic webhook payload. The payload
// must name a valid event type.
func (i *Ingress) Webhook(raw []byte) (core.Event, error) {
	i.received.Add(1)

	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Event{}, i.reject("payload", "not valid JSON: "+err.Error())
	}
	eventType := core.EventType(p.EventType)
	if !eventType.Valid() {
		return core.Event{}, i.reject("event_type", "unknown event type "+strconv.Quote(p.EventType))
	}

	ev := core.NewEvent(eventType, p.Content, priorityFor(p.Priority))
	ev.Platform = p.Source
	ev.SourceID = p.SourceID
	ev.Actor = core.Actor{UserID: p.UserID, DisplayName: p.Username}
	mergeMetadata(ev.Metadata, p.Metadata)

	return ev, i.dispatch(ev)
}

// Stats returns current ingress counters.
func (i *Ingress) Stats() Stats {
	return Stats{
		Received: i.received.Load(),
		Accepted: i.accepted.Load(),
		Rejected: i.rejected.Load(),
		Ignored:  i.ignored.Load(),
	}
}

func (i *Ingress) dispatch(ev core.Event) error {
	if err := i.disp.Dispatch(ev); err != nil {
		i.rejected.Add(1)
		return err
	}
	i.accepted.Add(1)
	i.logger.Debug("event ingested", "event_id", ev.ID, "type", string(ev.Type), "priority", ev.Priority)
	return nil
}

func (i *Ingress) reject(field, reason string) error {
	i.rejected.Add(1)
	err := &core.ValidationError{Field: field, Reason: reason}
	i.logger.Warn("payload rejected", "field", field, "reason", reason)
	return err
}

func priorityFor(s string) int {
	switch s {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func displayName(display, username string) string {
	if display != "" {
		return display
	}
	return username
}

func mergeMetadata(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
