package core

// ActionType is the closed set of outbound actions the agent can take.
type ActionType string

const (
	// ActionPost publishes new standalone content.
	ActionPost ActionType = "post"
	// ActionReply responds to existing content.
	ActionReply ActionType = "reply"
	// ActionDM sends a direct message.
	ActionDM ActionType = "dm"
	// ActionLike marks existing content as liked.
	ActionLike ActionType = "like"
	// ActionFollow follows another account.
	ActionFollow ActionType = "follow"
)

// ActionTypes lists all valid action types.
var ActionTypes = []ActionType{ActionPost, ActionReply, ActionDM, ActionLike, ActionFollow}

// Valid reports whether t is a member of the closed action type set.
func (t ActionType) Valid() bool {
	switch t {
	case ActionPost, ActionReply, ActionDM, ActionLike, ActionFollow:
		return true
	}
	return false
}

// Idempotent reports whether repeating the action is harmless. The
// coordinator may retry idempotent actions once; write actions (post, reply,
// dm) are never retried to avoid duplicate posts.
func (t ActionType) Idempotent() bool {
	return t == ActionLike || t == ActionFollow
}

// Action is a candidate outbound action produced by an event handler. It is
// owned by the producing call until the gate consumes it.
type Action struct {
	Type    ActionType     `json:"type"`
	Content string         `json:"content"`
	Context map[string]any `json:"context,omitempty"`
}

// Validate checks structural invariants on a candidate action.
func (a Action) Validate() error {
	if !a.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "unknown action type"}
	}
	if a.Content == "" && (a.Type == ActionPost || a.Type == ActionReply || a.Type == ActionDM) {
		return &ValidationError{Field: "content", Reason: "content actions require content"}
	}
	return nil
}

// CoordinatedAction is a single logical action fanned out to multiple
// platforms. PerPlatformOverrides replaces BaseContent for the named
// platform. An in-flight CoordinatedAction with the same ID must not be
// executed twice concurrently.
type CoordinatedAction struct {
	ID                   string            `json:"id"`
	Type                 ActionType        `json:"type"`
	BaseContent          string            `json:"base_content"`
	PerPlatformOverrides map[string]string `json:"per_platform_overrides,omitempty"`
	TargetPlatforms      []string          `json:"target_platforms"`
	// TargetID is the platform object acted upon for reply/like, the user
	// for follow. Empty for plain posts.
	TargetID string `json:"target_id,omitempty"`
}

// NewCoordinatedAction creates a multi-destination action with a generated ID.
func NewCoordinatedAction(actionType ActionType, content string, platforms ...string) CoordinatedAction {
	return CoordinatedAction{
		ID:              NewID(),
		Type:            actionType,
		BaseContent:     content,
		TargetPlatforms: platforms,
	}
}

// ContentFor returns the content to send to a platform, applying any
// per-platform override.
func (a CoordinatedAction) ContentFor(platform string) string {
	if override, ok := a.PerPlatformOverrides[platform]; ok {
		return override
	}
	return a.BaseContent
}
