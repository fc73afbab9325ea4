package core

import "context"

// PriorityTier ranks how important a platform is for the agent's presence.
type PriorityTier int

const (
	// TierCritical is the primary platform; the agent must respond here.
	TierCritical PriorityTier = iota
	// TierHigh platforms should receive responses when possible.
	TierHigh
	// TierMedium platforms receive responses when value is high.
	TierMedium
	// TierLow platforms only receive exceptional content.
	TierLow
)

// String returns the tier name used in logs and status maps.
func (t PriorityTier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// CapabilitySet declares which action types a platform adapter supports.
type CapabilitySet map[ActionType]struct{}

// NewCapabilitySet builds a set from the given action types.
func NewCapabilitySet(types ...ActionType) CapabilitySet {
	s := make(CapabilitySet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the action type.
func (s CapabilitySet) Has(t ActionType) bool {
	_, ok := s[t]
	return ok
}

// PlatformAdapter is the capability contract a per-platform wire client must
// satisfy. Implementations are supplied by collaborators; the core only
// depends on this interface. An adapter asked to perform an action outside
// its capability set must fail fast with a CapabilityError instead of
// attempting the call.
type PlatformAdapter interface {
	// Platform returns the stable platform identifier (e.g. "x", "discord").
	Platform() string

	// Capabilities declares the supported action types.
	Capabilities() CapabilitySet

	// Connected reports whether the adapter currently holds a healthy
	// connection to its platform.
	Connected() bool

	// Events returns the adapter's native event source normalized into the
	// common Event shape. The channel closes when ctx is cancelled or the
	// connection ends.
	Events(ctx context.Context) (<-chan Event, error)

	// Post publishes content and returns the created object's platform ID.
	Post(ctx context.Context, content string) (string, error)

	// Reply responds to an existing object and returns the reply's ID.
	Reply(ctx context.Context, targetID, content string) (string, error)

	// DM sends a direct message to the given user and returns the
	// message's platform ID.
	DM(ctx context.Context, userID, content string) (string, error)

	// Like marks an existing object as liked.
	Like(ctx context.Context, targetID string) error

	// Follow follows the given user.
	Follow(ctx context.Context, userID string) error
}

// AdapterDescriptor summarizes a registered adapter for status reporting.
type AdapterDescriptor struct {
	Platform     string       `json:"platform"`
	Tier         PriorityTier `json:"tier"`
	Capabilities []ActionType `json:"capabilities"`
	Connected    bool         `json:"connected"`
}
