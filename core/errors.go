package core

import (
	"errors"
	"fmt"
)

// ErrDuplicateInFlight is returned when a CoordinatedAction is submitted
// while an execution with the same ID is still outstanding. The second call
// is rejected, not queued.
var ErrDuplicateInFlight = errors.New("coordinated action already in flight")

// ValidationError reports a malformed Event or Action rejected at the
// ingress boundary. Malformed inputs are never enqueued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// CapacityError reports that the dispatcher queue was full and the event was
// dropped. Drops are counted and logged but are not fatal.
type CapacityError struct {
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("event queue at capacity (%d), event dropped", e.Capacity)
}

// ScoringConfigError reports an invalid scoring configuration (weights not
// summing to 1.0, unknown pillar). It is fatal at construction time; the
// process must not start with a broken weight set.
type ScoringConfigError struct {
	Reason string
}

func (e *ScoringConfigError) Error() string {
	return "scoring config: " + e.Reason
}

// ExternalServiceError wraps a failed platform adapter call. It is captured
// per-platform in the coordinator's result map and never propagated as a
// panic or returned error to sibling calls.
type ExternalServiceError struct {
	Platform string
	Op       ActionType
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("platform %s: %s failed: %v", e.Platform, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// CapabilityError reports that an adapter was asked to perform an action it
// does not support. Handled structurally like ExternalServiceError: the call
// fails fast without touching the wire.
type CapabilityError struct {
	Platform string
	Op       ActionType
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("platform %s does not support %s", e.Platform, e.Op)
}
