// Package core defines the shared data model and collaborator contracts of
// SocialMesh: events, candidate actions, value scores, gate results, learner
// insights and the interfaces (platform adapter, content generator, record
// store) that external integrations implement. All other packages depend on
// core; core depends on nothing but the standard library and uuid.
package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for events and actions.
//
// This function creates a UUID-based unique identifier that can be used
// for correlation throughout the framework.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }
