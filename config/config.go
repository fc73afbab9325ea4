// Package config defines process configuration and its loading hooks.
// Configuration layers defaults, an optional YAML file and SOCIALMESH_
// environment variables; weight and threshold invariants are validated at
// load so a misconfigured process never starts.
package config

import (
	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/score"
)

// Config contains process configuration. Durations are expressed in
// seconds to keep the file and env representations flat.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// QueueCapacity bounds the dispatcher's priority queue.
	QueueCapacity int `koanf:"queue_capacity"`

	// HistorySize bounds the dispatcher's delivered-event ring.
	HistorySize int `koanf:"history_size"`

	// MaxConcurrentHandlers bounds handler goroutines per delivery.
	MaxConcurrentHandlers int `koanf:"max_concurrent_handlers"`

	// GraceWindowSeconds is the dispatcher health probe's stall allowance.
	GraceWindowSeconds int `koanf:"grace_window_seconds"`

	// CallTimeoutSeconds bounds a single platform call.
	CallTimeoutSeconds int `koanf:"call_timeout_seconds"`

	// PressureThreshold is the consecutive platform failure count that
	// raises the coordinator's pressure signal.
	PressureThreshold int `koanf:"pressure_threshold"`

	// HeartbeatIntervalSeconds is the supervisor's poll interval.
	HeartbeatIntervalSeconds int `koanf:"heartbeat_interval_seconds"`

	// FailureThreshold is the consecutive health check failure count that
	// triggers a service restart.
	FailureThreshold int `koanf:"failure_threshold"`

	// RestartBackoffSeconds and RestartBackoffMaxSeconds bound the
	// exponential backoff between restart attempts.
	RestartBackoffSeconds    int `koanf:"restart_backoff_seconds"`
	RestartBackoffMaxSeconds int `koanf:"restart_backoff_max_seconds"`

	// StageBuffer is the pipeline's inter-stage channel capacity.
	StageBuffer int `koanf:"stage_buffer"`

	// DefaultPlatforms receive actions for events without a platform.
	DefaultPlatforms []string `koanf:"default_platforms"`

	// ActiveHoursStart/End define when the gate allows posting (local
	// hours 0-23; equal values disable the check).
	ActiveHoursStart int `koanf:"active_hours_start"`
	ActiveHoursEnd   int `koanf:"active_hours_end"`

	// Weights overrides the pillar weight set. Must cover all eight
	// pillars and sum to 1.0.
	Weights map[string]float64 `koanf:"weights"`

	// Thresholds overrides per-action-type score thresholds.
	Thresholds map[string]float64 `koanf:"thresholds"`

	// SensitiveKeywords and FinancialKeywords feed the gate's escalation
	// matching.
	SensitiveKeywords []string `koanf:"sensitive_keywords"`
	FinancialKeywords []string `koanf:"financial_keywords"`

	// MinTrendRelevance is the ingress relevance floor for trend alerts.
	MinTrendRelevance float64 `koanf:"min_trend_relevance"`
}

// New creates a Config with defaults matching the package-level defaults
// of the services it configures.
func New() *Config {
	weights := make(map[string]float64, len(score.DefaultWeights))
	for p, w := range score.DefaultWeights {
		weights[string(p)] = w
	}
	thresholds := make(map[string]float64, len(score.DefaultThresholds))
	for t, v := range score.DefaultThresholds {
		thresholds[string(t)] = v
	}
	return &Config{
		LogLevel:                 "info",
		QueueCapacity:            1024,
		HistorySize:              1000,
		MaxConcurrentHandlers:    32,
		GraceWindowSeconds:       30,
		CallTimeoutSeconds:       10,
		PressureThreshold:        3,
		HeartbeatIntervalSeconds: 30,
		FailureThreshold:         3,
		RestartBackoffSeconds:    60,
		RestartBackoffMaxSeconds: 600,
		StageBuffer:              64,
		ActiveHoursStart:         0,
		ActiveHoursEnd:           0,
		Weights:                  weights,
		Thresholds:               thresholds,
		MinTrendRelevance:        0.5,
	}
}

// PillarWeights converts the flat weight map into the typed form consumed
// by the calculator.
func (c *Config) PillarWeights() map[core.PillarID]float64 {
	out := make(map[core.PillarID]float64, len(c.Weights))
	for name, w := range c.Weights {
		out[core.PillarID(name)] = w
	}
	return out
}

// ActionThresholds converts the flat threshold map into the typed form
// consumed by the calculator.
func (c *Config) ActionThresholds() map[core.ActionType]float64 {
	out := make(map[core.ActionType]float64, len(c.Thresholds))
	for name, v := range c.Thresholds {
		out[core.ActionType(name)] = v
	}
	return out
}
