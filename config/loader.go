package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hupe1980/socialmesh/core"
)

// Load builds a Config by layering defaults, an optional file and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SOCIALMESH_CONFIG is set
//  3. env (prefix SOCIALMESH_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SOCIALMESH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: SOCIALMESH_LOG_LEVEL, SOCIALMESH_QUEUE_CAPACITY, ...
	// Keys keep their underscores to match the koanf tags on the struct.
	envProvider := env.Provider("SOCIALMESH_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "socialmesh_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the invariants a running process depends on. A config
// failing here must prevent startup.
func (c *Config) Validate() error {
	if err := core.ValidateWeights(c.PillarWeights()); err != nil {
		return err
	}
	for name, v := range c.Thresholds {
		if !core.ActionType(name).Valid() {
			return &core.ScoringConfigError{Reason: fmt.Sprintf("threshold for unknown action type %q", name)}
		}
		if v < 0 || v > 100 {
			return &core.ScoringConfigError{Reason: fmt.Sprintf("threshold for %q outside 0..100", name)}
		}
	}
	if c.ActiveHoursStart < 0 || c.ActiveHoursStart > 23 || c.ActiveHoursEnd < 0 || c.ActiveHoursEnd > 23 {
		return &core.ValidationError{Field: "active_hours", Reason: "hours must be within 0..23"}
	}
	if c.QueueCapacity < 1 {
		return &core.ValidationError{Field: "queue_capacity", Reason: "must be positive"}
	}
	if c.MinTrendRelevance < 0 || c.MinTrendRelevance > 1 {
		return &core.ValidationError{Field: "min_trend_relevance", Reason: "must be within 0..1"}
	}
	return nil
}
