package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/socialmesh/core"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "socialmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1024, cfg.QueueCapacity)
	assert.Equal(t, 3, cfg.PressureThreshold)
	assert.Len(t, cfg.Weights, len(core.Pillars))
	assert.NoError(t, core.ValidateWeights(cfg.PillarWeights()))
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
log_level: debug
queue_capacity: 256
active_hours_start: 8
active_hours_end: 22
default_platforms: ["x", "discord"]
thresholds:
  dm: 85
`)
	t.Setenv("SOCIALMESH_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 256, cfg.QueueCapacity)
	assert.Equal(t, 8, cfg.ActiveHoursStart)
	assert.Equal(t, []string{"x", "discord"}, cfg.DefaultPlatforms)
	assert.Equal(t, 85.0, cfg.Thresholds["dm"])
	// Untouched thresholds keep their defaults.
	assert.Equal(t, 65.0, cfg.Thresholds["reply"])
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "queue_capacity: 256\n")
	t.Setenv("SOCIALMESH_CONFIG", path)
	t.Setenv("SOCIALMESH_QUEUE_CAPACITY", "512")
	t.Setenv("SOCIALMESH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.QueueCapacity)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := writeConfigFile(t, `
weights:
  awareness: 0.5
  define: 0.5
  devise: 0.5
  validate: 0.1
  act_upon: 0.1
  learn: 0.1
  understand: 0.1
  evolve: 0.1
`)
	t.Setenv("SOCIALMESH_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	var cfgErr *core.ScoringConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsUnknownThresholdType(t *testing.T) {
	path := writeConfigFile(t, "thresholds:\n  retweet: 50\n")
	t.Setenv("SOCIALMESH_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Setenv("SOCIALMESH_CONFIG", "/nonexistent/socialmesh.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateActiveHours(t *testing.T) {
	cfg := New()
	cfg.ActiveHoursEnd = 24

	err := cfg.Validate()
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "active_hours", verr.Field)
}

func TestTypedConversions(t *testing.T) {
	cfg := New()

	weights := cfg.PillarWeights()
	require.Len(t, weights, len(core.Pillars))
	assert.NoError(t, core.ValidateWeights(weights))

	thresholds := cfg.ActionThresholds()
	assert.Equal(t, 80.0, thresholds[core.ActionDM])
	assert.Equal(t, 60.0, thresholds[core.ActionPost])
}
