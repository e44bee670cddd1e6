package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/config"
)

// TestLoad_Defaults verifies that Load() returns sensible defaults
// when no environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "CACHE_BACKEND", "SQLITE_PATH", "DATABASE_URL",
		"ANTHROPIC_API_KEY", "LLM_MODEL", "MAX_THINKING_BUDGET",
		"SEARCH_BASE_URL", "SEARCH_API_KEY",
		"TTL_FEDERAL_DAYS", "TTL_STATE_DAYS", "TTL_COUNTY_DAYS", "TTL_CITY_DAYS",
		"MAX_CONCURRENT_SESSIONS", "MAX_SESSIONS_PER_DAY", "MAX_SEARCH_PER_SESSION", "MAX_LLM_PER_SESSION",
		"DEMO_MODE", "MAX_ROI_ROUNDS", "REDIS_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := config.Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.CacheBackend)
	assert.Equal(t, 30*24*time.Hour, cfg.TTL.Federal)
	assert.Equal(t, 30*24*time.Hour, cfg.TTL.State)
	assert.Equal(t, 14*24*time.Hour, cfg.TTL.County)
	assert.Equal(t, 7*24*time.Hour, cfg.TTL.City)
	assert.Equal(t, 3, cfg.MaxROIRounds)
	assert.False(t, cfg.DemoMode)
}

// TestLoad_Overrides verifies that environment variables correctly
// override default values.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_BACKEND", "postgres")
	t.Setenv("TTL_CITY_DAYS", "3")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "1")
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("MAX_ROI_ROUNDS", "5")

	cfg := config.Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.CacheBackend)
	assert.Equal(t, 3*24*time.Hour, cfg.TTL.City)
	assert.Equal(t, 1, cfg.Limits.MaxConcurrentSessions)
	assert.True(t, cfg.DemoMode)
	assert.Equal(t, 5, cfg.MaxROIRounds)
}

// TestValidate_RequiresCredentialsOutsideDemoMode verifies the
// fail-fast check the binary runs before opening a cache backend.
func TestValidate_RequiresCredentialsOutsideDemoMode(t *testing.T) {
	cfg := config.Load()
	cfg.DemoMode = false
	cfg.AnthropicAPIKey = ""
	cfg.SearchAPIKey = ""
	require.Error(t, cfg.Validate())

	cfg.DemoMode = true
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := config.Load()
	cfg.DemoMode = true
	cfg.CacheBackend = "mongo"
	assert.Error(t, cfg.Validate())
}
