package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds process-wide configuration for the discovery service,
// loaded once at startup from environment variables. Grounded on the
// teacher's env-var Load() pattern in the original config.go, extended
// with every field SPEC_FULL.md §4/§6 calls configurable: cache
// backend selection, per-level TTLs, rate-limit ceilings, the LLM and
// search provider credentials, and demo mode.
type Config struct {
	Port     string
	LogLevel string

	// CacheBackend selects the programcache implementation: "sqlite"
	// (embedded, local development) or "postgres" (networked,
	// production). Both expose identical Cache semantics.
	CacheBackend string
	SQLitePath   string
	DatabaseURL  string

	AnthropicAPIKey   string
	LLMModel          string
	MaxThinkingBudget int

	SearchBaseURL string
	SearchAPIKey  string

	TTL TTLConfig

	Limits RateLimits

	// RedisURL, when set, switches the per-session search/LLM call
	// ceilings to a Redis-backed limiter so a horizontally-scaled
	// deployment shares one ceiling instead of each process enforcing
	// its own. Empty means single-process, in-memory enforcement.
	RedisURL string

	// DemoMode disables external search/LLM calls and drives the
	// scripted simulation instead; bounded monetary estimates in the
	// ROI cycle use the lower demo cap when set.
	DemoMode bool

	// MaxROIRounds bounds the ROI refinement state machine.
	MaxROIRounds int
}

// TTLConfig is the per-level cache freshness window. Defaults mirror
// spec.md's stated rationale: federal programs change slowly, city
// programs churn fast. The values are loaded from the environment, but
// no cache read uses them: discovery.Worker applies
// programcache.FreshnessWindow (30 days) to every level.
type TTLConfig struct {
	Federal time.Duration
	State   time.Duration
	County  time.Duration
	City    time.Duration
}

// RateLimits mirrors ratelimit.Limits; kept as a separate type here so
// pkg/config has no import dependency on pkg/ratelimit, matching the
// teacher's convention of config structs being leaf types.
type RateLimits struct {
	MaxConcurrentSessions int
	MaxSessionsPerDay     int
	MaxSearchPerSession   int
	MaxLLMPerSession      int
}

// Load reads configuration from the environment, applying the same
// safe-default-in-dev-mode posture as the teacher's Load(): every
// field has a usable fallback so the service boots without any env
// vars set.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		CacheBackend: getEnv("CACHE_BACKEND", "sqlite"),
		SQLitePath:   getEnv("SQLITE_PATH", "./incentive_cache.db"),
		DatabaseURL:  getEnv("DATABASE_URL", "postgres://incentives@localhost:5432/incentives?sslmode=disable"),

		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		LLMModel:          getEnv("LLM_MODEL", "claude-3-5-sonnet-latest"),
		MaxThinkingBudget: getEnvInt("MAX_THINKING_BUDGET", 0),

		SearchBaseURL: getEnv("SEARCH_BASE_URL", "https://api.search.example.com"),
		SearchAPIKey:  os.Getenv("SEARCH_API_KEY"),

		TTL: TTLConfig{
			Federal: getEnvDays("TTL_FEDERAL_DAYS", 30),
			State:   getEnvDays("TTL_STATE_DAYS", 30),
			County:  getEnvDays("TTL_COUNTY_DAYS", 14),
			City:    getEnvDays("TTL_CITY_DAYS", 7),
		},

		Limits: RateLimits{
			MaxConcurrentSessions: getEnvInt("MAX_CONCURRENT_SESSIONS", 4),
			MaxSessionsPerDay:     getEnvInt("MAX_SESSIONS_PER_DAY", 200),
			MaxSearchPerSession:   getEnvInt("MAX_SEARCH_PER_SESSION", 40),
			MaxLLMPerSession:      getEnvInt("MAX_LLM_PER_SESSION", 40),
		},

		RedisURL: os.Getenv("REDIS_URL"),

		DemoMode:     getEnv("DEMO_MODE", "false") == "true",
		MaxROIRounds: getEnvInt("MAX_ROI_ROUNDS", 3),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDays(key string, fallbackDays int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackDays)) * 24 * time.Hour
}

// Validate reports the first configuration error found, giving the
// binary a single place to fail fast before opening a cache backend
// or serving a request.
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown cache backend %q (want sqlite or postgres)", c.CacheBackend)
	}
	if !c.DemoMode && c.AnthropicAPIKey == "" {
		return fmt.Errorf("config: ANTHROPIC_API_KEY is required outside demo mode")
	}
	if !c.DemoMode && c.SearchAPIKey == "" {
		return fmt.Errorf("config: SEARCH_API_KEY is required outside demo mode")
	}
	return nil
}
