// Package programcache is the persistent knowledge base of incentive
// programs. Every program ever discovered is stored here; subsequent
// discovery runs read it first and only pay for web search on genuine
// gaps.
package programcache

import (
	"context"
	"time"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
)

// Confidence is a ratchet: once raised it is never silently lowered by
// a later write carrying a weaker signal.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// Higher returns the stronger of two confidence values.
func Higher(a, b Confidence) Confidence {
	if a.rank() >= b.rank() {
		return a
	}
	return b
}

// Program is a single incentive record as stored in and returned from
// the cache, independent of backend.
type Program struct {
	CacheKey              string         `json:"cache_key"`
	ProgramName           string         `json:"program_name"`
	ProgramNameNormalized string         `json:"program_name_normalized"`
	Agency                string         `json:"agency"`
	BenefitType           string         `json:"benefit_type"`
	Jurisdiction          string         `json:"jurisdiction"`
	MaxValue              string         `json:"max_value"`
	TargetPopulations     []string       `json:"target_populations"`
	Description           string         `json:"description"`
	SourceURL             string         `json:"source_url"`
	Confidence            Confidence     `json:"confidence"`
	GovernmentLevel       identity.Level `json:"government_level"`
	LocationKey           string         `json:"location_key"`
	FirstDiscoveredAt     time.Time      `json:"first_discovered_at"`
	LastVerifiedAt        time.Time      `json:"last_verified_at"`
	DiscoveryCount        int            `json:"discovery_count"`
	MissCount             int            `json:"miss_count"`
}

// isLikelyHallucination mirrors the read-time suppression filter: a
// program seen once but never reconfirmed across three subsequent
// misses is more likely an LLM fabrication than a real, just-quiet
// program. It is filtered at read time, never deleted, so a later
// genuine reconfirmation can still surface it.
func isLikelyHallucination(missCount, discoveryCount int) bool {
	return missCount >= 3 && discoveryCount <= 1
}

// FreshnessWindow is the default TTL used to split cached programs into
// fresh (recently reconfirmed) and stale (candidates for re-search).
const FreshnessWindow = 30 * 24 * time.Hour

// UpsertInput is the program-shaped write payload; CacheKey and the
// normalized name are computed by the cache, not supplied by the caller.
type UpsertInput struct {
	ProgramName       string
	Agency            string
	BenefitType       string
	Jurisdiction      string
	MaxValue          string
	TargetPopulations []string
	Description       string
	SourceURL         string
	Confidence        Confidence
}

// Cache is the backend-agnostic contract both the embedded (SQLite) and
// networked (Postgres) implementations satisfy.
type Cache interface {
	// GetCachedPrograms returns (fresh, stale) programs for a jurisdiction,
	// excluding likely hallucinations.
	GetCachedPrograms(ctx context.Context, level identity.Level, locationKey string, ttl time.Duration) (fresh, stale []Program, err error)

	// UpsertProgram inserts a new program or merges into an existing one,
	// ratcheting confidence and filling only empty fields. Returns the
	// cache key.
	UpsertProgram(ctx context.Context, in UpsertInput, level identity.Level, locationKey string, stateName, countyName, cityName string) (string, error)

	// ConfirmProgram touches last_verified_at, bumps discovery_count, and
	// resets miss_count — used when a cached program is reconfirmed by a
	// fresh search without carrying any new fields to merge.
	ConfirmProgram(ctx context.Context, cacheKey string) error

	// IncrementMissCount bumps miss_count on every cached program in the
	// jurisdiction NOT present in foundKeys — the programs a fresh search
	// pass failed to reconfirm.
	IncrementMissCount(ctx context.Context, level identity.Level, locationKey string, foundKeys map[string]struct{}) error

	// LogSearch records a completed search pass for observability.
	LogSearch(ctx context.Context, level identity.Level, locationKey string, queries []string, programsFound int) error

	// SeedFederalPrograms idempotently loads the known federal program
	// set. Safe to call on every startup.
	SeedFederalPrograms(ctx context.Context, programs []UpsertInput) error

	// Stats reports cache size for observability endpoints.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Stats is a coarse snapshot of cache population, surfaced over the
// HTTP API for operational visibility.
type Stats struct {
	TotalPrograms int            `json:"total_programs"`
	ByLevel       map[string]int `json:"by_level"`
	TotalSearches int            `json:"total_searches"`
}
