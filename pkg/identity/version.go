package identity

import "github.com/Masterminds/semver/v3"

// NormalizationVersion is bumped whenever the acronym map, population
// map, or normalization rules change in a way that would shift an
// already-cached row's normalized_name or location_key. Cache rows
// stamp the version they were written under; a mismatch at read time
// means the row's normalized fields are stale and must be recomputed
// before they can be trusted for fuzzy matching.
const NormalizationVersion = "1.0.0"

// IsStale reports whether a row stamped with storedVersion was written
// under an older normalization scheme than the one currently running.
// An unparsable stored version is treated as stale rather than erroring
// the caller, since a malformed stamp is itself evidence the row predates
// version stamping.
func IsStale(storedVersion string) bool {
	current, err := semver.NewVersion(NormalizationVersion)
	if err != nil {
		return false
	}
	stored, err := semver.NewVersion(storedVersion)
	if err != nil {
		return true
	}
	return stored.LessThan(current)
}
