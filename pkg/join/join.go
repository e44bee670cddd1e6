// Package join reconciles the programs returned by parallel discovery
// workers into a single deduplicated set, then tags each record with
// the validation issues a downstream reviewer should see.
package join

import (
	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
)

// MergeThreshold is the token-set-ratio floor for merging two
// within-level programs from different workers. Stricter than the
// cache's 80 (see pkg/discovery) because cross-worker matches come
// from the same search corpus within one run and are less likely to
// be genuine near-duplicates than a months-apart cache reconfirmation.
const MergeThreshold = 90.0

// Merge walks programs in arrival order and folds within-level
// near-duplicates together, keeping the better record on each merge.
// Cross-level matches are never merged — a state "Enterprise Zone"
// program is distinct from a city one of the same name.
func Merge(programs []programcache.Program) []programcache.Program {
	var merged []programcache.Program

	for _, candidate := range programs {
		matchIdx := -1
		for i, existing := range merged {
			if existing.GovernmentLevel != candidate.GovernmentLevel {
				continue
			}
			candidates := []identity.CandidateProgram{{
				ProgramName:           existing.ProgramName,
				ProgramNameNormalized: existing.ProgramNameNormalized,
				Agency:                existing.Agency,
			}}
			if identity.FuzzyMatchProgram(candidate.ProgramName, candidate.Agency, candidates, MergeThreshold) == 0 {
				matchIdx = i
				break
			}
		}

		if matchIdx == -1 {
			merged = append(merged, candidate)
			continue
		}

		if shouldReplace(merged[matchIdx], candidate) {
			merged[matchIdx] = candidate
		}
	}

	return merged
}

// shouldReplace decides which of two matched records survives a merge:
// higher confidence wins outright; on a tie, the longer description
// wins on the theory that it carries more extracted detail.
func shouldReplace(existing, candidate programcache.Program) bool {
	existingRank := confidenceRank(existing.Confidence)
	candidateRank := confidenceRank(candidate.Confidence)
	if candidateRank != existingRank {
		return candidateRank > existingRank
	}
	return len(candidate.Description) > len(existing.Description)
}

func confidenceRank(c programcache.Confidence) int {
	switch c {
	case programcache.ConfidenceHigh:
		return 3
	case programcache.ConfidenceMedium:
		return 2
	default:
		return 1
	}
}
