package identity

import (
	"sort"
	"strings"
)

// tokenSetRatio reimplements rapidfuzz's token_set_ratio: split both
// strings into unique word sets, then compare the shared-token string
// against each side's shared-plus-leftover string and take the best
// pairwise ratio. This makes "wotc program" and "wotc program federal"
// score high despite the length difference, which a plain Levenshtein
// ratio would punish.
func tokenSetRatio(a, b string) float64 {
	tokensA := uniqueSortedTokens(a)
	tokensB := uniqueSortedTokens(b)

	intersection, onlyA, onlyB := splitTokens(tokensA, tokensB)

	sect := strings.Join(intersection, " ")
	combinedA := strings.TrimSpace(strings.Join(append(append([]string{}, intersection...), onlyA...), " "))
	combinedB := strings.TrimSpace(strings.Join(append(append([]string{}, intersection...), onlyB...), " "))

	best := indelRatio(sect, combinedA)
	if r := indelRatio(sect, combinedB); r > best {
		best = r
	}
	if r := indelRatio(combinedA, combinedB); r > best {
		best = r
	}
	return best
}

func uniqueSortedTokens(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func splitTokens(a, b []string) (intersection, onlyA, onlyB []string) {
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	for _, t := range a {
		if _, ok := setB[t]; ok {
			intersection = append(intersection, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range b {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	return
}

// indelRatio scores two strings as 2*LCS(a,b) / (len(a)+len(b)) * 100,
// equivalent to a Levenshtein ratio restricted to insertions/deletions
// (no substitutions) — the metric rapidfuzz's plain ratio() uses.
func indelRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 100.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0.0
	}
	lcs := longestCommonSubsequence(a, b)
	return float64(2*lcs) / float64(la+lb) * 100.0
}

func longestCommonSubsequence(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// CandidateProgram is the minimal shape FuzzyMatchProgram needs from a
// cached row — callers pass their own record type satisfying this.
type CandidateProgram struct {
	ProgramName           string
	ProgramNameNormalized string
	Agency                string
}

// FuzzyMatchProgram finds the cached candidate that best matches a newly
// discovered program, combining name similarity (weight 0.7) with agency
// similarity (weight 0.3). When either side is missing an agency, agency
// similarity defaults to 50 rather than 0 or 100 — an unknown agency is
// neither a confirming nor a disqualifying signal. Returns the index of
// the best match in candidates, or -1 if nothing clears the threshold.
func FuzzyMatchProgram(newName, newAgency string, candidates []CandidateProgram, threshold float64) int {
	normalizedNew := NormalizeProgramName(newName)
	if normalizedNew == "" {
		return -1
	}
	agencyNew := strings.ToLower(strings.TrimSpace(newAgency))

	bestIdx := -1
	bestScore := 0.0
	for i, c := range candidates {
		cachedName := c.ProgramNameNormalized
		if cachedName == "" {
			cachedName = NormalizeProgramName(c.ProgramName)
		}
		agencyCached := strings.ToLower(strings.TrimSpace(c.Agency))

		nameScore := tokenSetRatio(normalizedNew, cachedName)
		agencyScore := 50.0
		if agencyNew != "" && agencyCached != "" {
			agencyScore = tokenSetRatio(agencyNew, agencyCached)
		}
		combined := nameScore*0.7 + agencyScore*0.3

		if combined > bestScore {
			bestScore = combined
			bestIdx = i
		}
	}

	if bestScore >= threshold {
		return bestIdx
	}
	return -1
}
