// Package identity normalizes program names and locations into the
// canonical keys the cache uses for hashing, matching, and partitioning.
package identity

import (
	"regexp"
	"strings"
)

// acronymPatterns expands program-name acronyms before punctuation
// stripping so "WOTC" and "work opportunity tax credit" normalize to the
// same key regardless of which form a source uses.
var acronymPatterns = []struct {
	pattern *regexp.Regexp
	expand  string
}{
	{regexp.MustCompile(`(?i)\bwotc\b`), "work opportunity tax credit"},
	{regexp.MustCompile(`(?i)\bojt\b`), "on the job training"},
	{regexp.MustCompile(`(?i)\bwioa\b`), "workforce innovation and opportunity act"},
	{regexp.MustCompile(`(?i)\btanf\b`), "temporary assistance for needy families"},
	{regexp.MustCompile(`(?i)\bsnap\b`), "supplemental nutrition assistance program"},
	{regexp.MustCompile(`(?i)\bedge\b`), "economic development for a growing economy"},
	{regexp.MustCompile(`(?i)\bez\b`), "enterprise zone"},
	{regexp.MustCompile(`(?i)\bnpwe\b`), "non paid work experience"},
	{regexp.MustCompile(`(?i)\bsei\b`), "special employer incentives"},
	{regexp.MustCompile(`(?i)\bvra\b`), "vocational rehabilitation"},
	{regexp.MustCompile(`(?i)\bvr&e\b`), "vocational rehabilitation and employment"},
	{regexp.MustCompile(`(?i)\bhire\b`), "hiring incentives to restore employment"},
	{regexp.MustCompile(`(?i)\bcte\b`), "career and technical education"},
}

var (
	nonWordRun   = regexp.MustCompile(`[^\w\s]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// NormalizeProgramName lowercases, expands known acronyms, strips
// punctuation, and collapses whitespace so two spellings of the same
// program hash and fuzzy-match identically.
func NormalizeProgramName(name string) string {
	if name == "" {
		return ""
	}
	n := strings.ToLower(strings.TrimSpace(name))
	for _, a := range acronymPatterns {
		n = a.pattern.ReplaceAllString(n, a.expand)
	}
	n = nonWordRun.ReplaceAllString(n, " ")
	n = whitespaceRun.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// Level identifies the jurisdiction tier a program belongs to.
type Level string

const (
	LevelFederal Level = "federal"
	LevelState   Level = "state"
	LevelCounty  Level = "county"
	LevelCity    Level = "city"
)

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// NormalizeLocation builds the canonical location key used to partition
// the cache by jurisdiction. Federal programs share a single key; state,
// county, and city keys nest the parent state so "springfield" in two
// different states never collide.
func NormalizeLocation(level Level, stateName, countyName, cityName string) string {
	switch level {
	case LevelFederal:
		return "federal"
	case LevelState:
		return slug(stateName)
	case LevelCounty:
		return slug(countyName) + "_" + slug(stateName)
	case LevelCity:
		return slug(cityName) + "_" + slug(stateName)
	default:
		return slug(stateName)
	}
}

// canonicalPopulation maps raw population phrasing to the category used
// in the target_populations columns. Ex-felons, the formerly
// incarcerated and returning citizens all fold into the single
// "ex-offenders" category.
var canonicalPopulation = map[string]string{
	"veterans":                "veterans",
	"veteran":                 "veterans",
	"people with disabilities": "people with disabilities",
	"disabled":                "people with disabilities",
	"disabilities":            "people with disabilities",
	"ex-offenders":            "ex-offenders",
	"ex-felons":               "ex-offenders",
	"returning citizens":      "ex-offenders",
	"formerly incarcerated":   "ex-offenders",
	"tanf recipients":         "TANF recipients",
	"tanf":                    "TANF recipients",
	"snap recipients":         "SNAP recipients",
	"snap":                    "SNAP recipients",
	"ssi recipients":          "SSI recipients",
	"ssi":                     "SSI recipients",
	"youth":                   "youth (18-24)",
	"youth (18-24)":           "youth (18-24)",
	"long-term unemployed":    "long-term unemployed",
	"dislocated workers":      "dislocated workers",
	"people in recovery":      "people in recovery",
	"those with poor credit":  "those with poor credit",
	"poor credit":             "those with poor credit",
	"low-income adults":       "low-income adults",
	"low-income":              "low-income adults",
}

// CanonicalPopulation maps a raw population string to its canonical
// category. The second return value is false when the input has no
// known mapping, in which case callers should keep the raw string
// rather than drop it.
func CanonicalPopulation(pop string) (string, bool) {
	v, ok := canonicalPopulation[strings.ToLower(strings.TrimSpace(pop))]
	return v, ok
}

// StandardPopulations is the fixed ordering used to build population-
// specific search queries (the top N drive per-level query generation).
var StandardPopulations = []string{
	"veterans",
	"people with disabilities",
	"ex-offenders",
	"TANF recipients",
	"SNAP recipients",
	"youth (18-24)",
}
