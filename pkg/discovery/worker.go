package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/extractor"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/searchclient"
)

// FuzzyMatchThreshold is the cache-lookup similarity floor. Looser than
// the cross-worker join threshold (90, see pkg/join) because a worker
// is matching its own extraction against its own jurisdiction's cache
// partition — the corpus is less likely to produce near-miss
// collisions than pooling multiple workers' results would.
const FuzzyMatchThreshold = 80.0

// InterQuerySleep dampens bursting against the search provider.
const InterQuerySleep = 500 * time.Millisecond

// Request describes the single (level, location) partition a Worker
// instance handles. Deliberately narrow — an orchestrator fan-out send
// carries only these fields, never the full session state, so workers
// can't accidentally read or pollute each other's accumulators.
type Request struct {
	Level           identity.Level
	StateName       string
	CountyName      string
	CityName        string
	LegalEntityType string
	IndustryCode    string
}

func (r Request) locationName() string {
	switch r.Level {
	case identity.LevelCity:
		if r.CityName != "" {
			return r.CityName
		}
	case identity.LevelCounty:
		if r.CountyName != "" {
			return r.CountyName
		}
	}
	return r.StateName
}

// Result is what a Worker contributes to the orchestrator's
// append-on-merge programs accumulator.
type Result struct {
	Level    identity.Level
	Programs []programcache.Program
}

// Worker runs the cache-first discovery algorithm for one jurisdiction
// partition.
type Worker struct {
	Cache     programcache.Cache
	Search    searchclient.Searcher
	Extractor *extractor.Extractor
	Retry     searchclient.RetryPolicy
}

// Run executes the 8-step algorithm from the jurisdiction worker
// contract: cache read, federal seeding, search, extraction, fuzzy
// reconciliation against the cache, miss accounting, search logging.
func (w *Worker) Run(ctx context.Context, req Request) (Result, error) {
	locationKey := identity.NormalizeLocation(req.Level, req.StateName, req.CountyName, req.CityName)

	fresh, stale, err := w.Cache.GetCachedPrograms(ctx, req.Level, locationKey, programcache.FreshnessWindow)
	if err != nil {
		return Result{}, fmt.Errorf("load cached programs: %w", err)
	}
	baseline := append(append([]programcache.Program{}, fresh...), stale...)

	if req.Level == identity.LevelFederal {
		if err := w.Cache.SeedFederalPrograms(ctx, FederalSeedPrograms); err != nil {
			return Result{}, fmt.Errorf("seed federal programs: %w", err)
		}
		fresh, stale, err = w.Cache.GetCachedPrograms(ctx, req.Level, locationKey, programcache.FreshnessWindow)
		if err != nil {
			return Result{}, fmt.Errorf("reload cache after federal seeding: %w", err)
		}
		baseline = append(append([]programcache.Program{}, fresh...), stale...)
	}

	merged := make(map[string]programcache.Program, len(baseline))
	for _, p := range baseline {
		merged[p.CacheKey] = p
	}

	queries := BuildQueries(req.Level, req.StateName, req.CountyName, req.CityName)
	var snippets []searchclient.Snippet
	for i, q := range queries {
		snippets = append(snippets, searchclient.SearchWithRetry(ctx, w.Search, w.Retry, q)...)
		if i < len(queries)-1 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(InterQuerySleep):
			}
		}
	}

	extracted, err := w.Extractor.Extract(ctx, extractor.Request{
		Level:           req.Level,
		Location:        req.locationName(),
		LocationKey:     locationKey,
		LegalEntityType: req.LegalEntityType,
		IndustryCode:    req.IndustryCode,
	}, snippets)
	if err != nil {
		return Result{}, fmt.Errorf("extract programs: %w", err)
	}

	candidates := make([]identity.CandidateProgram, len(baseline))
	for i, p := range baseline {
		candidates[i] = identity.CandidateProgram{
			ProgramName:           p.ProgramName,
			ProgramNameNormalized: p.ProgramNameNormalized,
			Agency:                p.Agency,
		}
	}

	found := make(map[string]struct{})
	for _, ext := range extracted {
		idx := identity.FuzzyMatchProgram(ext.ProgramName, ext.Agency, candidates, FuzzyMatchThreshold)
		if idx >= 0 {
			cacheKey := baseline[idx].CacheKey
			if err := w.Cache.ConfirmProgram(ctx, cacheKey); err != nil {
				return Result{}, fmt.Errorf("confirm matched program: %w", err)
			}
			updated := programcache.Program{
				CacheKey:          cacheKey,
				ProgramName:       ext.ProgramName,
				Agency:            ext.Agency,
				BenefitType:       ext.BenefitType,
				Jurisdiction:      ext.Jurisdiction,
				MaxValue:          ext.MaxValue,
				TargetPopulations: ext.TargetPopulations,
				Description:       ext.Description,
				SourceURL:         ext.SourceURL,
				Confidence:        programcache.Higher(baseline[idx].Confidence, programcache.Confidence(ext.Confidence)),
				GovernmentLevel:   req.Level,
				LocationKey:       locationKey,
			}
			merged[cacheKey] = updated
			found[cacheKey] = struct{}{}
			continue
		}

		newKey, err := w.Cache.UpsertProgram(ctx, programcache.UpsertInput{
			ProgramName:       ext.ProgramName,
			Agency:            ext.Agency,
			BenefitType:       ext.BenefitType,
			Jurisdiction:      ext.Jurisdiction,
			MaxValue:          ext.MaxValue,
			TargetPopulations: ext.TargetPopulations,
			Description:       ext.Description,
			SourceURL:         ext.SourceURL,
			Confidence:        programcache.Confidence(ext.Confidence),
		}, req.Level, locationKey, req.StateName, req.CountyName, req.CityName)
		if err != nil {
			return Result{}, fmt.Errorf("upsert new program: %w", err)
		}
		found[newKey] = struct{}{}
		merged[newKey] = programcache.Program{
			CacheKey:          newKey,
			ProgramName:       ext.ProgramName,
			Agency:            ext.Agency,
			BenefitType:       ext.BenefitType,
			MaxValue:          ext.MaxValue,
			TargetPopulations: ext.TargetPopulations,
			Description:       ext.Description,
			SourceURL:         ext.SourceURL,
			Confidence:        programcache.Confidence(ext.Confidence),
			GovernmentLevel:   req.Level,
			LocationKey:       locationKey,
		}
	}

	if err := w.Cache.IncrementMissCount(ctx, req.Level, locationKey, found); err != nil {
		return Result{}, fmt.Errorf("increment miss count: %w", err)
	}
	if err := w.Cache.LogSearch(ctx, req.Level, locationKey, queries, len(extracted)); err != nil {
		return Result{}, fmt.Errorf("log search: %w", err)
	}

	out := make([]programcache.Program, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	return Result{Level: req.Level, Programs: out}, nil
}
