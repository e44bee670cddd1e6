package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/discovery"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/extractor"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/join"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/llm"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/ratelimit"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/roi"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/router"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/searchclient"
)

// Graph wires the full pipeline: Router → fan-out discovery workers →
// Join → Validate → branch {admin notify, await-shortlist → ROI →
// report}. There is no LangGraph-style graph-compilation step here —
// the "graph" is a fixed Go call sequence with one genuine fan-out
// (errgroup) in the middle, since the shape never varies at runtime.
type Graph struct {
	Store     *Store
	Events    *EventBus
	Router    *router.Router
	Cache     programcache.Cache
	Search    searchclient.Searcher
	Extractor *extractor.Extractor
	LLMClient llm.Client
	Retry     searchclient.RetryPolicy

	// Limiter enforces the per-session search/LLM call ceilings
	// (spec.md §7). May be nil, in which case those ceilings are not
	// enforced — used by tests that don't exercise rate limiting.
	Limiter *ratelimit.Limiter

	// RedisLimiter, when set, takes over the search/LLM ceiling checks
	// from Limiter so a horizontally-scaled deployment shares one
	// ceiling across processes. Limiter still owns CanStartSession/
	// StartSession/Stats either way.
	RedisLimiter *ratelimit.RedisLimiter

	MaxROIRounds int
	DemoMode     bool
}

// DiscoverRequest is the public entry point's input.
type DiscoverRequest struct {
	Address         string
	LegalEntityType string
	IndustryCode    string
}

// StartDiscovery creates a session and launches the discovery pipeline
// in the background, returning immediately so the HTTP handler can
// respond with a session id without blocking on the full run.
func (g *Graph) StartDiscovery(req DiscoverRequest) *Session {
	sess := &Session{
		ID:              uuid.NewString(),
		Address:         req.Address,
		LegalEntityType: req.LegalEntityType,
		IndustryCode:    req.IndustryCode,
		Status:          StatusStarted,
		CreatedAt:       time.Now(),
		SearchProgress:  make(map[identity.Level]LevelProgress),
		DemoMode:        g.DemoMode,
	}
	g.Store.Put(sess)

	go g.run(context.Background(), sess)
	return sess
}

func (g *Graph) run(ctx context.Context, sess *Session) {
	sess.setStatus(StatusRouting)
	sess.CurrentPhase = "routing"
	g.Events.Publish(sess.ID, "routing", StatusRouting, "parsing address")

	route := g.Router.Route(ctx, router.Request{
		Address:         sess.Address,
		LegalEntityType: sess.LegalEntityType,
		IndustryCode:    sess.IndustryCode,
	})
	sess.StateName = route.StateName
	sess.CountyName = route.CountyName
	sess.CityName = route.CityName
	sess.GovernmentLevels = route.GovernmentLevels
	for _, level := range route.GovernmentLevels {
		sess.SearchProgress[level] = LevelPending
	}

	if err := g.fanOutDiscovery(ctx, sess); err != nil {
		g.fail(sess, err)
		return
	}

	sess.setStatus(StatusMerging)
	g.Events.Publish(sess.ID, "merging", StatusMerging, fmt.Sprintf("merging %d candidate programs", len(sess.Programs)))
	sess.MergedPrograms = join.Merge(sess.Programs)

	sess.setStatus(StatusValidating)
	g.Events.Publish(sess.ID, "validating", StatusValidating, "tagging validation issues")
	sess.ValidatedPrograms = join.Validate(sess.MergedPrograms)

	sess.setStatus(StatusCompleted)
	sess.CurrentPhase = "awaiting_shortlist"
	g.adminNotify(sess)
	g.Events.Publish(sess.ID, "completed", StatusCompleted, fmt.Sprintf("%d validated programs ready for shortlist", len(sess.ValidatedPrograms)))
}

// fanOutDiscovery runs one worker per government level concurrently.
// A single worker's failure is recorded on the session and does not
// abort the others — a partial jurisdictional result is still a
// usable result.
func (g *Graph) fanOutDiscovery(ctx context.Context, sess *Session) error {
	sess.setStatus(StatusDiscovering)
	g.Events.Publish(sess.ID, "discovering", StatusDiscovering, fmt.Sprintf("searching %d jurisdiction levels", len(sess.GovernmentLevels)))

	eg, egCtx := errgroup.WithContext(ctx)
	for _, level := range sess.GovernmentLevels {
		level := level
		eg.Go(func() error {
			sess.setProgress(level, LevelRunning)
			g.Events.Publish(sess.ID, "searching", StatusSearching, fmt.Sprintf("%s: searching", level))

			if ok, reason := g.checkSearchBudget(egCtx, sess.ID); !ok {
				sess.mu.Lock()
				sess.Errors = append(sess.Errors, fmt.Sprintf("%s discovery skipped: %s", level, reason))
				sess.mu.Unlock()
				sess.setProgress(level, LevelCompleted)
				return nil
			}

			w := &discovery.Worker{Cache: g.Cache, Search: g.Search, Extractor: g.Extractor, Retry: g.Retry}
			res, err := w.Run(egCtx, discovery.Request{
				Level:           level,
				StateName:       sess.StateName,
				CountyName:      sess.CountyName,
				CityName:        sess.CityName,
				LegalEntityType: sess.LegalEntityType,
				IndustryCode:    sess.IndustryCode,
			})
			if err != nil {
				sess.mu.Lock()
				sess.Errors = append(sess.Errors, fmt.Sprintf("%s discovery failed: %v", level, err))
				sess.mu.Unlock()
				sess.setProgress(level, LevelCompleted)
				return nil
			}

			sess.appendPrograms(res.Programs)
			sess.setProgress(level, LevelCompleted)
			g.Events.Publish(sess.ID, "searching", StatusSearching, fmt.Sprintf("%s: found %d programs", level, len(res.Programs)))
			return nil
		})
	}
	return eg.Wait()
}

// adminNotify is the admin-notification sink: it publishes an
// "admin_notify" event with the raw, merged and validated program
// counts on the session's event bus. Nothing is written to the log and
// no external notification channel is wired.
func (g *Graph) adminNotify(sess *Session) {
	g.Events.Publish(sess.ID, "admin_notify", sess.getStatus(),
		fmt.Sprintf("session %s: %d raw, %d merged, %d validated", sess.ID, len(sess.Programs), len(sess.MergedPrograms), len(sess.ValidatedPrograms)))
}

func (g *Graph) fail(sess *Session, err error) {
	sess.setStatus(StatusFailed)
	sess.Error = err.Error()
	g.Events.Publish(sess.ID, "failed", StatusFailed, err.Error())
	g.Events.Close(sess.ID)
	g.releaseSession(sess.ID)
}

// Shortlist gates the ROI cycle on the user's program selection and
// runs the first refinement round immediately, returning the
// generated clarifying questions.
func (g *Graph) Shortlist(ctx context.Context, sessionID string, programIDs []string) ([]roi.Question, error) {
	sess, ok := g.Store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	sess.ShortlistedProgramIDs = programIDs
	sess.ROIState = roi.State{Answers: roi.Answers{}}
	sess.setStatus(StatusROICycle)
	g.Events.Publish(sess.ID, "roi_cycle", StatusROICycle, fmt.Sprintf("%d programs shortlisted", len(programIDs)))

	if err := g.checkLLMBudget(ctx, sess.ID); err != nil {
		return nil, err
	}

	shortlisted := g.shortlistedPrograms(sess)
	cycle := roi.NewCycle(g.LLMClient)
	cycle.MaxRounds = g.maxROIRounds()

	if err := cycle.RunRound(ctx, &sess.ROIState, shortlisted); err != nil {
		return nil, err
	}
	g.applyValueParsingRules(sess, shortlisted)
	if sess.ROIState.IsComplete {
		sess.setStatus(StatusComplete)
		g.releaseSession(sess.ID)
	}
	return sess.ROIState.Questions, nil
}

// SubmitROIAnswers records the answers to the current round's
// questions and advances the cycle by one round.
func (g *Graph) SubmitROIAnswers(ctx context.Context, sessionID string, answers roi.Answers) (roi.State, error) {
	sess, ok := g.Store.Get(sessionID)
	if !ok {
		return roi.State{}, fmt.Errorf("session not found: %s", sessionID)
	}

	for k, v := range answers {
		sess.ROIState.Answers[k] = v
	}

	if err := g.checkLLMBudget(ctx, sess.ID); err != nil {
		return roi.State{}, err
	}

	shortlisted := g.shortlistedPrograms(sess)
	cycle := roi.NewCycle(g.LLMClient)
	cycle.MaxRounds = g.maxROIRounds()

	if err := cycle.RunRound(ctx, &sess.ROIState, shortlisted); err != nil {
		return roi.State{}, err
	}
	g.applyValueParsingRules(sess, shortlisted)
	if sess.ROIState.IsComplete {
		sess.setStatus(StatusComplete)
		g.Events.Publish(sess.ID, "complete", StatusComplete, "roi refinement complete")
		g.Events.Close(sess.ID)
		g.releaseSession(sess.ID)
	}
	return sess.ROIState, nil
}

// checkSearchBudget enforces the per-session search ceiling,
// preferring the Redis-backed limiter when one is configured so
// horizontally-scaled deployments share one ceiling. It is called once
// per jurisdiction level before that level's worker starts and charges
// one unit for the whole level; the 2 to 6 queries the worker then
// issues are not counted one by one.
func (g *Graph) checkSearchBudget(ctx context.Context, sessionID string) (bool, string) {
	if g.RedisLimiter != nil {
		ok, err := g.RedisLimiter.CheckAndIncrementSearch(ctx, sessionID)
		if err != nil {
			return true, ""
		}
		if !ok {
			return false, "search query limit reached for this session"
		}
		return true, ""
	}
	if g.Limiter == nil {
		return true, ""
	}
	ok, reason := g.Limiter.CheckSearch(sessionID)
	if ok {
		g.Limiter.IncrementSearch(sessionID)
	}
	return ok, reason
}

// checkLLMBudget enforces the per-session LLM-call ceiling before a
// refinement round spends one. A session with no registered counters
// (no limiter configured, or the session never went through
// StartSession) is let through — the limiter guards cost, not a hard
// session contract.
func (g *Graph) checkLLMBudget(ctx context.Context, sessionID string) error {
	if g.RedisLimiter != nil {
		ok, err := g.RedisLimiter.CheckAndIncrementLLM(ctx, sessionID)
		if err == nil && !ok {
			return fmt.Errorf("roi refinement denied: LLM call limit reached for this session")
		}
		return nil
	}
	if g.Limiter == nil {
		return nil
	}
	if ok, reason := g.Limiter.CheckLLM(sessionID); !ok {
		return fmt.Errorf("roi refinement denied: %s", reason)
	}
	g.Limiter.IncrementLLM(sessionID)
	return nil
}

func (g *Graph) releaseSession(sessionID string) {
	if g.Limiter != nil {
		g.Limiter.EndSession(sessionID)
	}
	if g.RedisLimiter != nil {
		_ = g.RedisLimiter.EndSession(context.Background(), sessionID)
	}
}

func (g *Graph) shortlistedPrograms(sess *Session) []programcache.Program {
	byID := make(map[string]programcache.Program, len(sess.MergedPrograms))
	for _, p := range sess.MergedPrograms {
		byID[p.CacheKey] = p
	}
	out := make([]programcache.Program, 0, len(sess.ShortlistedProgramIDs))
	for _, id := range sess.ShortlistedProgramIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// applyValueParsingRules re-renders each refined calculation's total
// through the special value-parsing rules (spec's API-level
// calculator), which operate on the program's own max_value/
// benefit_type rather than the LLM's self-reported range — the
// surface that makes boundary cases like a "Varies" tax credit
// flooring to a fixed per-hire estimate observable to callers of this
// package instead of only to roi.EstimatePerHire's own tests.
func (g *Graph) applyValueParsingRules(sess *Session, shortlisted []programcache.Program) {
	byID := make(map[string]programcache.Program, len(shortlisted))
	for _, p := range shortlisted {
		byID[p.CacheKey] = p
	}
	for i, calc := range sess.ROIState.Calculations {
		if calc.NumHiresUsed <= 0 {
			continue
		}
		p, ok := byID[calc.ProgramID]
		if !ok {
			continue
		}
		avgWage := sess.ROIState.Answers[calc.ProgramID+"_avg_wage"]
		sess.ROIState.Calculations[i].RefinedTotalROI = roi.RenderTotal(p.MaxValue, p.BenefitType, avgWage, calc.NumHiresUsed, sess.DemoMode)
	}
}

func (g *Graph) maxROIRounds() int {
	if g.MaxROIRounds > 0 {
		return g.MaxROIRounds
	}
	return roi.DefaultMaxRounds
}
