package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/extractor"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/llm"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/ratelimit"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/roi"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/router"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/searchclient"
)

type fakeCache struct {
	programs map[string]programcache.Program
}

func newFakeCache() *fakeCache { return &fakeCache{programs: map[string]programcache.Program{}} }

func (f *fakeCache) GetCachedPrograms(ctx context.Context, level identity.Level, locationKey string, ttl time.Duration) ([]programcache.Program, []programcache.Program, error) {
	var out []programcache.Program
	for _, p := range f.programs {
		if p.GovernmentLevel == level && p.LocationKey == locationKey {
			out = append(out, p)
		}
	}
	return out, nil, nil
}

func (f *fakeCache) UpsertProgram(ctx context.Context, in programcache.UpsertInput, level identity.Level, locationKey string, stateName, countyName, cityName string) (string, error) {
	key := identity.ComputeProgramID(identity.NormalizeProgramName(in.ProgramName), level, locationKey)
	f.programs[key] = programcache.Program{
		CacheKey: key, ProgramName: in.ProgramName, Agency: in.Agency, BenefitType: in.BenefitType,
		MaxValue: in.MaxValue, Description: in.Description, SourceURL: in.SourceURL,
		Confidence: in.Confidence, GovernmentLevel: level, LocationKey: locationKey,
	}
	return key, nil
}

func (f *fakeCache) ConfirmProgram(ctx context.Context, cacheKey string) error { return nil }

func (f *fakeCache) IncrementMissCount(ctx context.Context, level identity.Level, locationKey string, foundKeys map[string]struct{}) error {
	return nil
}

func (f *fakeCache) LogSearch(ctx context.Context, level identity.Level, locationKey string, queries []string, programsFound int) error {
	return nil
}

func (f *fakeCache) SeedFederalPrograms(ctx context.Context, programs []programcache.UpsertInput) error {
	for _, p := range programs {
		if _, err := f.UpsertProgram(ctx, p, identity.LevelFederal, "federal", "United States", "", ""); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCache) Stats(ctx context.Context) (programcache.Stats, error) {
	return programcache.Stats{TotalPrograms: len(f.programs)}, nil
}

func (f *fakeCache) Close() error { return nil }

type fakeSearcher struct{}

func (fakeSearcher) Search(ctx context.Context, query string) ([]searchclient.Snippet, error) {
	return []searchclient.Snippet{{URL: "https://example.gov", Content: "program info"}}, nil
}

type fakeLLM struct{}

func (fakeLLM) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolDefinition, options *llm.SamplingOptions) (*llm.Response, error) {
	return &llm.Response{Content: "[]"}, nil
}

// roiAnalysisLLM answers the ROI cycle's analyze() call with a fixed
// response that always needs a hire-count follow-up, so a round-trip
// through Shortlist → SubmitROIAnswers can be exercised without a real
// LLM.
type roiAnalysisLLM struct{}

func (roiAnalysisLLM) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolDefinition, options *llm.SamplingOptions) (*llm.Response, error) {
	return &llm.Response{Content: `{"estimated_value_per_hire":"$1 - $1","qualification_rate":"50%","complexity":"low","time_to_benefit":"4 weeks","confidence":"medium","needs_more_info":["number of hires"]}`}, nil
}

func newTestGraph() *Graph {
	return &Graph{
		Store:     NewStore(),
		Events:    NewEventBus(),
		Router:    router.New(fakeLLM{}),
		Cache:     newFakeCache(),
		Search:    fakeSearcher{},
		Extractor: extractor.New(fakeLLM{}),
		LLMClient: fakeLLM{},
		Retry:     searchclient.DefaultRetryPolicy,
	}
}

func TestGraph_StartDiscoveryReachesCompletedStatus(t *testing.T) {
	g := newTestGraph()
	sess := g.StartDiscovery(DiscoverRequest{Address: "123 Main St, Austin, TX 78701", LegalEntityType: "LLC"})

	require.Eventually(t, func() bool {
		s, _ := g.Store.Get(sess.ID)
		return s.getStatus() == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	s, ok := g.Store.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "Texas", s.StateName)
	assert.Contains(t, s.GovernmentLevels, identity.LevelFederal)
	assert.NotEmpty(t, s.ValidatedPrograms)
}

func TestGraph_ShortlistUnknownSessionErrors(t *testing.T) {
	g := newTestGraph()
	_, err := g.Shortlist(context.Background(), "does-not-exist", []string{"x"})
	assert.Error(t, err)
}

func TestGraph_FanOutSkipsLevelWhenSearchBudgetExhausted(t *testing.T) {
	g := newTestGraph()
	g.Limiter = ratelimit.New(ratelimit.Limits{MaxSearchPerSession: 0})

	sess := g.StartDiscovery(DiscoverRequest{Address: "123 Main St, Austin, TX 78701", LegalEntityType: "LLC"})
	g.Limiter.StartSession(sess.ID)

	require.Eventually(t, func() bool {
		s, _ := g.Store.Get(sess.ID)
		return s.getStatus() == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	s, ok := g.Store.Get(sess.ID)
	require.True(t, ok)
	assert.Empty(t, s.ValidatedPrograms)
	assert.NotEmpty(t, s.Errors)
}

func TestGraph_ROIAnswersApplyValueParsingFloorForVariesTaxCredit(t *testing.T) {
	g := newTestGraph()
	g.LLMClient = roiAnalysisLLM{}
	g.Router = router.New(roiAnalysisLLM{})

	sess := &Session{
		ID:     "sess-1",
		Status: StatusValidating,
		MergedPrograms: []programcache.Program{
			{CacheKey: "p1", ProgramName: "Some Tax Credit", BenefitType: "tax_credit", MaxValue: "Varies"},
		},
	}
	g.Store.Put(sess)

	_, err := g.Shortlist(context.Background(), sess.ID, []string{"p1"})
	require.NoError(t, err)

	st, err := g.SubmitROIAnswers(context.Background(), sess.ID, roi.Answers{"p1_num_hires": "1"})
	require.NoError(t, err)

	require.Len(t, st.Calculations, 1)
	assert.Equal(t, "$2,000", st.Calculations[0].RefinedTotalROI)
}

func TestGraph_ShortlistDeniedWhenLLMBudgetExhausted(t *testing.T) {
	g := newTestGraph()
	g.Limiter = ratelimit.New(ratelimit.Limits{MaxLLMPerSession: 0})

	sess := g.StartDiscovery(DiscoverRequest{Address: "123 Main St, Austin, TX 78701", LegalEntityType: "LLC"})
	g.Limiter.StartSession(sess.ID)

	require.Eventually(t, func() bool {
		s, _ := g.Store.Get(sess.ID)
		return s.getStatus() == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	_, err := g.Shortlist(context.Background(), sess.ID, []string{"x"})
	assert.Error(t, err)
}
