package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/incentive-discovery/internal/httpapi"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/extractor"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/llm"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/orchestrator"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/ratelimit"
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

func newTestServer(t *testing.T) (*httptest.Server, *ratelimit.Limiter) {
	t.Helper()
	g := &orchestrator.Graph{
		Store:     orchestrator.NewStore(),
		Events:    orchestrator.NewEventBus(),
		Router:    router.New(fakeLLM{}),
		Cache:     newFakeCache(),
		Search:    fakeSearcher{},
		Extractor: extractor.New(fakeLLM{}),
		LLMClient: fakeLLM{},
		Retry:     searchclient.DefaultRetryPolicy,
	}
	limiter := ratelimit.New(ratelimit.Limits{MaxConcurrentSessions: 4, MaxSessionsPerDay: 100, MaxSearchPerSession: 40, MaxLLMPerSession: 40})
	srv := httpapi.NewServer(g, limiter, nil)
	return httptest.NewServer(srv.Router()), limiter
}

func TestDiscoverThenStatusReachesCompleted(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{
		"address":           "123 Main St, Austin, TX 78701",
		"legal_entity_type": "LLC",
	})
	resp, err := http.Post(ts.URL+"/incentives/discover", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var discover struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&discover))
	resp.Body.Close()
	require.NotEmpty(t, discover.SessionID)

	require.Eventually(t, func() bool {
		r, err := http.Get(ts.URL + "/incentives/" + discover.SessionID + "/status")
		require.NoError(t, err)
		defer r.Body.Close()
		var st struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&st)
		return st.Status == "completed"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDiscover_MissingAddressRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"legal_entity_type": "LLC"})
	resp, err := http.Post(ts.URL+"/incentives/discover", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDiscover_RateLimitDenialReturns429(t *testing.T) {
	ts, limiter := newTestServer(t)
	defer ts.Close()

	limiter.StartSession("blocker-1")
	limiter.StartSession("blocker-2")
	limiter.StartSession("blocker-3")
	limiter.StartSession("blocker-4")

	body, _ := json.Marshal(map[string]string{
		"address":           "1 First St",
		"legal_entity_type": "LLC",
	})
	resp, err := http.Post(ts.URL+"/incentives/discover", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestStatus_UnknownSessionReturns404(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/incentives/does-not-exist/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndUsage(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/usage")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
