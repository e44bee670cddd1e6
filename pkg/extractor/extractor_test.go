package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/llm"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/searchclient"
)

type fakeClient struct {
	content string
}

func (f *fakeClient) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolDefinition, options *llm.SamplingOptions) (*llm.Response, error) {
	return &llm.Response{Content: f.content}, nil
}

func TestExtract_ValidProgramsPass(t *testing.T) {
	e := New(&fakeClient{content: `[
		{"program_name": "WOTC", "agency": "DOL", "benefit_type": "tax_credit", "target_populations": ["veterans"]}
	]`})

	out, err := e.Extract(context.Background(), Request{Level: identity.LevelFederal, Location: "United States", LocationKey: "federal"},
		[]searchclient.Snippet{{URL: "https://dol.gov", Content: "wotc info"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "WOTC", out[0].ProgramName)
	assert.Equal(t, "Unknown", out[0].MaxValue)
	assert.Equal(t, "low", out[0].Confidence)
	assert.Equal(t, identity.ComputeProgramID(identity.NormalizeProgramName("WOTC"), identity.LevelFederal, "federal"), out[0].ID)
}

func TestExtract_MissingRequiredFieldSkipped(t *testing.T) {
	e := New(&fakeClient{content: `[{"program_name": "Incomplete"}]`})

	out, err := e.Extract(context.Background(), Request{Level: identity.LevelState, Location: "Texas"},
		[]searchclient.Snippet{{Content: "x"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExtract_NoSnippetsReturnsNil(t *testing.T) {
	e := New(&fakeClient{content: "[]"})
	out, err := e.Extract(context.Background(), Request{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestExtract_MalformedJSONReturnsEmptyNoError(t *testing.T) {
	e := New(&fakeClient{content: "not json at all"})
	out, err := e.Extract(context.Background(), Request{}, []searchclient.Snippet{{Content: "x"}})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestExtract_StripsMarkdownFence(t *testing.T) {
	e := New(&fakeClient{content: "```json\n[{\"program_name\": \"X\", \"agency\": \"Y\", \"benefit_type\": \"tax_credit\"}]\n```"})
	out, err := e.Extract(context.Background(), Request{}, []searchclient.Snippet{{Content: "x"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
}
