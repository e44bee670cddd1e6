package join

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
)

func TestMerge_CrossLevelNeverMerges(t *testing.T) {
	programs := []programcache.Program{
		{ProgramName: "Enterprise Zone", Agency: "State Dept", GovernmentLevel: identity.LevelState, Confidence: programcache.ConfidenceMedium},
		{ProgramName: "Enterprise Zone", Agency: "City Dept", GovernmentLevel: identity.LevelCity, Confidence: programcache.ConfidenceMedium},
	}
	out := Merge(programs)
	assert.Len(t, out, 2)
}

func TestMerge_WithinLevelHigherConfidenceWins(t *testing.T) {
	programs := []programcache.Program{
		{ProgramName: "Workforce Training Grant", Agency: "Dept of Labor", GovernmentLevel: identity.LevelState, Confidence: programcache.ConfidenceLow, Description: "short"},
		{ProgramName: "Workforce Training Grant Program", Agency: "Dept of Labor", GovernmentLevel: identity.LevelState, Confidence: programcache.ConfidenceHigh, Description: "a much longer and more detailed description"},
	}
	out := Merge(programs)
	assert.Len(t, out, 1)
	assert.Equal(t, programcache.ConfidenceHigh, out[0].Confidence)
}

func TestMerge_TieBreaksOnLongerDescription(t *testing.T) {
	programs := []programcache.Program{
		{ProgramName: "Hiring Tax Credit", Agency: "Revenue Dept", GovernmentLevel: identity.LevelState, Confidence: programcache.ConfidenceMedium, Description: "short one"},
		{ProgramName: "Hiring Tax Credit Program", Agency: "Revenue Dept", GovernmentLevel: identity.LevelState, Confidence: programcache.ConfidenceMedium, Description: "a considerably longer description of the same program"},
	}
	out := Merge(programs)
	assert.Len(t, out, 1)
	assert.Contains(t, out[0].Description, "considerably longer")
}

func TestMerge_DissimilarProgramsStaySeparate(t *testing.T) {
	programs := []programcache.Program{
		{ProgramName: "Work Opportunity Tax Credit", Agency: "IRS", GovernmentLevel: identity.LevelFederal, Confidence: programcache.ConfidenceHigh},
		{ProgramName: "Federal Bonding Program", Agency: "DOL", GovernmentLevel: identity.LevelFederal, Confidence: programcache.ConfidenceHigh},
	}
	out := Merge(programs)
	assert.Len(t, out, 2)
}

func TestValidate_FlagsMissingSourceURLAndLowConfidence(t *testing.T) {
	out := Validate([]programcache.Program{{
		ProgramName: "X", Agency: "Y", BenefitType: "tax_credit", Confidence: programcache.ConfidenceLow,
	}})
	require := out[0]
	assert.False(t, require.Valid)
	assert.Len(t, require.ValidationErrors, 2)
}

func TestValidate_FlagsMissingRequiredFields(t *testing.T) {
	out := Validate([]programcache.Program{{
		ProgramName: "", Agency: "", BenefitType: "", Confidence: programcache.ConfidenceHigh, SourceURL: "https://example.gov",
	}})
	assert.False(t, out[0].Valid)
	assert.Len(t, out[0].ValidationErrors, 3)
}

func TestValidate_CompleteRecordPasses(t *testing.T) {
	out := Validate([]programcache.Program{{
		ProgramName: "X", Agency: "Y", BenefitType: "tax_credit", Confidence: programcache.ConfidenceHigh, SourceURL: "https://example.gov",
	}})
	assert.True(t, out[0].Valid)
	assert.Empty(t, out[0].ValidationErrors)
}
