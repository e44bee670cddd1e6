package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeProgramName_ExpandsAcronyms(t *testing.T) {
	assert.Equal(t, "work opportunity tax credit", NormalizeProgramName("WOTC"))
	assert.Equal(t, "on the job training program", NormalizeProgramName("OJT Program"))
}

func TestNormalizeProgramName_StripsPunctuationAndWhitespace(t *testing.T) {
	assert.Equal(t, "hiring incentives to restore employment act credit", NormalizeProgramName("  HIRE-Act, Credit!!  "))
}

func TestNormalizeProgramName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeProgramName(""))
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "federal", NormalizeLocation(LevelFederal, "Texas", "Travis", "Austin"))
	assert.Equal(t, "texas", NormalizeLocation(LevelState, "Texas", "", ""))
	assert.Equal(t, "travis_texas", NormalizeLocation(LevelCounty, "Texas", "Travis", ""))
	assert.Equal(t, "austin_texas", NormalizeLocation(LevelCity, "Texas", "", "Austin"))
}

func TestCanonicalPopulation(t *testing.T) {
	v, ok := CanonicalPopulation("Ex-Felons")
	assert.True(t, ok)
	assert.Equal(t, "ex-offenders", v)

	_, ok = CanonicalPopulation("some unknown group")
	assert.False(t, ok)
}
