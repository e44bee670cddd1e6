package identity

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestComputeProgramID_Length(t *testing.T) {
	id := ComputeProgramID("work opportunity tax credit", LevelFederal, "federal")
	assert.Len(t, id, 16)
}

func TestComputeProgramID_Deterministic(t *testing.T) {
	a := ComputeProgramID("wioa ojt", LevelState, "texas")
	b := ComputeProgramID("wioa ojt", LevelState, "texas")
	assert.Equal(t, a, b)
}

func TestComputeProgramID_DiffersByLocation(t *testing.T) {
	a := ComputeProgramID("wioa ojt", LevelState, "texas")
	b := ComputeProgramID("wioa ojt", LevelState, "california")
	assert.NotEqual(t, a, b)
}

func TestComputeProgramID_StableAcrossProcesses(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same inputs always hash to the same 16-char id", prop.ForAll(
		func(name, loc string) bool {
			id1 := ComputeProgramID(name, LevelState, loc)
			id2 := ComputeProgramID(name, LevelState, loc)
			return id1 == id2 && len(id1) == 16
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
