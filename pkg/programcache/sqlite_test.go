package programcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
)

func openTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "programs.db")
	c, err := OpenSQLiteCache(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSQLiteCache_UpsertThenGetCached(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	key, err := c.UpsertProgram(ctx, UpsertInput{
		ProgramName: "Work Opportunity Tax Credit",
		Agency:      "Department of Labor",
		BenefitType: "tax_credit",
		Confidence:  ConfidenceMedium,
	}, identity.LevelFederal, "federal", "United States", "", "")
	require.NoError(t, err)
	assert.Len(t, key, 16)

	fresh, stale, err := c.GetCachedPrograms(ctx, identity.LevelFederal, "federal", FreshnessWindow)
	require.NoError(t, err)
	assert.Empty(t, stale)
	require.Len(t, fresh, 1)
	assert.Equal(t, "Work Opportunity Tax Credit", fresh[0].ProgramName)
	assert.Equal(t, ConfidenceMedium, fresh[0].Confidence)
	assert.Equal(t, 1, fresh[0].DiscoveryCount)
}

func TestSQLiteCache_ConfidenceRatchetNeverDowngrades(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	in := UpsertInput{ProgramName: "WOTC", Confidence: ConfidenceHigh}
	_, err := c.UpsertProgram(ctx, in, identity.LevelFederal, "federal", "", "", "")
	require.NoError(t, err)

	in.Confidence = ConfidenceLow
	_, err = c.UpsertProgram(ctx, in, identity.LevelFederal, "federal", "", "", "")
	require.NoError(t, err)

	fresh, _, err := c.GetCachedPrograms(ctx, identity.LevelFederal, "federal", FreshnessWindow)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, ConfidenceHigh, fresh[0].Confidence)
	assert.Equal(t, 2, fresh[0].DiscoveryCount)
}

func TestSQLiteCache_HallucinationSuppression(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	key, err := c.UpsertProgram(ctx, UpsertInput{ProgramName: "One-Off Mystery Grant"}, identity.LevelState, "texas", "Texas", "", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.IncrementMissCount(ctx, identity.LevelState, "texas", map[string]struct{}{}))
	}

	fresh, stale, err := c.GetCachedPrograms(ctx, identity.LevelState, "texas", FreshnessWindow)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.Empty(t, stale)

	require.NoError(t, c.ConfirmProgram(ctx, key))
	fresh, _, err = c.GetCachedPrograms(ctx, identity.LevelState, "texas", FreshnessWindow)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
}

func TestSQLiteCache_StaleSplitsByFreshnessWindow(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	_, err := c.UpsertProgram(ctx, UpsertInput{ProgramName: "Aging Program"}, identity.LevelState, "texas", "Texas", "", "")
	require.NoError(t, err)

	_, stale, err := c.GetCachedPrograms(ctx, identity.LevelState, "texas", -time.Hour)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestSQLiteCache_SeedFederalPrograms(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SeedFederalPrograms(ctx, []UpsertInput{
		{ProgramName: "Work Opportunity Tax Credit", Confidence: ConfidenceHigh},
		{ProgramName: "Federal Bonding Program", Confidence: ConfidenceHigh},
	}))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPrograms)
	assert.Equal(t, 2, stats.ByLevel["federal"])
}
