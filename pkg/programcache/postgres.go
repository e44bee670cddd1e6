package programcache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
)

// PostgresCache is the networked backend for multi-process deployments.
// Grounded on the teacher's pkg/budget/postgres_store.go ON CONFLICT
// upsert style, extended with the jurisdiction find-or-create tree the
// single-table SQLite schema doesn't need.
type PostgresCache struct {
	db *sqlx.DB
}

// OpenPostgresCache wraps an already-open *sql.DB (migrations are run
// separately via pkg/programcache/migrations and goose).
func OpenPostgresCache(db *sql.DB) *PostgresCache {
	return &PostgresCache{db: sqlx.NewDb(db, "postgres")}
}

type jurisdictionRow struct {
	ID       int64          `db:"cache_key"`
	Name     string         `db:"program_name"`
	Level    identity.Level `db:"government_level"`
	ParentID sql.NullInt64  `db:"parent_id"`
}

// resolveJurisdictionID finds or creates a jurisdiction row, recursing
// up the state/county/city parent chain. The ON CONFLICT DO NOTHING +
// fallback SELECT sequence handles the race where two discovery
// workers resolve the same new jurisdiction concurrently.
func (c *PostgresCache) resolveJurisdictionID(ctx context.Context, tx *sqlx.Tx, level identity.Level, stateName, countyName, cityName string) (int64, error) {
	switch level {
	case identity.LevelFederal:
		var id int64
		err := tx.GetContext(ctx, &id, `SELECT id FROM jurisdictions WHERE level = 'federal' LIMIT 1`)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
		err = tx.GetContext(ctx, &id,
			`INSERT INTO jurisdictions (name, level) VALUES ('United States', 'federal') RETURNING id`)
		return id, err

	case identity.LevelState:
		state := stateName
		var id int64
		err := tx.GetContext(ctx, &id,
			`SELECT id FROM jurisdictions WHERE level = 'state' AND (name ILIKE $1 OR state_code = $2) LIMIT 1`,
			state, upperTwo(state))
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
		err = tx.GetContext(ctx, &id,
			`INSERT INTO jurisdictions (name, level, state_code, parent_id) VALUES ($1, 'state', $2, 1)
			 ON CONFLICT DO NOTHING RETURNING id`, state, upperTwo(state))
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
		err = tx.GetContext(ctx, &id,
			`SELECT id FROM jurisdictions WHERE level = 'state' AND name ILIKE $1 LIMIT 1`, state)
		return id, err

	case identity.LevelCounty:
		stateID, err := c.resolveJurisdictionID(ctx, tx, identity.LevelState, stateName, "", "")
		if err != nil {
			return 0, err
		}
		var id int64
		err = tx.GetContext(ctx, &id,
			`SELECT id FROM jurisdictions WHERE level = 'county' AND name ILIKE $1 AND parent_id = $2 LIMIT 1`,
			countyName, stateID)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
		err = tx.GetContext(ctx, &id,
			`INSERT INTO jurisdictions (name, level, parent_id) VALUES ($1, 'county', $2)
			 ON CONFLICT DO NOTHING RETURNING id`, countyName, stateID)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
		err = tx.GetContext(ctx, &id,
			`SELECT id FROM jurisdictions WHERE level = 'county' AND name ILIKE $1 AND parent_id = $2 LIMIT 1`,
			countyName, stateID)
		return id, err

	case identity.LevelCity:
		stateID, err := c.resolveJurisdictionID(ctx, tx, identity.LevelState, stateName, "", "")
		if err != nil {
			return 0, err
		}
		var countyID sql.NullInt64
		if countyName != "" {
			if cid, err := c.resolveJurisdictionID(ctx, tx, identity.LevelCounty, stateName, countyName, ""); err == nil {
				countyID = sql.NullInt64{Int64: cid, Valid: true}
			}
		}
		var id int64
		err = tx.GetContext(ctx, &id,
			`SELECT id FROM jurisdictions WHERE level = 'city' AND name ILIKE $1 AND parent_id = $2 LIMIT 1`,
			cityName, stateID)
		if err == nil {
			if countyID.Valid {
				_, _ = tx.ExecContext(ctx,
					`UPDATE jurisdictions SET county_id = $1 WHERE id = $2 AND county_id IS NULL`, countyID.Int64, id)
			}
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
		err = tx.GetContext(ctx, &id,
			`INSERT INTO jurisdictions (name, level, parent_id, county_id) VALUES ($1, 'city', $2, $3)
			 ON CONFLICT DO NOTHING RETURNING id`, cityName, stateID, countyID)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
		err = tx.GetContext(ctx, &id,
			`SELECT id FROM jurisdictions WHERE level = 'city' AND name ILIKE $1 AND parent_id = $2 LIMIT 1`,
			cityName, stateID)
		return id, err
	}
	return 0, fmt.Errorf("unknown jurisdiction level: %s", level)
}

func upperTwo(s string) string {
	u := []rune(s)
	if len(u) > 2 {
		u = u[:2]
	}
	return strings.ToUpper(string(u))
}

func (c *PostgresCache) Close() error { return c.db.Close() }

type cachedProgramRow struct {
	CacheKey              string         `db:"cache_key"`
	ProgramName           string         `db:"program_name"`
	ProgramNameNormalized string         `db:"program_name_normalized"`
	Agency                sql.NullString `db:"agency"`
	BenefitType           sql.NullString `db:"benefit_type"`
	Jurisdiction          sql.NullString `db:"jurisdiction"`
	MaxValue              sql.NullString `db:"max_value"`
	Description           sql.NullString `db:"description"`
	SourceURL             sql.NullString `db:"source_url"`
	Confidence            string         `db:"confidence"`
	GovernmentLevel       string         `db:"government_level"`
	FirstDiscoveredAt     time.Time      `db:"first_discovered_at"`
	LastVerifiedAt        time.Time      `db:"last_verified_at"`
	DiscoveryCount        int            `db:"discovery_count"`
	MissCount             int            `db:"miss_count"`
	TargetPopulations     []string       `db:"target_populations"`
}

func (c *PostgresCache) GetCachedPrograms(ctx context.Context, level identity.Level, locationKey string, ttl time.Duration) ([]Program, []Program, error) {
	var rows []cachedProgramRow
	err := c.db.SelectContext(ctx, &rows, `
		SELECT p.id as cache_key, p.name as program_name, p.name_normalized as program_name_normalized,
		       p.agency, p.benefit_type, j.name as jurisdiction, p.max_value,
		       p.description, p.source_url, p.confidence, j.level as government_level,
		       p.first_discovered_at, p.last_verified_at,
		       p.discovery_count, p.miss_count,
		       COALESCE(array_agg(tp.name) FILTER (WHERE tp.name IS NOT NULL), '{}') as target_populations
		FROM programs p
		JOIN jurisdictions j ON p.jurisdiction_id = j.id
		LEFT JOIN program_populations pp ON pp.program_id = p.id
		LEFT JOIN target_populations tp ON tp.id = pp.population_id
		WHERE j.level = $1
		  AND NOT (p.miss_count >= 3 AND p.discovery_count <= 1)
		GROUP BY p.id, p.name, p.name_normalized, p.agency, p.benefit_type,
		         j.name, p.max_value, p.description, p.source_url, p.confidence,
		         j.level, p.first_discovered_at, p.last_verified_at,
		         p.discovery_count, p.miss_count`, string(level))
	if err != nil {
		return nil, nil, fmt.Errorf("query cached programs: %w", err)
	}

	cutoff := time.Now().Add(-ttl)
	var fresh, stale []Program
	for _, r := range rows {
		p := Program{
			CacheKey:              r.CacheKey,
			ProgramName:           r.ProgramName,
			ProgramNameNormalized: r.ProgramNameNormalized,
			Agency:                r.Agency.String,
			BenefitType:           r.BenefitType.String,
			Jurisdiction:          r.Jurisdiction.String,
			MaxValue:              r.MaxValue.String,
			Description:           r.Description.String,
			SourceURL:             r.SourceURL.String,
			Confidence:            Confidence(r.Confidence),
			GovernmentLevel:       identity.Level(r.GovernmentLevel),
			LocationKey:           locationKey,
			FirstDiscoveredAt:     r.FirstDiscoveredAt,
			LastVerifiedAt:        r.LastVerifiedAt,
			DiscoveryCount:        r.DiscoveryCount,
			MissCount:             r.MissCount,
			TargetPopulations:     r.TargetPopulations,
		}
		if p.LastVerifiedAt.After(cutoff) {
			fresh = append(fresh, p)
		} else {
			stale = append(stale, p)
		}
	}
	return fresh, stale, nil
}

func (c *PostgresCache) UpsertProgram(ctx context.Context, in UpsertInput, level identity.Level, locationKey string, stateName, countyName, cityName string) (string, error) {
	normalized := identity.NormalizeProgramName(in.ProgramName)
	cacheKey := identity.ComputeProgramID(normalized, level, locationKey)
	now := time.Now().UTC()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	state := stateName
	if state == "" {
		state = in.Jurisdiction
	}
	jurisdictionID, err := c.resolveJurisdictionID(ctx, tx, level, state, countyName, cityName)
	if err != nil {
		return "", fmt.Errorf("resolve jurisdiction: %w", err)
	}

	confidence := in.Confidence
	if confidence == "" {
		confidence = ConfidenceLow
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO programs (id, jurisdiction_id, name, name_normalized, agency,
			benefit_type, max_value, description, source_url, confidence,
			status, first_discovered_at, last_verified_at, discovery_count, miss_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'active', $11, $11, 1, 0)
		ON CONFLICT (id) DO UPDATE SET
			last_verified_at = EXCLUDED.last_verified_at,
			discovery_count = programs.discovery_count + 1,
			miss_count = 0,
			agency = COALESCE(NULLIF(programs.agency, ''), EXCLUDED.agency),
			benefit_type = COALESCE(NULLIF(programs.benefit_type, ''), EXCLUDED.benefit_type),
			max_value = COALESCE(NULLIF(programs.max_value, ''), EXCLUDED.max_value),
			description = CASE WHEN length(EXCLUDED.description) > length(programs.description)
			                   THEN EXCLUDED.description ELSE programs.description END,
			source_url = COALESCE(NULLIF(programs.source_url, ''), EXCLUDED.source_url),
			confidence = CASE
				WHEN EXCLUDED.confidence = 'high' THEN 'high'
				WHEN EXCLUDED.confidence = 'medium' AND programs.confidence != 'high' THEN 'medium'
				ELSE programs.confidence END`,
		cacheKey, jurisdictionID, in.ProgramName, normalized,
		in.Agency, in.BenefitType, in.MaxValue, in.Description, in.SourceURL,
		string(confidence), now,
	)
	if err != nil {
		return "", fmt.Errorf("upsert program: %w", err)
	}

	if len(in.TargetPopulations) > 0 {
		if err := c.linkPopulations(ctx, tx, cacheKey, in.TargetPopulations); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit upsert tx: %w", err)
	}
	return cacheKey, nil
}

func (c *PostgresCache) linkPopulations(ctx context.Context, tx *sqlx.Tx, programID string, populations []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM program_populations WHERE program_id = $1`, programID); err != nil {
		return fmt.Errorf("clear population links: %w", err)
	}
	for _, raw := range populations {
		canonical, ok := identityCanonicalPopulation(raw)
		if !ok {
			continue
		}
		var popID int64
		err := tx.GetContext(ctx, &popID, `SELECT id FROM target_populations WHERE name = $1`, canonical)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("lookup population %q: %w", canonical, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO program_populations (program_id, population_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			programID, popID)
		if err != nil {
			return fmt.Errorf("link population %q: %w", canonical, err)
		}
	}
	return nil
}

func (c *PostgresCache) ConfirmProgram(ctx context.Context, cacheKey string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE programs SET last_verified_at = $1, discovery_count = discovery_count + 1, miss_count = 0 WHERE id = $2`,
		time.Now().UTC(), cacheKey)
	if err != nil {
		return fmt.Errorf("confirm program: %w", err)
	}
	return nil
}

func (c *PostgresCache) IncrementMissCount(ctx context.Context, level identity.Level, locationKey string, foundKeys map[string]struct{}) error {
	var ids []string
	err := c.db.SelectContext(ctx, &ids, `
		SELECT p.id FROM programs p JOIN jurisdictions j ON p.jurisdiction_id = j.id
		WHERE j.level = $1`, string(level))
	if err != nil {
		return fmt.Errorf("list programs for miss accounting: %w", err)
	}
	for _, id := range ids {
		if _, found := foundKeys[id]; found {
			continue
		}
		if _, err := c.db.ExecContext(ctx, `UPDATE programs SET miss_count = miss_count + 1 WHERE id = $1`, id); err != nil {
			return fmt.Errorf("increment miss count: %w", err)
		}
	}
	return nil
}

// LogSearch is a no-op on the Postgres backend: search analytics live
// in a separate warehouse pipeline there, not in the transactional
// database (the SQLite backend logs inline since local dev has nothing
// else to query).
func (c *PostgresCache) LogSearch(ctx context.Context, level identity.Level, locationKey string, queries []string, programsFound int) error {
	return nil
}

func (c *PostgresCache) SeedFederalPrograms(ctx context.Context, programs []UpsertInput) error {
	for _, p := range programs {
		if _, err := c.UpsertProgram(ctx, p, identity.LevelFederal, "federal", "United States", "", ""); err != nil {
			return fmt.Errorf("seed federal program %q: %w", p.ProgramName, err)
		}
	}
	return nil
}

func (c *PostgresCache) Stats(ctx context.Context) (Stats, error) {
	var total int
	if err := c.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM programs`); err != nil {
		return Stats{}, err
	}
	byLevel := map[string]int{}
	rows, err := c.db.QueryContext(ctx, `
		SELECT j.level, COUNT(*) FROM programs p JOIN jurisdictions j ON p.jurisdiction_id = j.id
		GROUP BY j.level`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return Stats{}, err
		}
		byLevel[level] = n
	}
	return Stats{TotalPrograms: total, ByLevel: byLevel}, rows.Err()
}

func identityCanonicalPopulation(raw string) (string, bool) {
	return identity.CanonicalPopulation(raw)
}
