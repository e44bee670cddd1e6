package programcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"

	_ "modernc.org/sqlite"
)

// SQLiteCache is the embedded backend used for local development and
// single-process deployments. Grounded on the teacher's
// receipt_store_sqlite.go: migrate-on-open, WAL journal mode, a
// generous busy_timeout so concurrent discovery workers don't collide
// on SQLITE_BUSY.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens (creating if needed) the on-disk cache at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	c := &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS programs (
			cache_key               TEXT PRIMARY KEY,
			program_name            TEXT NOT NULL,
			program_name_normalized TEXT NOT NULL,
			agency                  TEXT DEFAULT '',
			benefit_type            TEXT DEFAULT '',
			jurisdiction            TEXT DEFAULT '',
			max_value               TEXT DEFAULT '',
			target_populations      TEXT DEFAULT '[]',
			description             TEXT DEFAULT '',
			source_url              TEXT DEFAULT '',
			confidence              TEXT DEFAULT 'low',
			government_level        TEXT NOT NULL,
			location_key            TEXT NOT NULL,
			first_discovered_at     TEXT NOT NULL,
			last_verified_at        TEXT NOT NULL,
			discovery_count         INTEGER DEFAULT 1,
			miss_count              INTEGER DEFAULT 0,
			normalization_version   TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_programs_level_location ON programs(government_level, location_key)`,
		`CREATE TABLE IF NOT EXISTS search_log (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			government_level  TEXT NOT NULL,
			location_key      TEXT NOT NULL,
			search_queries    TEXT DEFAULT '[]',
			programs_found    INTEGER DEFAULT 0,
			searched_at       TEXT NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.ExecContext(context.Background(), s); err != nil {
			return fmt.Errorf("migrate sqlite cache: %w", err)
		}
	}
	return nil
}

func (c *SQLiteCache) Close() error { return c.db.Close() }

func (c *SQLiteCache) GetCachedPrograms(ctx context.Context, level identity.Level, locationKey string, ttl time.Duration) ([]Program, []Program, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT cache_key, program_name, program_name_normalized, agency, benefit_type,
		       jurisdiction, max_value, target_populations, description, source_url,
		       confidence, government_level, location_key, first_discovered_at,
		       last_verified_at, discovery_count, miss_count
		FROM programs
		WHERE government_level = ? AND location_key = ?
		  AND NOT (miss_count >= 3 AND discovery_count <= 1)`,
		string(level), locationKey)
	if err != nil {
		return nil, nil, fmt.Errorf("query cached programs: %w", err)
	}
	defer rows.Close()

	cutoff := time.Now().Add(-ttl)
	var fresh, stale []Program
	for rows.Next() {
		p, err := scanProgramRow(rows)
		if err != nil {
			return nil, nil, err
		}
		if p.LastVerifiedAt.After(cutoff) {
			fresh = append(fresh, p)
		} else {
			stale = append(stale, p)
		}
	}
	return fresh, stale, rows.Err()
}

func scanProgramRow(rows *sql.Rows) (Program, error) {
	var (
		p                           Program
		agency, benefitType         sql.NullString
		jurisdiction, maxValue      sql.NullString
		targetPopsJSON              sql.NullString
		description, sourceURL      sql.NullString
		confidence, level, locKey   sql.NullString
		firstDiscovered, lastVerify string
	)
	err := rows.Scan(
		&p.CacheKey, &p.ProgramName, &p.ProgramNameNormalized, &agency, &benefitType,
		&jurisdiction, &maxValue, &targetPopsJSON, &description, &sourceURL,
		&confidence, &level, &locKey, &firstDiscovered, &lastVerify,
		&p.DiscoveryCount, &p.MissCount,
	)
	if err != nil {
		return Program{}, fmt.Errorf("scan program row: %w", err)
	}
	p.Agency = agency.String
	p.BenefitType = benefitType.String
	p.Jurisdiction = jurisdiction.String
	p.MaxValue = maxValue.String
	p.Description = description.String
	p.SourceURL = sourceURL.String
	p.Confidence = Confidence(confidence.String)
	p.GovernmentLevel = identity.Level(level.String)
	p.LocationKey = locKey.String
	p.FirstDiscoveredAt = parseCacheTime(firstDiscovered)
	p.LastVerifiedAt = parseCacheTime(lastVerify)
	if targetPopsJSON.Valid && targetPopsJSON.String != "" {
		_ = json.Unmarshal([]byte(targetPopsJSON.String), &p.TargetPopulations)
	}
	return p, nil
}

func parseCacheTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	return time.Time{}
}

func (c *SQLiteCache) UpsertProgram(ctx context.Context, in UpsertInput, level identity.Level, locationKey string, stateName, countyName, cityName string) (string, error) {
	normalized := identity.NormalizeProgramName(in.ProgramName)
	cacheKey := identity.ComputeProgramID(normalized, level, locationKey)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	popsJSON, err := json.Marshal(in.TargetPopulations)
	if err != nil {
		return "", fmt.Errorf("marshal target populations: %w", err)
	}

	existing := c.db.QueryRowContext(ctx, `SELECT cache_key FROM programs WHERE cache_key = ?`, cacheKey)
	var existingKey string
	switch err := existing.Scan(&existingKey); err {
	case nil:
		_, err := c.db.ExecContext(ctx, `
			UPDATE programs SET
				last_verified_at   = ?,
				discovery_count    = discovery_count + 1,
				miss_count         = 0,
				agency             = COALESCE(NULLIF(agency, ''), ?),
				benefit_type       = COALESCE(NULLIF(benefit_type, ''), ?),
				max_value          = COALESCE(NULLIF(max_value, ''), ?),
				target_populations = CASE WHEN length(?) > length(target_populations) THEN ? ELSE target_populations END,
				description        = CASE WHEN length(?) > length(description) THEN ? ELSE description END,
				source_url         = COALESCE(NULLIF(source_url, ''), ?),
				confidence         = CASE
					WHEN ? = 'high' THEN 'high'
					WHEN ? = 'medium' AND confidence != 'high' THEN 'medium'
					ELSE confidence
				END
			WHERE cache_key = ?`,
			now,
			in.Agency,
			in.BenefitType,
			in.MaxValue,
			string(popsJSON), string(popsJSON),
			in.Description, in.Description,
			in.SourceURL,
			string(in.Confidence),
			string(in.Confidence),
			cacheKey,
		)
		if err != nil {
			return "", fmt.Errorf("update program: %w", err)
		}
	case sql.ErrNoRows:
		confidence := in.Confidence
		if confidence == "" {
			confidence = ConfidenceLow
		}
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO programs (
				cache_key, program_name, program_name_normalized, agency, benefit_type,
				jurisdiction, max_value, target_populations, description, source_url,
				confidence, government_level, location_key, first_discovered_at,
				last_verified_at, discovery_count, miss_count, normalization_version
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,0,?)`,
			cacheKey, in.ProgramName, normalized, in.Agency, in.BenefitType,
			in.Jurisdiction, in.MaxValue, string(popsJSON), in.Description, in.SourceURL,
			string(confidence), string(level), locationKey, now, now,
			identity.NormalizationVersion,
		)
		if err != nil {
			return "", fmt.Errorf("insert program: %w", err)
		}
	default:
		return "", fmt.Errorf("check existing program: %w", err)
	}

	return cacheKey, nil
}

func (c *SQLiteCache) ConfirmProgram(ctx context.Context, cacheKey string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := c.db.ExecContext(ctx,
		`UPDATE programs SET last_verified_at = ?, discovery_count = discovery_count + 1, miss_count = 0 WHERE cache_key = ?`,
		now, cacheKey)
	if err != nil {
		return fmt.Errorf("confirm program: %w", err)
	}
	return nil
}

func (c *SQLiteCache) IncrementMissCount(ctx context.Context, level identity.Level, locationKey string, foundKeys map[string]struct{}) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT cache_key FROM programs WHERE government_level = ? AND location_key = ?`,
		string(level), locationKey)
	if err != nil {
		return fmt.Errorf("list programs for miss accounting: %w", err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return err
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range keys {
		if _, found := foundKeys[k]; found {
			continue
		}
		if _, err := c.db.ExecContext(ctx, `UPDATE programs SET miss_count = miss_count + 1 WHERE cache_key = ?`, k); err != nil {
			return fmt.Errorf("increment miss count: %w", err)
		}
	}
	return nil
}

func (c *SQLiteCache) LogSearch(ctx context.Context, level identity.Level, locationKey string, queries []string, programsFound int) error {
	queriesJSON, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("marshal search queries: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO search_log (government_level, location_key, search_queries, programs_found, searched_at) VALUES (?,?,?,?,?)`,
		string(level), locationKey, string(queriesJSON), programsFound, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("log search: %w", err)
	}
	return nil
}

func (c *SQLiteCache) SeedFederalPrograms(ctx context.Context, programs []UpsertInput) error {
	for _, p := range programs {
		if _, err := c.UpsertProgram(ctx, p, identity.LevelFederal, "federal", "United States", "", ""); err != nil {
			return fmt.Errorf("seed federal program %q: %w", p.ProgramName, err)
		}
	}
	return nil
}

func (c *SQLiteCache) Stats(ctx context.Context) (Stats, error) {
	var total, searches int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM programs`).Scan(&total); err != nil {
		return Stats{}, err
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_log`).Scan(&searches); err != nil {
		return Stats{}, err
	}
	byLevel := map[string]int{}
	rows, err := c.db.QueryContext(ctx, `SELECT government_level, COUNT(*) FROM programs GROUP BY government_level`)
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
	return Stats{TotalPrograms: total, ByLevel: byLevel, TotalSearches: searches}, rows.Err()
}
