// Package discovery implements the cache-first jurisdiction discovery
// worker: one worker instance handles exactly one (level, location) pair.
package discovery

import (
	"fmt"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
)

// BuildQueries returns the level-specific search query templates: 3 for
// federal, 6 for state (3 generic + top-3 population-specific), 2 for
// county, 2 for city.
func BuildQueries(level identity.Level, stateName, countyName, cityName string) []string {
	switch level {
	case identity.LevelFederal:
		return []string{
			"federal employer hiring tax credits incentives",
			"WOTC work opportunity tax credit requirements",
			"federal bonding program employers",
		}
	case identity.LevelState:
		queries := []string{
			fmt.Sprintf("%s state employer hiring incentives tax credits", stateName),
			fmt.Sprintf("%s workforce development employer programs", stateName),
			fmt.Sprintf("%s enterprise zone hiring credits", stateName),
		}
		for _, pop := range identity.StandardPopulations[:3] {
			queries = append(queries, fmt.Sprintf("%s %s employer hiring incentives", stateName, pop))
		}
		return queries
	case identity.LevelCounty:
		county := countyName
		if county == "" {
			county = stateName + " County"
		}
		return []string{
			fmt.Sprintf("%s %s employer hiring incentives", county, stateName),
			fmt.Sprintf("%s %s workforce development business programs", county, stateName),
		}
	case identity.LevelCity:
		city := cityName
		if city == "" {
			city = stateName
		}
		return []string{
			fmt.Sprintf("%s %s employer hiring incentives programs", city, stateName),
			fmt.Sprintf("%s %s economic development hiring credits", city, stateName),
		}
	}
	return nil
}
