// Package router parses a business address into the jurisdiction
// context — state, county, city, and the set of government levels
// worth searching — that the orchestrator fans out to discovery
// workers.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/llm"
)

// Result is the routing decision handed to the orchestrator's fan-out
// step. Only these fields travel to each discovery worker — never the
// full session state — so workers can't pollute each other's view.
type Result struct {
	StateName      string
	CountyName     string
	CityName       string
	GovernmentLevels []identity.Level
}

// Request bundles what the routing prompt needs.
type Request struct {
	Address         string
	LegalEntityType string
	IndustryCode    string
}

// DefaultState is the configured fallback used when neither the LLM
// call nor the regex fallback can determine a state.
const DefaultState = "California"

// Router drives the LLM-primary address parse, falling back to the
// regex state-code table on any failure.
type Router struct {
	client llm.Client
	// DefaultState overrides the package default for callers that
	// configure a different fallback jurisdiction.
	DefaultState string
}

func New(client llm.Client) *Router {
	return &Router{client: client, DefaultState: DefaultState}
}

type rawRouting struct {
	CityName         *string  `json:"city_name"`
	CountyName       *string  `json:"county_name"`
	StateName        string   `json:"state_name"`
	GovernmentLevels []string `json:"government_levels"`
}

// Route asks the LLM to classify the address, then enforces the
// post-parse invariants: federal and state are always present,
// duplicates are removed preserving order, and an unresolved state
// name falls back to regex, then to the configured default.
func (r *Router) Route(ctx context.Context, req Request) Result {
	raw, err := r.askLLM(ctx, req)
	if err != nil {
		return r.fallbackResult(req.Address)
	}

	stateName := raw.StateName
	if strings.TrimSpace(stateName) == "" {
		stateName = r.resolveDefaultState(req.Address)
	}

	levels := make([]identity.Level, 0, len(raw.GovernmentLevels)+2)
	for _, l := range raw.GovernmentLevels {
		levels = append(levels, identity.Level(l))
	}

	return Result{
		StateName:        stateName,
		CountyName:       derefOr(raw.CountyName, ""),
		CityName:         derefOr(raw.CityName, ""),
		GovernmentLevels: enforceInvariants(levels),
	}
}

func (r *Router) fallbackResult(address string) Result {
	return Result{
		StateName:        r.resolveDefaultState(address),
		GovernmentLevels: []identity.Level{identity.LevelFederal, identity.LevelState},
	}
}

func (r *Router) resolveDefaultState(address string) string {
	if name := ParseStateFromAddress(address); name != "" {
		return name
	}
	def := r.DefaultState
	if def == "" {
		def = DefaultState
	}
	return def
}

// enforceInvariants guarantees federal and state are present and that
// the level list has no duplicates, preserving first-seen order.
func enforceInvariants(levels []identity.Level) []identity.Level {
	for _, required := range []identity.Level{identity.LevelState, identity.LevelFederal} {
		found := false
		for _, l := range levels {
			if l == required {
				found = true
				break
			}
		}
		if !found {
			levels = append([]identity.Level{required}, levels...)
		}
	}

	seen := make(map[identity.Level]struct{}, len(levels))
	out := make([]identity.Level, 0, len(levels))
	for _, l := range levels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func (r *Router) askLLM(ctx context.Context, req Request) (rawRouting, error) {
	legalEntityType := req.LegalEntityType
	if legalEntityType == "" {
		legalEntityType = "Unknown"
	}
	industryCode := req.IndustryCode
	if industryCode == "" {
		industryCode = "Unknown"
	}

	prompt := fmt.Sprintf(routingPrompt, req.Address, legalEntityType, industryCode)
	resp, err := r.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, &llm.SamplingOptions{Temperature: 0.3})
	if err != nil {
		return rawRouting{}, fmt.Errorf("routing chat call: %w", err)
	}

	var out rawRouting
	content := strings.TrimSpace(resp.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return rawRouting{}, fmt.Errorf("parse routing response: %w", err)
	}
	return out, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

const routingPrompt = `You are an expert at analyzing business addresses and determining which government levels likely have hiring incentive programs.

Given this business information:
- Address: %s
- Legal Entity Type: %s
- Industry Code: %s

Analyze the address and determine:
1. The city name (if identifiable)
2. The county name (if identifiable)
3. The state name (required)
4. Which government levels likely have incentive programs for this business

Consider:
- Federal programs (WOTC, Federal Bonding, WIOA OJT) apply to ALL businesses
- State programs vary by state - all states have some programs
- County programs exist mainly in larger counties (pop > 500k)
- City programs exist mainly in major metros (pop > 250k)

For legal entity types:
- Non-profits may have additional grant programs
- C-Corps may have more tax credit options
- Small businesses (LLC, Sole Prop) may qualify for SBA programs

Return ONLY valid JSON (no markdown, no explanation):
{
    "city_name": "city name or null",
    "county_name": "county name or null",
    "state_name": "full state name",
    "government_levels": ["federal", "state", ...]
}

Note: government_levels should ALWAYS include "federal" and "state".
Only include "county" and "city" if those entities likely have programs.`
