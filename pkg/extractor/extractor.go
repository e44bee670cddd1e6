// Package extractor turns raw search snippets into structured program
// records via an LLM call, then validates and defaults the result.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/identity"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/llm"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/searchclient"
)

// Extracted is a single program as pulled from search snippets, before
// it is merged into the cache.
type Extracted struct {
	ID                string
	ProgramName       string
	Agency            string
	BenefitType       string
	MaxValue          string
	TargetPopulations []string
	Description       string
	SourceURL         string
	Confidence        string
	GovernmentLevel   identity.Level
	Jurisdiction       string
}

var requiredFields = []string{"program_name", "agency", "benefit_type"}

// Request bundles everything the extraction prompt needs to stay
// scoped to the right jurisdiction. LocationKey is the normalized
// cache partition key (see identity.NormalizeLocation) — distinct from
// Location, the human-readable name used in the prompt text — and
// feeds the program id derivation so an extracted record's id matches
// what programcache would compute for the same (name, level, location).
type Request struct {
	Level           identity.Level
	Location        string
	LocationKey     string
	LegalEntityType string
	IndustryCode    string
}

// Extractor drives the LLM extraction call.
type Extractor struct {
	client llm.Client
}

func New(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract formats up to 10 snippets (1000 chars each) into a prompt,
// asks the LLM for a JSON array of programs, and returns the ones that
// pass required-field validation with defaults filled in. A malformed
// or empty response yields an empty slice, never an error — one
// extraction failure should not abort the worker's whole discovery pass.
func (e *Extractor) Extract(ctx context.Context, req Request, snippets []searchclient.Snippet) ([]Extracted, error) {
	if len(snippets) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(req, snippets)
	resp, err := e.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, &llm.SamplingOptions{Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("extraction chat call: %w", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(stripJSONFence(resp.Content)), &raw); err != nil {
		return nil, nil
	}

	var out []Extracted
	for _, prog := range raw {
		ext, ok := validate(prog, req)
		if !ok {
			continue
		}
		out = append(out, ext)
	}
	return out, nil
}

func validate(prog map[string]any, req Request) (Extracted, bool) {
	for _, f := range requiredFields {
		v, _ := prog[f].(string)
		if strings.TrimSpace(v) == "" {
			return Extracted{}, false
		}
	}

	pops, _ := prog["target_populations"].([]any)
	var populations []string
	for _, p := range pops {
		if s, ok := p.(string); ok {
			populations = append(populations, s)
		}
	}

	programName := stringOr(prog["program_name"], "")
	ext := Extracted{
		ID:                identity.ComputeProgramID(identity.NormalizeProgramName(programName), req.Level, req.LocationKey),
		ProgramName:       programName,
		Agency:            stringOr(prog["agency"], ""),
		BenefitType:       stringOr(prog["benefit_type"], ""),
		MaxValue:          stringOr(prog["max_value"], "Unknown"),
		TargetPopulations: populations,
		Description:       stringOr(prog["description"], ""),
		SourceURL:         stringOr(prog["source_url"], ""),
		Confidence:        stringOr(prog["confidence"], "low"),
		GovernmentLevel:   req.Level,
		Jurisdiction:       req.Location,
	}
	return ext, true
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

// stripJSONFence removes a markdown code fence if the model wrapped
// its JSON array in one despite being asked not to.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
