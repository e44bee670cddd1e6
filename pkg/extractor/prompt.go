package extractor

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/searchclient"
)

const maxSnippets = 10
const maxSnippetChars = 1000

func buildPrompt(req Request, snippets []searchclient.Snippet) string {
	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}

	var b strings.Builder
	for _, s := range snippets {
		content := s.Content
		if len(content) > maxSnippetChars {
			content = content[:maxSnippetChars]
		}
		fmt.Fprintf(&b, "Source: %s\nTitle: %s\nContent: %s\n\n", s.URL, s.Title, content)
	}

	legalEntityType := req.LegalEntityType
	if legalEntityType == "" {
		legalEntityType = "Unknown"
	}
	industryCode := req.IndustryCode
	if industryCode == "" {
		industryCode = "Unknown"
	}

	return fmt.Sprintf(`You are an expert at identifying employer hiring incentive programs from web content.

Government Level: %s
Location: %s
Legal Entity Type: %s
Industry: %s

Search Results:
%s

Extract ALL employer hiring incentive programs mentioned. For each program, provide:
- program_name: Official name of the program
- agency: Government agency administering it
- benefit_type: One of [tax_credit, wage_subsidy, training_grant, bonding, other]
- max_value: Maximum benefit value (e.g., "$2,400 per hire")
- target_populations: List of eligible worker groups
- description: Brief description of the program
- source_url: URL where this was found
- confidence: "high" if official source, "medium" if secondary, "low" if uncertain

IMPORTANT RULES:
1. ONLY include programs administered by or available in "%s" at the %s level.
2. Do not include programs from other states, counties, or cities.
3. Cast a wide net within the correct geography.
4. Better to include a false positive from the right location than miss a real program.
5. Only return programs that are explicitly mentioned in the search results above — do not invent or infer programs not present in the snippets.

Return ONLY a valid JSON array (no markdown fence). If no programs found, return [].`,
		req.Level, req.Location, legalEntityType, industryCode, b.String(), req.Location, req.Level)
}
