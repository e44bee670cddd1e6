package discovery

import "github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"

// FederalSeedPrograms are the universal federal programs seeded into
// every fresh federal partition regardless of search quality — ported
// verbatim from the legacy discovery agent's hardcoded FEDERAL_PROGRAMS
// list, since these three never go missing in practice and shouldn't
// depend on a search engine having indexed them well.
var FederalSeedPrograms = []programcache.UpsertInput{
	{
		ProgramName:       "Work Opportunity Tax Credit (WOTC)",
		Agency:            "U.S. Department of Labor / IRS",
		BenefitType:       "tax_credit",
		MaxValue:          "$2,400 - $9,600 per hire",
		TargetPopulations: []string{"veterans", "TANF recipients", "ex-felons", "SSI recipients", "long-term unemployed", "youth"},
		Description:       "Federal tax credit for hiring individuals from targeted groups who face barriers to employment.",
		SourceURL:         "https://www.dol.gov/agencies/eta/wotc",
		Confidence:        programcache.ConfidenceHigh,
	},
	{
		ProgramName:       "Federal Bonding Program",
		Agency:            "U.S. Department of Labor",
		BenefitType:       "bonding",
		MaxValue:          "$5,000 - $25,000 fidelity bond",
		TargetPopulations: []string{"ex-offenders", "people in recovery", "those with poor credit"},
		Description:       "Free fidelity bonds for at-risk job seekers, covering employer losses from theft.",
		SourceURL:         "https://bonds4jobs.com/",
		Confidence:        programcache.ConfidenceHigh,
	},
	{
		ProgramName:       "WIOA On-the-Job Training (OJT)",
		Agency:            "U.S. Department of Labor",
		BenefitType:       "wage_subsidy",
		MaxValue:          "50-75% wage reimbursement during training",
		TargetPopulations: []string{"dislocated workers", "low-income adults", "youth"},
		Description:       "Wage subsidy for employers who train eligible workers, covering 50-75% of wages during the training period.",
		SourceURL:         "https://www.dol.gov/agencies/eta/wioa",
		Confidence:        programcache.ConfidenceHigh,
	},
}
