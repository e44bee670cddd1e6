package roi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/llm"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
)

// DefaultMaxRounds bounds the refinement loop so an unresponsive user
// or a program that never converges can't keep a session open forever.
const DefaultMaxRounds = 3

// Calculation is one program's current ROI estimate, refined in place
// across rounds as answers arrive.
type Calculation struct {
	ProgramID             string   `json:"program_id"`
	ProgramName           string   `json:"program_name"`
	EstimatedValuePerHire string   `json:"estimated_value_per_hire"`
	QualificationRate     string   `json:"qualification_rate"`
	Complexity            string   `json:"complexity"`
	TimeToBenefit         string   `json:"time_to_benefit"`
	Confidence            string   `json:"confidence"`
	NeedsMoreInfo         []string `json:"needs_more_info,omitempty"`
	NeedsRefinement       bool     `json:"needs_refinement"`
	Error                 string   `json:"error,omitempty"`

	RefinedTotalROI string `json:"refined_total_roi,omitempty"`
	NumHiresUsed    int    `json:"num_hires_used,omitempty"`
}

// Question is a single refinement prompt surfaced to the user, typed
// so the frontend renders the right input widget.
type Question struct {
	ProgramID  string `json:"program_id"`
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Type       string `json:"type"` // number, currency, percentage
	Required   bool   `json:"required"`
}

// Answers maps a question id to the user's raw answer.
type Answers map[string]string

// Cycle drives the bounded analyze → generate_questions → refine state
// machine for one session's shortlisted programs.
type Cycle struct {
	client    llm.Client
	MaxRounds int
}

func NewCycle(client llm.Client) *Cycle {
	return &Cycle{client: client, MaxRounds: DefaultMaxRounds}
}

// State is the mutable ROI cycle state threaded through rounds.
type State struct {
	Calculations    []Calculation `json:"calculations"`
	Questions       []Question    `json:"questions"`
	Answers         Answers       `json:"answers"`
	RefinementRound int           `json:"refinement_round"`
	IsComplete      bool          `json:"is_complete"`
}

// RunRound executes one analyze → generate_questions → refine pass
// and updates IsComplete per the contract: complete once every program
// is refined, or the round ceiling is reached.
func (c *Cycle) RunRound(ctx context.Context, st *State, shortlisted []programcache.Program) error {
	calcs := c.analyze(ctx, shortlisted, st.Answers)
	st.Calculations = calcs
	st.Questions = generateQuestions(calcs)
	refined, allComplete := refine(calcs, st.Answers)
	st.Calculations = refined

	st.RefinementRound++
	maxRounds := c.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	st.IsComplete = allComplete || st.RefinementRound >= maxRounds
	return nil
}

// analyze asks the LLM for a per-program ROI sketch. A single
// program's failure is recorded on that program's Calculation and
// never aborts the round.
func (c *Cycle) analyze(ctx context.Context, programs []programcache.Program, answers Answers) []Calculation {
	calcs := make([]Calculation, 0, len(programs))
	for _, p := range programs {
		progAnswers := answersForProgram(answers, p.CacheKey)
		calc, err := c.analyzeOne(ctx, p, progAnswers)
		if err != nil {
			calcs = append(calcs, Calculation{
				ProgramID:       p.CacheKey,
				ProgramName:     p.ProgramName,
				Error:           err.Error(),
				NeedsRefinement: true,
			})
			continue
		}
		calcs = append(calcs, calc)
	}
	return calcs
}

func answersForProgram(answers Answers, programID string) map[string]string {
	out := map[string]string{}
	for k, v := range answers {
		if strings.HasPrefix(k, programID) {
			out[k] = v
		}
	}
	return out
}

type analyzeResponse struct {
	EstimatedValuePerHire string   `json:"estimated_value_per_hire"`
	QualificationRate     string   `json:"qualification_rate"`
	Complexity            string   `json:"complexity"`
	TimeToBenefit         string   `json:"time_to_benefit"`
	Confidence            string   `json:"confidence"`
	NeedsMoreInfo         []string `json:"needs_more_info"`
}

func (c *Cycle) analyzeOne(ctx context.Context, p programcache.Program, previousAnswers map[string]string) (Calculation, error) {
	prevJSON, _ := json.Marshal(previousAnswers)
	prompt := fmt.Sprintf(analyzePrompt, p.ProgramName, p.BenefitType, p.MaxValue,
		strings.Join(p.TargetPopulations, ", "), string(prevJSON))

	resp, err := c.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, &llm.SamplingOptions{Temperature: 0.3})
	if err != nil {
		return Calculation{}, fmt.Errorf("roi analysis chat call: %w", err)
	}

	content := strings.TrimSpace(resp.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed analyzeResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return Calculation{}, fmt.Errorf("parse roi analysis response: %w", err)
	}

	return Calculation{
		ProgramID:             p.CacheKey,
		ProgramName:           p.ProgramName,
		EstimatedValuePerHire: parsed.EstimatedValuePerHire,
		QualificationRate:     parsed.QualificationRate,
		Complexity:            parsed.Complexity,
		TimeToBenefit:         parsed.TimeToBenefit,
		Confidence:            parsed.Confidence,
		NeedsMoreInfo:         parsed.NeedsMoreInfo,
		NeedsRefinement:       len(parsed.NeedsMoreInfo) > 0,
	}, nil
}

// generateQuestions emits one refinement question per info gap a
// program's analysis flagged, typed by keyword match against the gap
// description. A program flagged for refinement with no specific gap
// still gets a generic hiring-volume question so the round can make
// progress.
func generateQuestions(calcs []Calculation) []Question {
	var questions []Question
	for _, calc := range calcs {
		if !calc.NeedsRefinement {
			continue
		}

		for _, info := range calc.NeedsMoreInfo {
			lower := strings.ToLower(info)
			switch {
			case strings.Contains(lower, "hire") || strings.Contains(lower, "employee"):
				questions = append(questions, Question{
					ProgramID:  calc.ProgramID,
					QuestionID: calc.ProgramID + "_num_hires",
					Question:   fmt.Sprintf("For %s: How many employees from target populations do you plan to hire in the next 12 months?", calc.ProgramName),
					Type:       "number",
					Required:   true,
				})
			case strings.Contains(lower, "wage") || strings.Contains(lower, "salary"):
				questions = append(questions, Question{
					ProgramID:  calc.ProgramID,
					QuestionID: calc.ProgramID + "_avg_wage",
					Question:   fmt.Sprintf("For %s: What is the average hourly wage for these positions?", calc.ProgramName),
					Type:       "currency",
					Required:   true,
				})
			case strings.Contains(lower, "retention"):
				questions = append(questions, Question{
					ProgramID:  calc.ProgramID,
					QuestionID: calc.ProgramID + "_retention",
					Question:   fmt.Sprintf("For %s: What is your expected employee retention rate after 6 months?", calc.ProgramName),
					Type:       "percentage",
					Required:   false,
				})
			}
		}

		if len(calc.NeedsMoreInfo) == 0 {
			questions = append(questions, Question{
				ProgramID:  calc.ProgramID,
				QuestionID: calc.ProgramID + "_general",
				Question:   fmt.Sprintf("For %s: How many employees do you expect to hire who qualify for this program?", calc.ProgramName),
				Type:       "number",
				Required:   true,
			})
		}
	}
	return questions
}

// refine applies answered questions to each calculation: parses the
// estimated_value_per_hire range, takes its midpoint, multiplies by
// the answered hire count, and clears needs_refinement. Programs with
// no answers yet are carried over unchanged. Returns whether every
// program has been refined.
func refine(calcs []Calculation, answers Answers) ([]Calculation, bool) {
	allComplete := true
	out := make([]Calculation, 0, len(calcs))

	for _, calc := range calcs {
		numHiresRaw, hasHires := answers[calc.ProgramID+"_num_hires"]
		if !hasHires {
			numHiresRaw, hasHires = answers[calc.ProgramID+"_general"]
		}
		if !hasHires {
			out = append(out, calc)
			if calc.NeedsRefinement {
				allComplete = false
			}
			continue
		}

		numHires := parseIntOr(numHiresRaw, 0)
		midpoint := midpointDollarValue(calc.EstimatedValuePerHire)
		total := midpoint * float64(numHires)

		calc.RefinedTotalROI = formatDollars(total)
		calc.NumHiresUsed = numHires
		calc.NeedsRefinement = false
		out = append(out, calc)
	}

	return out, allComplete
}

func parseIntOr(s string, fallback int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fallback
	}
	return n
}

// formatDollars renders a whole-dollar amount with thousands separators,
// matching the "$X,XXX" presentation the original calculator used.
func formatDollars(amount float64) string {
	rounded := int64(amount + 0.5)
	negative := rounded < 0
	if negative {
		rounded = -rounded
	}
	digits := fmt.Sprintf("%d", rounded)

	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("$%s%s", sign, grouped.String())
}

func midpointDollarValue(rangeStr string) float64 {
	matches := dollarAmountPattern.FindAllStringSubmatch(rangeStr, -1)
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	var count int
	for _, m := range matches {
		cleaned := strings.ReplaceAll(m[1], ",", "")
		var n float64
		if _, err := fmt.Sscanf(cleaned, "%f", &n); err == nil {
			sum += n
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

const analyzePrompt = `You are an ROI analyst for employer hiring incentive programs.

Analyze this program and estimate potential ROI:
- Program: %s
- Benefit Type: %s
- Max Value: %s
- Target Populations: %s

Previous answers (if any): %s

Calculate:
1. Estimated value per hire (range)
2. Typical qualification rate
3. Administrative complexity (low/medium/high)
4. Time to receive benefit

Return JSON:
{
    "estimated_value_per_hire": "$X - $Y",
    "qualification_rate": "X%%",
    "complexity": "low|medium|high",
    "time_to_benefit": "X weeks/months",
    "confidence": "high|medium|low",
    "needs_more_info": ["list of info needed for refinement"]
}`
