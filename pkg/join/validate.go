package join

import (
	"strings"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
)

// ValidationError describes a single non-fatal issue found on a
// program record. Validation never drops a record — it only tags it
// so downstream consumers (the admin notification, the UI) can flag
// low-confidence or incomplete entries to a human.
type ValidationError struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// Validated pairs a program with its validation outcome.
type Validated struct {
	Program          programcache.Program `json:"program"`
	Valid            bool                 `json:"valid"`
	ValidationErrors []ValidationError    `json:"validation_errors,omitempty"`
}

// Validate checks the fixed set of non-fatal issues: a missing source
// URL, a confidence of "low", and any missing required field. A
// program with zero validation errors is marked Valid.
func Validate(programs []programcache.Program) []Validated {
	out := make([]Validated, 0, len(programs))
	for _, p := range programs {
		var errs []ValidationError

		if strings.TrimSpace(p.SourceURL) == "" {
			errs = append(errs, ValidationError{ErrorType: "missing_source_url", Message: "program has no source URL"})
		}
		if p.Confidence == programcache.ConfidenceLow {
			errs = append(errs, ValidationError{ErrorType: "low_confidence", Message: "program confidence is low"})
		}
		for _, field := range []struct {
			name  string
			value string
		}{
			{"program_name", p.ProgramName},
			{"agency", p.Agency},
			{"benefit_type", p.BenefitType},
		} {
			if strings.TrimSpace(field.value) == "" {
				errs = append(errs, ValidationError{ErrorType: "missing_field", Message: "missing required field: " + field.name})
			}
		}

		out = append(out, Validated{Program: p, Valid: len(errs) == 0, ValidationErrors: errs})
	}
	return out
}
