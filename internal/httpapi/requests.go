package httpapi

// discoverRequest is the POST /incentives/discover body.
type discoverRequest struct {
	Address         string `json:"address" validate:"required"`
	LegalEntityType string `json:"legal_entity_type" validate:"required"`
	IndustryCode    string `json:"industry_code"`
}

type discoverResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type shortlistRequest struct {
	ProgramIDs []string `json:"program_ids" validate:"required,min=1"`
}

type shortlistResponse struct {
	Shortlisted  []string    `json:"shortlisted"`
	ROIQuestions interface{} `json:"roi_questions"`
}

type roiAnswersRequest struct {
	Answers map[string]string `json:"answers" validate:"required"`
}

type roiAnswersResponse struct {
	Calculations        interface{} `json:"calculations"`
	IsComplete          bool        `json:"is_complete"`
	AdditionalQuestions interface{} `json:"additional_questions,omitempty"`
	SpreadsheetURL      string      `json:"spreadsheet_url,omitempty"`
}

type statusResponse struct {
	Status          string            `json:"status"`
	CurrentStep     string            `json:"current_step"`
	GovernmentLevels []string         `json:"government_levels"`
	ProgramsFound   int               `json:"programs_found"`
	SearchProgress  map[string]string `json:"search_progress"`
	Errors          []string          `json:"errors,omitempty"`
}
