package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/apierr"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/orchestrator"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/roi"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Stats())
}

// handleDiscover enforces the rate limiter's concurrent/daily session
// ceilings synchronously, returning a typed 429 denial per spec §7
// before any worker task is spawned.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteBadRequest(w, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		apierr.WriteBadRequest(w, err.Error())
		return
	}

	if ok, reason := s.limiter.CanStartSession(); !ok {
		if s.metrics != nil {
			s.metrics.ObserveError("ratelimit")
		}
		apierr.WriteTooManyRequests(w, reason)
		return
	}

	sess := s.graph.StartDiscovery(orchestrator.DiscoverRequest{
		Address:         req.Address,
		LegalEntityType: req.LegalEntityType,
		IndustryCode:    req.IndustryCode,
	})
	s.limiter.StartSession(sess.ID)

	writeJSON(w, http.StatusAccepted, discoverResponse{
		SessionID: sess.ID,
		Status:    string(orchestrator.StatusStarted),
		Message:   "discovery started",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	levels := make([]string, 0, len(sess.GovernmentLevels))
	for _, l := range sess.GovernmentLevels {
		levels = append(levels, string(l))
	}
	progress := make(map[string]string, len(sess.SearchProgress))
	for level, p := range sess.SearchProgress {
		progress[string(level)] = string(p)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:           string(sess.Status),
		CurrentStep:      sess.CurrentPhase,
		GovernmentLevels: levels,
		ProgramsFound:    len(sess.MergedPrograms),
		SearchProgress:   progress,
		Errors:           sess.Errors,
	})
}

func (s *Server) handlePrograms(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"programs": sess.ValidatedPrograms})
}

func (s *Server) handleShortlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req shortlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteBadRequest(w, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		apierr.WriteBadRequest(w, err.Error())
		return
	}

	questions, err := s.graph.Shortlist(r.Context(), id, req.ProgramIDs)
	if err != nil {
		apierr.WriteNotFound(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, shortlistResponse{Shortlisted: req.ProgramIDs, ROIQuestions: questions})
}

func (s *Server) handleROIQuestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": sess.ROIState.Questions})
}

func (s *Server) handleROIAnswers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req roiAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteBadRequest(w, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		apierr.WriteBadRequest(w, err.Error())
		return
	}

	st, err := s.graph.SubmitROIAnswers(r.Context(), id, roi.Answers(req.Answers))
	if err != nil {
		apierr.WriteNotFound(w, err.Error())
		return
	}

	resp := roiAnswersResponse{
		Calculations: st.Calculations,
		IsComplete:   st.IsComplete,
	}
	if !st.IsComplete {
		resp.AdditionalQuestions = st.Questions
	} else {
		resp.SpreadsheetURL = fmt.Sprintf("/incentives/%s/roi-spreadsheet", id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleROISpreadsheet renders the current ROI calculations as CSV —
// the "binary tabular download" spec §6 describes, in the simplest
// format a spreadsheet application opens directly.
func (s *Server) handleROISpreadsheet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="roi-%s.csv"`, sess.ID))
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"program_id", "program_name", "estimated_value_per_hire", "num_hires_used", "refined_total_roi", "confidence"})
	for _, c := range sess.ROIState.Calculations {
		_ = cw.Write([]string{
			c.ProgramID, c.ProgramName, c.EstimatedValuePerHire,
			strconv.Itoa(c.NumHiresUsed), c.RefinedTotalROI, c.Confidence,
		})
	}
	cw.Flush()
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (orchestrator.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.graph.Store.Get(id)
	if !ok {
		apierr.WriteNotFound(w, "session not found: "+id)
		return orchestrator.Session{}, false
	}
	return sess.Snapshot(), true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
