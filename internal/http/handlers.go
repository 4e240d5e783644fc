package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"medfollow/internal/apperr"
	"medfollow/internal/calllog"
	"medfollow/internal/core"
	"medfollow/internal/metrics"
	"medfollow/pkg"
)

// handleChat answers a free-text patient message.  The verdict is always the
// classifier's; Alert is set for any non-normal severity.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req pkg.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, apperr.Validation("No message provided", map[string]string{"message": "required"}))
		return
	}
	lang := pkg.ParseLanguage(req.Language)
	name := strings.TrimSpace(req.PatientName)
	result := s.Guide.Guide(r.Context(),
		pkg.Utterance{Text: req.Message, Language: lang, PatientName: name},
		pkg.PatientContext{Name: name, ProcedureType: strings.TrimSpace(req.SurgeryType), Language: lang},
	)
	metrics.RecordGuidance(result)
	writeJSON(w, http.StatusOK, pkg.ChatResponse{
		ResponseText: result.Message,
		Category:     result.Category,
		Severity:     result.Severity,
		Alert:        result.Severity != pkg.SeverityNormal,
		Source:       result.Source,
	})
}

// handleAnalyze runs the vitals analyzer over whatever metrics were sent.
// Unknown and malformed fields are ignored, so the request never fails on
// content.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	fields := map[string]any{}
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, err)
		return
	}
	analyzer := *s.Vitals
	if l, ok := fields["language"].(string); ok {
		analyzer.Language = pkg.ParseLanguage(l)
	}
	result := analyzer.Analyze(core.ParseReading(fields))
	metrics.RecordVitals(result.Severity)
	issues := result.Issues
	if issues == nil {
		issues = []pkg.Issue{}
	}
	writeJSON(w, http.StatusOK, pkg.VitalsResponse{
		Message:   result.Message,
		Severity:  result.Severity,
		Emergency: result.Emergency,
		Issues:    issues,
	})
}

// handleBookAppointment validates and logs an appointment.  A log failure is
// reported as a generic failure; no confirmation is sent for an unlogged
// booking.
func (s *Server) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	var req pkg.AppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	appt := pkg.Appointment{
		Doctor: strings.TrimSpace(req.Doctor),
		Date:   strings.TrimSpace(req.Date),
		Time:   strings.TrimSpace(req.Time),
		Reason: strings.TrimSpace(req.Reason),
	}
	missing := map[string]string{}
	for field, v := range map[string]string{"doctor": appt.Doctor, "date": appt.Date, "time": appt.Time} {
		if v == "" {
			missing[field] = "required"
		}
	}
	if len(missing) > 0 {
		writeError(w, apperr.Validation("Missing required fields", missing))
		return
	}

	patient := patientName(req.PatientName)
	lang := pkg.ParseLanguage(req.Language)
	rec := calllog.NewAppointmentRecord(patient, lang, appt, s.Now())
	if err := s.Log.Append(r.Context(), rec); err != nil {
		metrics.RecordLogAppendFailure(rec.Kind)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg.StatusResponse{
		Status: "success",
		Message: s.Phrases.Render(lang, "appointment.confirmed", map[string]string{
			"doctor": appt.Doctor, "date": appt.Date, "time": appt.Time,
		}),
		ID: rec.ID.String(),
	})
}

// handleCustomerCareCall starts a follow-up call and returns without
// waiting for it.
func (s *Server) handleCustomerCareCall(w http.ResponseWriter, r *http.Request) {
	if s.Launcher == nil {
		writeError(w, apperr.Unavailable("call launching is not configured"))
		return
	}
	var req pkg.CallRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	patient := patientName(req.PatientName)
	lang := pkg.ParseLanguage(req.Language)
	if err := s.Launcher.Launch(r.Context(), patient, lang); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg.StatusResponse{
		Status:  "success",
		Message: s.Phrases.Render(lang, "call.started", map[string]string{"name": patient}),
	})
}

// handleLog returns the non-empty log lines in write order.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	lines, err := s.Log.Lines(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	entries := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			entries = append(entries, l)
		}
	}
	writeJSON(w, http.StatusOK, pkg.LogResponse{Entries: entries})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	lang := pkg.ParseLanguage(chi.URLParam(r, "language"))
	field := chi.URLParam(r, "field")
	opts := s.Phrases.Options(lang, field)
	if len(opts) == 0 {
		writeError(w, apperr.NotFound("option list", field))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"language": lang,
		"field":    field,
		"options":  opts,
	})
}

func patientName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return pkg.DefaultPatientName
	}
	return name
}
