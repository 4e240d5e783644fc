package pkg

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Language identifies one of the supported catalogue languages.  Any tag the
// catalogue does not know resolves to English rather than failing.
type Language string

const (
	English Language = "English"
	Hindi   Language = "Hindi"
	Telugu  Language = "Telugu"
)

// DefaultLanguage is used whenever a caller supplies an unknown tag.
const DefaultLanguage = English

// Languages lists the supported languages in display order.
var Languages = []Language{English, Hindi, Telugu}

// ParseLanguage maps a free-form tag onto a supported Language.  Matching is
// case-insensitive and also accepts the short ISO codes.
func ParseLanguage(tag string) Language {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "english", "en":
		return English
	case "hindi", "hi":
		return Hindi
	case "telugu", "te":
		return Telugu
	default:
		return DefaultLanguage
	}
}

// Code returns the ISO 639-1 code, used by speech engines.
func (l Language) Code() string {
	switch l {
	case Hindi:
		return "hi"
	case Telugu:
		return "te"
	default:
		return "en"
	}
}

// Severity is the triage verdict attached to every guidance result.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Rank orders severities so results can be combined by taking the maximum.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityModerate:
		return 1
	default:
		return 0
	}
}

// Emergency reports whether the severity asks the patient to act urgently.
func (s Severity) Emergency() bool { return s == SeverityHigh }

// Category identifies one of the fixed guidance topics a patient message can
// be classified into.
type Category string

const (
	CategoryGreeting   Category = "greeting"
	CategoryHowAreYou  Category = "how_are_you"
	CategoryCapability Category = "capability"
	CategoryHelp       Category = "help"
	CategoryThanks     Category = "thanks"
	CategoryAck        Category = "acknowledgement"
	CategoryFever      Category = "fever"
	CategoryPain       Category = "pain"
	CategoryBreathing  Category = "breathing"
	CategoryDizziness  Category = "dizziness"
	CategorySwelling   Category = "swelling"
	CategoryWound      Category = "wound"
	CategoryBloodSugar Category = "blood_sugar"
	CategoryBP         Category = "blood_pressure"
	CategoryFatigue    Category = "fatigue"
	CategoryMedication Category = "medication"
	CategoryCatchAll   Category = "general"
	CategoryVitals     Category = "vitals"
)

// Utterance is a single message typed by a patient.
type Utterance struct {
	Text        string   `json:"text"`
	Language    Language `json:"language"`
	PatientName string   `json:"patient_name,omitempty"`
}

// PatientContext carries the optional details used to personalise remote
// guidance.
type PatientContext struct {
	Name          string   `json:"name,omitempty"`
	ProcedureType string   `json:"procedure_type,omitempty"`
	Language      Language `json:"language,omitempty"`
}

// VitalsReading holds the optional vital signs a patient reports.  A nil
// field means the metric was not reported.
type VitalsReading struct {
	Temperature       *float64 `json:"temperature,omitempty"`
	SystolicPressure  *float64 `json:"systolic_pressure,omitempty"`
	DiastolicPressure *float64 `json:"diastolic_pressure,omitempty"`
	HeartRate         *float64 `json:"heart_rate,omitempty"`
	BloodSugar        *float64 `json:"blood_sugar,omitempty"`
	OxygenSaturation  *float64 `json:"oxygen_saturation,omitempty"`
}

// Issue is one abnormality detected by the vitals analyzer together with the
// matching recommendation.
type Issue struct {
	Metric         string   `json:"metric"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	Severity       Severity `json:"severity"`
}

// Guidance sources.
const (
	SourceKeywords = "keywords"
	SourceLLM      = "llm"
	SourceVitals   = "vitals"
)

// GuidanceResult is produced fresh for every classification or vitals
// analysis.  Severity is decided when the result is built; Message is
// rendered from it.
type GuidanceResult struct {
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Emergency bool     `json:"emergency"`
	Issues    []Issue  `json:"issues,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// RecordKind distinguishes the two kinds of log records.
type RecordKind string

const (
	KindAppointment RecordKind = "appointment"
	KindCallOutcome RecordKind = "call-outcome"
)

// Appointment holds the fields of an appointment booking.
type Appointment struct {
	Doctor string `json:"doctor"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason,omitempty"`
}

// CallOutcome is the result of one completed IVR call.
type CallOutcome struct {
	Choice      string   `json:"choice"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Alert       bool     `json:"alert"`
}

// LogRecord is one append-only entry in the call/appointment log.  Exactly one
// of Appointment or Call is set, according to Kind.
type LogRecord struct {
	ID          uuid.UUID    `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Kind        RecordKind   `json:"kind"`
	PatientName string       `json:"patient_name"`
	Language    Language     `json:"language"`
	Appointment *Appointment `json:"appointment,omitempty"`
	Call        *CallOutcome `json:"call,omitempty"`
}

// DoctorAlert is raised when a patient reports a worsened condition during a
// follow-up call.  It travels separately from the log so an operator sees it
// immediately.
type DoctorAlert struct {
	ID          uuid.UUID `json:"id"`
	PatientName string    `json:"patient_name"`
	Language    Language  `json:"language"`
	Outcome     string    `json:"outcome"`
	RaisedAt    time.Time `json:"raised_at"`
}

// ChatRequest is the body of POST /postop-chat.
type ChatRequest struct {
	Message     string `json:"message"`
	PatientName string `json:"patient_name"`
	SurgeryType string `json:"surgery_type"`
	Language    string `json:"language"`
}

// ChatResponse is returned by POST /postop-chat.
type ChatResponse struct {
	ResponseText string   `json:"response_text"`
	Category     Category `json:"category"`
	Severity     Severity `json:"severity"`
	Alert        bool     `json:"alert"`
	Source       string   `json:"source"`
}

// VitalsResponse is returned by POST /analyze.
type VitalsResponse struct {
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Emergency bool     `json:"emergency"`
	Issues    []Issue  `json:"issues"`
}

// AppointmentRequest is the body of POST /book-appointment.
type AppointmentRequest struct {
	PatientName string `json:"patient_name"`
	Doctor      string `json:"doctor"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Reason      string `json:"reason"`
	Language    string `json:"language"`
}

// CallRequest is the body of POST /customer-care-call.
type CallRequest struct {
	PatientName string `json:"patient_name"`
	Language    string `json:"language"`
}

// StatusResponse acknowledges actions that have no other payload.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// LogResponse is returned by GET /log.
type LogResponse struct {
	Entries []string `json:"entries"`
}

// DefaultPatientName is used when a request omits the patient's name.
const DefaultPatientName = "Patient"
