package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"medfollow/internal/catalogue"
	"medfollow/pkg"
)

// Thresholds used by the vitals analyzer.  Comparisons are strict: a
// temperature of exactly 99.5°F or an oxygen saturation of exactly 94% is
// within range.
const (
	TempHighF         = 99.5
	TempLowF          = 96.0
	SystolicHigh      = 140
	DiastolicHigh     = 90
	SystolicLow       = 90
	DiastolicLow      = 60
	HeartRateHigh     = 100
	HeartRateLow      = 60
	HeartRateCritical = 120
	SugarHigh         = 180
	SugarLow          = 70
	OxygenLow         = 94
	OxygenCritical    = 90
)

// Analyzer turns a vitals reading into a list of issues and an overall
// severity.  Each metric is checked on its own; one metric never changes
// the verdict on another.
type Analyzer struct {
	Phrases  *catalogue.Catalogue
	Language pkg.Language
}

// NewAnalyzer constructs an Analyzer rendering its report in the default
// language.
func NewAnalyzer(phrases *catalogue.Catalogue) *Analyzer {
	return &Analyzer{Phrases: phrases, Language: pkg.DefaultLanguage}
}

// Analyze never fails.  Metrics that are absent, zero or not finite are
// treated as not reported.
func (a *Analyzer) Analyze(r pkg.VitalsReading) pkg.GuidanceResult {
	issues := a.Issues(r)
	severity := pkg.SeverityNormal
	if len(issues) > 0 {
		severity = pkg.SeverityModerate
	}
	for _, is := range issues {
		if is.Severity.Rank() > severity.Rank() {
			severity = is.Severity
		}
	}
	return pkg.GuidanceResult{
		Category:  pkg.CategoryVitals,
		Severity:  severity,
		Message:   a.report(issues, severity),
		Emergency: severity.Emergency(),
		Issues:    issues,
		Source:    pkg.SourceVitals,
	}
}

// Issues evaluates every rule and returns the violations in a fixed metric
// order: temperature, blood pressure, heart rate, blood sugar, oxygen.
// Blood pressure is judged only as a pair; a systolic value without a
// diastolic one (or the reverse) is ignored.
func (a *Analyzer) Issues(r pkg.VitalsReading) []pkg.Issue {
	var issues []pkg.Issue
	add := func(metric, key, value string, severity pkg.Severity) {
		vars := map[string]string{"value": value}
		issues = append(issues, pkg.Issue{
			Metric:         metric,
			Description:    a.Phrases.Render(a.Language, key, vars),
			Recommendation: a.Phrases.Render(a.Language, key+".rec", vars),
			Severity:       severity,
		})
	}

	if t, ok := reported(r.Temperature); ok {
		switch {
		case t > TempHighF:
			add("temperature", "vitals.temperature.high", formatNumber(t), pkg.SeverityModerate)
		case t < TempLowF:
			add("temperature", "vitals.temperature.low", formatNumber(t), pkg.SeverityModerate)
		}
	}

	sys, sysOK := reported(r.SystolicPressure)
	dia, diaOK := reported(r.DiastolicPressure)
	if sysOK && diaOK {
		pair := formatNumber(sys) + "/" + formatNumber(dia)
		switch {
		case sys > SystolicHigh || dia > DiastolicHigh:
			add("blood_pressure", "vitals.blood_pressure.high", pair, pkg.SeverityModerate)
		case sys < SystolicLow || dia < DiastolicLow:
			add("blood_pressure", "vitals.blood_pressure.low", pair, pkg.SeverityModerate)
		}
	}

	if hr, ok := reported(r.HeartRate); ok {
		switch {
		case hr > HeartRateCritical:
			add("heart_rate", "vitals.heart_rate.high", formatNumber(hr), pkg.SeverityHigh)
		case hr > HeartRateHigh:
			add("heart_rate", "vitals.heart_rate.high", formatNumber(hr), pkg.SeverityModerate)
		case hr < HeartRateLow:
			add("heart_rate", "vitals.heart_rate.low", formatNumber(hr), pkg.SeverityModerate)
		}
	}

	if s, ok := reported(r.BloodSugar); ok {
		switch {
		case s > SugarHigh:
			add("blood_sugar", "vitals.blood_sugar.high", formatNumber(s), pkg.SeverityModerate)
		case s < SugarLow:
			add("blood_sugar", "vitals.blood_sugar.low", formatNumber(s), pkg.SeverityModerate)
		}
	}

	if o, ok := reported(r.OxygenSaturation); ok {
		switch {
		case o < OxygenCritical:
			add("oxygen_saturation", "vitals.oxygen.low", formatNumber(o), pkg.SeverityHigh)
		case o < OxygenLow:
			add("oxygen_saturation", "vitals.oxygen.low", formatNumber(o), pkg.SeverityModerate)
		}
	}
	return issues
}

func (a *Analyzer) report(issues []pkg.Issue, severity pkg.Severity) string {
	lang := a.Language
	if len(issues) == 0 {
		return a.Phrases.Get(lang, "vitals.normal")
	}
	marker := Marker(a.Phrases, lang, severity)
	var b strings.Builder
	b.WriteString(a.Phrases.Render(lang, "vitals.header", map[string]string{
		"marker": marker,
		"count":  strconv.Itoa(len(issues)),
	}))
	b.WriteString("\n\n")
	for _, is := range issues {
		b.WriteString("• " + is.Description + "\n")
	}
	b.WriteString("\n" + a.Phrases.Get(lang, "vitals.recommendations") + "\n")
	for _, is := range issues {
		b.WriteString("• " + is.Recommendation + "\n")
	}
	if severity == pkg.SeverityHigh {
		b.WriteString("\n" + marker + " " + a.Phrases.Get(lang, "vitals.emergency") + "\n")
	}
	b.WriteString("\n" + a.Phrases.Get(lang, "vitals.closing"))
	return b.String()
}

func reported(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return 0, false
	}
	return *v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var metricAliases = map[string][]string{
	"temperature":        {"temperature", "temp"},
	"systolic_pressure":  {"systolic_pressure", "systolicPressure", "blood_pressure_systolic", "systolic"},
	"diastolic_pressure": {"diastolic_pressure", "diastolicPressure", "blood_pressure_diastolic", "diastolic"},
	"heart_rate":         {"heart_rate", "heartRate", "pulse"},
	"blood_sugar":        {"blood_sugar", "bloodSugar", "glucose"},
	"oxygen_saturation":  {"oxygen_saturation", "oxygenSaturation", "oxygen_level", "spo2"},
}

// ParseReading builds a VitalsReading from loosely typed request fields.
// Numbers may arrive as JSON numbers or numeric strings; anything else is
// dropped for that metric alone.  A combined "blood_pressure" value such as
// "150/95" is accepted when the separate fields are missing; a malformed
// pair is ignored.
func ParseReading(fields map[string]any) pkg.VitalsReading {
	var r pkg.VitalsReading
	r.Temperature = lookupMetric(fields, "temperature")
	r.SystolicPressure = lookupMetric(fields, "systolic_pressure")
	r.DiastolicPressure = lookupMetric(fields, "diastolic_pressure")
	r.HeartRate = lookupMetric(fields, "heart_rate")
	r.BloodSugar = lookupMetric(fields, "blood_sugar")
	r.OxygenSaturation = lookupMetric(fields, "oxygen_saturation")

	if r.SystolicPressure == nil && r.DiastolicPressure == nil {
		if s, ok := fields["blood_pressure"].(string); ok {
			if sys, dia, ok := splitPressure(s); ok {
				r.SystolicPressure, r.DiastolicPressure = &sys, &dia
			}
		}
	}
	return r
}

func lookupMetric(fields map[string]any, metric string) *float64 {
	for _, name := range metricAliases[metric] {
		raw, ok := fields[name]
		if !ok || raw == nil {
			continue
		}
		if v, ok := toFloat(raw); ok {
			return &v
		}
		return nil
	}
	return nil
}

func toFloat(raw any) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case int:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func splitPressure(s string) (float64, float64, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	sys, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	dia, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return sys, dia, true
}
