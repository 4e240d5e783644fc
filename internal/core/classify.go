package core

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"medfollow/internal/catalogue"
	"medfollow/pkg"
)

// matchMode controls how a matcher compares its triggers against the
// normalised text.
type matchMode int

const (
	// matchLeading accepts the whole text or a text that starts with the
	// trigger followed by a non-word character ("hello, doctor").
	matchLeading matchMode = iota
	// matchContains accepts the trigger anywhere in the text.  Short Latin
	// triggers ("ty", "bp", "hot") must stand alone as a word.
	matchContains
	// matchExact accepts only the whole text.
	matchExact
)

type matcher struct {
	category pkg.Category
	severity pkg.Severity
	mode     matchMode
	triggers []string
}

// matchers is evaluated top to bottom and the first hit wins.  The order is
// part of the behaviour: a message that greets and mentions a fever is a
// greeting.  The catch-all is not listed; Classify returns it when nothing
// here matches.
var matchers = []matcher{
	{pkg.CategoryGreeting, pkg.SeverityNormal, matchLeading, []string{
		"hi", "hello", "hey", "hii", "helo", "howdy", "namaste", "नमस्ते", "నమస్కారం",
		"good morning", "good evening", "good afternoon", "good night", "sup", "yo",
	}},
	{pkg.CategoryHowAreYou, pkg.SeverityNormal, matchContains, []string{
		"how are you", "how r u", "are you ok", "kaise ho", "कैसे हो", "ela unnav", "ఎలా ఉన్నారు",
	}},
	{pkg.CategoryCapability, pkg.SeverityNormal, matchContains, []string{
		"who are you", "what are you", "what can you do", "tell me about yourself",
		"aap kaun", "आप कौन", "meeru evaru", "మీరు ఎవరు",
	}},
	{pkg.CategoryHelp, pkg.SeverityNormal, matchContains, []string{
		"help", "options", "menu", "help me", "सहायता", "సహాయం",
	}},
	{pkg.CategoryThanks, pkg.SeverityNormal, matchContains, []string{
		"thank", "thanks", "thank you", "ty", "dhanyavad", "ధన్యవాదాలు", "धन्यवाद",
	}},
	{pkg.CategoryAck, pkg.SeverityNormal, matchExact, []string{
		"ok", "okay", "fine", "alright", "got it", "understood", "k", "sure",
		"theek hai", "ठीक है", "sare", "సరే",
	}},
	{pkg.CategoryFever, pkg.SeverityModerate, matchContains, []string{
		"fever", "temperature", "hot", "burning", "chills", "बुखार", "तापमान", "జ్వరం", "ఉష్ణోగ్రత",
	}},
	{pkg.CategoryPain, pkg.SeverityModerate, matchContains, []string{
		"pain", "ache", "hurt", "sore", "cramp", "दर्द", "నొప్పి",
	}},
	{pkg.CategoryBreathing, pkg.SeverityModerate, matchContains, []string{
		"breathe", "breathing", "breath", "shortness", "oxygen", "chest", "सांस", "ఊపిరి",
	}},
	{pkg.CategoryDizziness, pkg.SeverityModerate, matchContains, []string{
		"dizzy", "dizziness", "faint", "nausea", "nauseous", "vomit", "vomiting", "lightheaded",
		"चक्कर", "మైకం",
	}},
	{pkg.CategorySwelling, pkg.SeverityModerate, matchContains, []string{
		"swelling", "swollen", "puffiness", "edema", "सूजन", "వాపు",
	}},
	{pkg.CategoryWound, pkg.SeverityModerate, matchContains, []string{
		"wound", "incision", "cut", "stitches", "suture", "bleed", "bleeding", "pus", "घाव", "గాయం",
	}},
	{pkg.CategoryBloodSugar, pkg.SeverityModerate, matchContains, []string{
		"sugar", "glucose", "diabetes", "insulin", "शर्करा", "చక్కెర",
	}},
	{pkg.CategoryBP, pkg.SeverityModerate, matchContains, []string{
		"blood pressure", "bp", "hypertension", "hypotension", "pressure", "रक्तचाप", "రక్తపోటు",
	}},
	{pkg.CategoryFatigue, pkg.SeverityModerate, matchContains, []string{
		"tired", "fatigue", "weak", "weakness", "sleep", "insomnia", "exhausted", "थकान", "అలసట",
	}},
	{pkg.CategoryMedication, pkg.SeverityModerate, matchContains, []string{
		"medicine", "medication", "tablet", "pill", "drug", "dose", "antibiotic", "दवा", "మందు",
	}},
}

// CategoryOrder returns the categories in the order they are tested, ending
// with the catch-all.
func CategoryOrder() []pkg.Category {
	out := make([]pkg.Category, 0, len(matchers)+1)
	for _, m := range matchers {
		out = append(out, m.category)
	}
	return append(out, pkg.CategoryCatchAll)
}

// Classifier maps patient text onto a guidance category and renders the
// matching template.  It holds no mutable state.
type Classifier struct {
	Phrases *catalogue.Catalogue
}

// NewClassifier constructs a Classifier backed by the given catalogue.
func NewClassifier(phrases *catalogue.Catalogue) *Classifier {
	return &Classifier{Phrases: phrases}
}

// Classify never fails: text that matches no trigger falls through to the
// catch-all category.  Empty text is rejected by callers before this point.
func (c *Classifier) Classify(u pkg.Utterance) pkg.GuidanceResult {
	category, severity := Match(u.Text)
	return pkg.GuidanceResult{
		Category:  category,
		Severity:  severity,
		Message:   c.render(category, severity, u),
		Emergency: severity.Emergency(),
		Source:    pkg.SourceKeywords,
	}
}

// Match returns the category and severity for text without rendering a
// message.
func Match(text string) (pkg.Category, pkg.Severity) {
	norm := normalize(text)
	for _, m := range matchers {
		if m.matches(norm) {
			return m.category, m.severity
		}
	}
	return pkg.CategoryCatchAll, pkg.SeverityNormal
}

func (c *Classifier) render(category pkg.Category, severity pkg.Severity, u pkg.Utterance) string {
	vars := map[string]string{"name": u.PatientName, "greeting_name": ""}
	if name := strings.TrimSpace(u.PatientName); name != "" {
		vars["greeting_name"] = ", " + name
	}
	key := "guidance." + string(category)
	msg := c.Phrases.Render(u.Language, key, vars)
	if severity == pkg.SeverityNormal {
		return msg
	}
	escalation, ok := c.Phrases.Lookup(u.Language, key+".escalation")
	if !ok {
		return msg
	}
	return msg + "\n\n" + Marker(c.Phrases, u.Language, severity) + " " + catalogue.Fill(escalation, vars)
}

// Marker returns the visual marker printed in front of escalation text for a
// severity.  Normal results carry no marker.
func Marker(phrases *catalogue.Catalogue, lang pkg.Language, s pkg.Severity) string {
	switch s {
	case pkg.SeverityHigh:
		return phrases.Get(lang, "marker.high")
	case pkg.SeverityModerate:
		return phrases.Get(lang, "marker.moderate")
	default:
		return ""
	}
}

func normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}

func (m matcher) matches(text string) bool {
	for _, t := range m.triggers {
		switch m.mode {
		case matchLeading:
			if text == t || (strings.HasPrefix(text, t) && !wordRuneAt(text, len(t))) {
				return true
			}
		case matchExact:
			if text == t {
				return true
			}
		case matchContains:
			if isShortLatin(t) {
				if containsWord(text, t) {
					return true
				}
			} else if strings.Contains(text, t) {
				return true
			}
		}
	}
	return false
}

func isShortLatin(term string) bool {
	if len(term) > 3 {
		return false
	}
	for i := 0; i < len(term); i++ {
		if term[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// containsWord reports whether term occurs in text with no word character
// immediately before or after it.
func containsWord(text, term string) bool {
	for start := 0; start <= len(text)-len(term); {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(term)
		if !wordRuneBefore(text, i) && !wordRuneAt(text, end) {
			return true
		}
		start = i + 1
	}
	return false
}

func wordRuneAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}

func wordRuneBefore(s string, i int) bool {
	if i <= 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
