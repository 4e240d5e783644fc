package core

import (
	"reflect"
	"strings"
	"testing"

	"medfollow/internal/catalogue"
	"medfollow/pkg"
)

var phrases = catalogue.MustLoad()

// canonical holds one trigger phrase per category and language.
var canonical = map[pkg.Category]map[pkg.Language]string{
	pkg.CategoryGreeting:   {pkg.English: "hello", pkg.Hindi: "नमस्ते", pkg.Telugu: "నమస్కారం"},
	pkg.CategoryHowAreYou:  {pkg.English: "how are you", pkg.Hindi: "आप कैसे हो", pkg.Telugu: "మీరు ఎలా ఉన్నారు"},
	pkg.CategoryCapability: {pkg.English: "who are you", pkg.Hindi: "आप कौन हैं", pkg.Telugu: "మీరు ఎవరు"},
	pkg.CategoryHelp:       {pkg.English: "help", pkg.Hindi: "सहायता", pkg.Telugu: "సహాయం"},
	pkg.CategoryThanks:     {pkg.English: "thank you", pkg.Hindi: "धन्यवाद", pkg.Telugu: "ధన్యవాదాలు"},
	pkg.CategoryAck:        {pkg.English: "ok", pkg.Hindi: "ठीक है", pkg.Telugu: "సరే"},
	pkg.CategoryFever:      {pkg.English: "I have a fever", pkg.Hindi: "मुझे बुखार है", pkg.Telugu: "నాకు జ్వరం ఉంది"},
	pkg.CategoryPain:       {pkg.English: "my leg hurts", pkg.Hindi: "पेट में दर्द", pkg.Telugu: "కడుపు నొప్పి"},
	pkg.CategoryBreathing:  {pkg.English: "shortness of breath", pkg.Hindi: "सांस लेने में तकलीफ", pkg.Telugu: "ఊపిరి ఆడటం లేదు"},
	pkg.CategoryDizziness:  {pkg.English: "I feel dizzy", pkg.Hindi: "चक्कर आ रहे हैं", pkg.Telugu: "మైకం గా ఉంది"},
	pkg.CategorySwelling:   {pkg.English: "my ankle is swollen", pkg.Hindi: "पैर में सूजन", pkg.Telugu: "కాలు వాపు"},
	pkg.CategoryWound:      {pkg.English: "my wound is bleeding", pkg.Hindi: "घाव से खून", pkg.Telugu: "గాయం నుండి రక్తం"},
	pkg.CategoryBloodSugar: {pkg.English: "my glucose is high", pkg.Hindi: "शर्करा बढ़ी है", pkg.Telugu: "చక్కెర ఎక్కువ"},
	pkg.CategoryBP:         {pkg.English: "my blood pressure is high", pkg.Hindi: "रक्तचाप बढ़ा है", pkg.Telugu: "రక్తపోటు ఎక్కువ"},
	pkg.CategoryFatigue:    {pkg.English: "I feel tired", pkg.Hindi: "बहुत थकान है", pkg.Telugu: "చాలా అలసట"},
	pkg.CategoryMedication: {pkg.English: "when should I take my medicine", pkg.Hindi: "दवा कब लेनी है", pkg.Telugu: "మందు ఎప్పుడు వేసుకోవాలి"},
	pkg.CategoryCatchAll:   {pkg.English: "something else entirely", pkg.Hindi: "कुछ और बात", pkg.Telugu: "ఇంకేదో విషయం"},
}

func TestClassifyCanonicalPhrases(t *testing.T) {
	c := NewClassifier(phrases)
	order := CategoryOrder()
	if len(order) != 17 {
		t.Fatalf("expected 17 categories, got %d", len(order))
	}
	for _, cat := range order {
		for _, lang := range pkg.Languages {
			text, ok := canonical[cat][lang]
			if !ok {
				t.Fatalf("no canonical phrase for %s/%s", cat, lang)
			}
			t.Run(string(cat)+"/"+string(lang), func(t *testing.T) {
				got := c.Classify(pkg.Utterance{Text: text, Language: lang})
				if got.Category != cat {
					t.Fatalf("%q: expected %s, got %s", text, cat, got.Category)
				}
				if got.Message == "" {
					t.Fatalf("%q: empty message", text)
				}
			})
		}
	}
}

func TestClassifySeverityByCategory(t *testing.T) {
	c := NewClassifier(phrases)
	for i, cat := range CategoryOrder() {
		got := c.Classify(pkg.Utterance{Text: canonical[cat][pkg.English], Language: pkg.English})
		want := pkg.SeverityNormal
		if i >= 6 && i <= 15 {
			want = pkg.SeverityModerate
		}
		if got.Severity != want {
			t.Errorf("%s: expected severity %s, got %s", cat, want, got.Severity)
		}
		if got.Emergency {
			t.Errorf("%s: keyword guidance must not be flagged as emergency", cat)
		}
		marker := phrases.Get(pkg.English, "marker.moderate")
		if hasMarker := strings.Contains(got.Message, marker); hasMarker != (want == pkg.SeverityModerate) {
			t.Errorf("%s: marker presence %v does not follow severity %s", cat, hasMarker, want)
		}
	}
}

func TestGreetingWinsOverFever(t *testing.T) {
	c := NewClassifier(phrases)
	for _, text := range []string{"hello I have a fever", "Hello, I have a fever", "नमस्ते मुझे बुखार है"} {
		if got := c.Classify(pkg.Utterance{Text: text}); got.Category != pkg.CategoryGreeting {
			t.Errorf("%q: expected greeting, got %s", text, got.Category)
		}
	}
}

func TestAcknowledgementIsExactOnly(t *testing.T) {
	if cat, _ := Match("  OK  "); cat != pkg.CategoryAck {
		t.Fatalf("expected acknowledgement, got %s", cat)
	}
	if cat, _ := Match("ok my stitches are itchy"); cat != pkg.CategoryWound {
		t.Fatalf("expected wound, got %s", cat)
	}
}

func TestShortTriggersMatchWholeWordsOnly(t *testing.T) {
	cases := []struct {
		text string
		want pkg.Category
	}{
		{"my anxiety is bad", pkg.CategoryCatchAll},
		{"ty so much", pkg.CategoryThanks},
		{"my bp is 150/95", pkg.CategoryBP},
		{"history of asthma", pkg.CategoryCatchAll},
		{"feeling hot today", pkg.CategoryFever},
	}
	for _, tc := range cases {
		if cat, _ := Match(tc.text); cat != tc.want {
			t.Errorf("%q: expected %s, got %s", tc.text, tc.want, cat)
		}
	}
}

func TestFeverScenario(t *testing.T) {
	c := NewClassifier(phrases)
	got := c.Classify(pkg.Utterance{Text: "I have a fever", Language: pkg.English})
	if got.Category != pkg.CategoryFever || got.Severity != pkg.SeverityModerate {
		t.Fatalf("unexpected result %+v", got)
	}
	if !strings.Contains(got.Message, "103°F") {
		t.Fatalf("expected escalation threshold in message, got %q", got.Message)
	}
}

func TestPatientNamePersonalisesGreeting(t *testing.T) {
	c := NewClassifier(phrases)
	named := c.Classify(pkg.Utterance{Text: "hi", PatientName: "Priya"})
	if !strings.HasPrefix(named.Message, "Hello, Priya!") {
		t.Fatalf("expected personalised greeting, got %q", named.Message)
	}
	anon := c.Classify(pkg.Utterance{Text: "hi"})
	if !strings.HasPrefix(anon.Message, "Hello!") {
		t.Fatalf("expected anonymous greeting, got %q", anon.Message)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	c := NewClassifier(phrases)
	u := pkg.Utterance{Text: "my wound is bleeding", Language: pkg.Hindi, PatientName: "Asha"}
	first := c.Classify(u)
	second := c.Classify(u)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
}
