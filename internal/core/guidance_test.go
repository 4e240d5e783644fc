package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"medfollow/internal/llm"
	"medfollow/pkg"
)

type fakeLLM struct {
	reply    string
	err      error
	calls    int
	messages []llm.Message
}

func (f *fakeLLM) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

func TestGuideUsesBackendWhenAvailable(t *testing.T) {
	backend := &fakeLLM{reply: "Please rest and drink fluids."}
	svc := NewGuidanceService(NewClassifier(phrases), backend)

	got := svc.Guide(context.Background(),
		pkg.Utterance{Text: "I have a fever", Language: pkg.English},
		pkg.PatientContext{Name: "Priya", ProcedureType: "Appendectomy"})

	if got.Source != pkg.SourceLLM {
		t.Fatalf("expected llm source, got %s", got.Source)
	}
	if got.Category != pkg.CategoryFever || got.Severity != pkg.SeverityModerate {
		t.Fatalf("classification must come from keywords, got %s/%s", got.Category, got.Severity)
	}
	if !strings.HasSuffix(got.Message, backend.reply) || !strings.HasPrefix(got.Message, phrases.Get(pkg.English, "marker.moderate")) {
		t.Fatalf("unexpected message %q", got.Message)
	}
	system := backend.messages[0].Content
	for _, want := range []string{"Patient name: Priya", "Surgery/procedure: Appendectomy", "Preferred language: English"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if backend.messages[1].Content != "I have a fever" {
		t.Errorf("unexpected user message %q", backend.messages[1].Content)
	}
}

func TestGuideFallsBackTransparently(t *testing.T) {
	c := NewClassifier(phrases)
	u := pkg.Utterance{Text: "I have a fever", Language: pkg.English}
	want := c.Classify(u)

	for name, backend := range map[string]*fakeLLM{
		"error":        {err: errors.New("quota exceeded")},
		"empty":        {reply: "   "},
		"unconfigured": {err: llm.ErrNotConfigured},
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewGuidanceService(c, backend)
			got := svc.Guide(context.Background(), u, pkg.PatientContext{})
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("fallback result differs from keyword path:\n%+v\n%+v", got, want)
			}
			if backend.calls != 1 {
				t.Fatalf("expected one backend call, got %d", backend.calls)
			}
		})
	}
}

func TestGuideWithoutBackend(t *testing.T) {
	svc := NewGuidanceService(NewClassifier(phrases), nil)
	got := svc.Guide(context.Background(), pkg.Utterance{Text: "thanks"}, pkg.PatientContext{Name: "Ravi"})
	if got.Category != pkg.CategoryThanks || got.Source != pkg.SourceKeywords {
		t.Fatalf("unexpected result %+v", got)
	}
	if !strings.Contains(got.Message, "welcome, Ravi") {
		t.Fatalf("patient context name should personalise keyword reply, got %q", got.Message)
	}
}

func TestWithFallbackObservesPrimaryFailure(t *testing.T) {
	var observed error
	fb := WithFallback(LLMReplier{LLM: &fakeLLM{err: errors.New("boom")}}, KeywordReplier{Classifier: NewClassifier(phrases)})
	fb.OnFallback = func(err error) { observed = err }

	r, err := fb.Reply(context.Background(), pkg.Utterance{Text: "help"}, pkg.PatientContext{})
	if err != nil {
		t.Fatalf("fallback must not fail: %v", err)
	}
	if r.Source != pkg.SourceKeywords || observed == nil {
		t.Fatalf("expected keyword reply and observed failure, got %+v / %v", r, observed)
	}
}

func TestBuildSystemPromptWithoutContext(t *testing.T) {
	if got := BuildSystemPrompt(pkg.PatientContext{}); got != SystemPrompt {
		t.Fatalf("expected bare system prompt")
	}
}
