package core

import (
	"context"
	"errors"
	"log"
	"strings"

	"medfollow/internal/llm"
	"medfollow/pkg"
)

// Reply is the text produced by a Replier and where it came from.
type Reply struct {
	Text   string
	Source string
}

// Replier produces the message text for a patient utterance.  Implementations
// may fail; wrap them with WithFallback to get one that does not.
type Replier interface {
	Reply(ctx context.Context, u pkg.Utterance, pc pkg.PatientContext) (Reply, error)
}

// KeywordReplier answers from the keyword classifier.  It never fails.
type KeywordReplier struct {
	Classifier *Classifier
}

func (k KeywordReplier) Reply(_ context.Context, u pkg.Utterance, _ pkg.PatientContext) (Reply, error) {
	return Reply{Text: k.Classifier.Classify(u).Message, Source: pkg.SourceKeywords}, nil
}

// LLMReplier asks the remote backend, sending the system prompt with the
// patient context.
type LLMReplier struct {
	LLM llm.Client
}

func (l LLMReplier) Reply(ctx context.Context, u pkg.Utterance, pc pkg.PatientContext) (Reply, error) {
	if l.LLM == nil {
		return Reply{}, llm.ErrNotConfigured
	}
	text, err := llm.Complete(ctx, l.LLM, BuildSystemPrompt(pc), u.Text)
	if err != nil {
		return Reply{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Reply{}, llm.ErrEmptyResponse
	}
	return Reply{Text: text, Source: pkg.SourceLLM}, nil
}

// FallbackReplier tries Primary and, on any error, answers with Secondary.
// OnFallback, when set, observes the primary failure.
type FallbackReplier struct {
	Primary    Replier
	Secondary  Replier
	OnFallback func(error)
}

// WithFallback composes primary and fallback.  The fallback must be a
// replier that does not fail, such as KeywordReplier.
func WithFallback(primary, fallback Replier) *FallbackReplier {
	return &FallbackReplier{Primary: primary, Secondary: fallback}
}

func (f *FallbackReplier) Reply(ctx context.Context, u pkg.Utterance, pc pkg.PatientContext) (Reply, error) {
	if f.Primary != nil {
		r, err := f.Primary.Reply(ctx, u, pc)
		if err == nil {
			return r, nil
		}
		if f.OnFallback != nil {
			f.OnFallback(err)
		}
	}
	return f.Secondary.Reply(ctx, u, pc)
}

// GuidanceService answers patient messages.  The category and severity
// always come from the keyword classifier so the verdict does not depend on
// which backend wrote the text; the text itself comes from Replier.
type GuidanceService struct {
	Classifier *Classifier
	Replier    Replier
}

// NewGuidanceService wires the remote backend in front of the keyword path.
// A nil client leaves the keyword path as the only source.
func NewGuidanceService(classifier *Classifier, client llm.Client) *GuidanceService {
	keywords := KeywordReplier{Classifier: classifier}
	if client == nil {
		return &GuidanceService{Classifier: classifier, Replier: keywords}
	}
	fb := WithFallback(LLMReplier{LLM: client}, keywords)
	fb.OnFallback = func(err error) {
		if !errors.Is(err, llm.ErrNotConfigured) {
			log.Println("guidance backend failed, using keywords:", err)
		}
	}
	return &GuidanceService{Classifier: classifier, Replier: fb}
}

// Guide classifies the utterance and fills in the reply text.  It does not
// return an error: a failing Replier leaves the keyword message in place.
func (s *GuidanceService) Guide(ctx context.Context, u pkg.Utterance, pc pkg.PatientContext) pkg.GuidanceResult {
	if u.PatientName == "" {
		u.PatientName = pc.Name
	}
	if pc.Language == "" {
		pc.Language = u.Language
	}
	result := s.Classifier.Classify(u)
	if s.Replier == nil {
		return result
	}
	r, err := s.Replier.Reply(ctx, u, pc)
	if err != nil || strings.TrimSpace(r.Text) == "" {
		if err != nil {
			log.Println("failed to build reply:", err)
		}
		return result
	}
	if r.Source == pkg.SourceKeywords {
		return result
	}
	text := r.Text
	if marker := Marker(s.Classifier.Phrases, u.Language, result.Severity); marker != "" {
		text = marker + " " + text
	}
	result.Message = text
	result.Source = r.Source
	return result
}
