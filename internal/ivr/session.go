package ivr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"medfollow/internal/calllog"
	"medfollow/internal/catalogue"
	"medfollow/pkg"
)

// Stage is a step of the follow-up call.
type Stage int

const (
	StageRinging Stage = iota
	StageGreeting
	StageMenuPrompt
	StageAwaitingChoice
	StageResponding
	StageClosing
	StageCompleted
)

var stageNames = [...]string{"ringing", "greeting", "menu_prompt", "awaiting_choice", "responding", "closing", "completed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

var (
	// ErrInvalidTransition is returned when a session is asked to move to a
	// stage other than the next one, for example when Run is called twice.
	ErrInvalidTransition = errors.New("ivr: invalid stage transition")
	// ErrLogAppend wraps a failure to record the call outcome.  It is the
	// only error that fails a call that reached the end of its script.
	ErrLogAppend = errors.New("ivr: failed to log call outcome")
)

// Valid choice tokens.
const (
	ChoiceFine     = "1"
	ChoiceMild     = "2"
	ChoiceWorsened = "3"
)

// Config holds the collaborators of a session.  Voice, Ringer and Alerter
// may be nil.
type Config struct {
	Phrases *catalogue.Catalogue
	Voice   Emitter
	Ringer  Ringer
	Alerter Alerter
	Sink    calllog.Sink
	In      io.Reader
	Out     io.Writer
	// ChoiceTimeout bounds the wait for the patient's key press.  Zero
	// waits until input arrives or the context ends.  A timeout counts as
	// an empty, invalid choice.
	ChoiceTimeout time.Duration
	// VoiceName is shown in the call header.
	VoiceName string
	Now       func() time.Time
}

// Session runs one scripted follow-up call from ringing to completion.  It is
// used once and discarded; nothing carries over between calls.
type Session struct {
	Patient  string
	Language pkg.Language

	cfg         Config
	stage       Stage
	history     []Stage
	choice      string
	outcome     pkg.CallOutcome
	voiceFailed bool
}

// NewSession prepares a call for patient in lang.  An empty name becomes
// "Patient" and an unknown language resolves to the catalogue default.
func NewSession(patient string, lang pkg.Language, cfg Config) *Session {
	if strings.TrimSpace(patient) == "" {
		patient = pkg.DefaultPatientName
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.In == nil {
		cfg.In = strings.NewReader("")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		Patient:  patient,
		Language: cfg.Phrases.Resolve(lang),
		cfg:      cfg,
		stage:    StageRinging,
		history:  []Stage{StageRinging},
	}
}

// Stage returns the current stage.
func (s *Session) Stage() Stage { return s.stage }

// History returns every stage the session has entered, in order.
func (s *Session) History() []Stage {
	out := make([]Stage, len(s.history))
	copy(out, s.history)
	return out
}

// Choice returns the raw token captured at the menu.
func (s *Session) Choice() string { return s.choice }

func (s *Session) advance(to Stage) error {
	if to != s.stage+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.stage, to)
	}
	s.stage = to
	s.history = append(s.history, to)
	return nil
}

// Run plays the whole script synchronously and returns the outcome.  Voice,
// ringtone and alert failures are logged and the call continues; a failed
// log append returns the outcome together with an error wrapping
// ErrLogAppend.  If ctx ends while waiting for input the call is abandoned
// without a log record.
func (s *Session) Run(ctx context.Context) (pkg.CallOutcome, error) {
	if s.stage != StageRinging {
		return pkg.CallOutcome{}, fmt.Errorf("%w: session already at %s", ErrInvalidTransition, s.stage)
	}
	s.printHeader()
	s.printf("\n📞 Initiating call…\n")
	if s.cfg.Ringer != nil {
		if err := s.cfg.Ringer.Ring(ctx); err != nil {
			log.Println("ringtone unavailable, skipping:", err)
		}
	}

	if err := s.advance(StageGreeting); err != nil {
		return pkg.CallOutcome{}, err
	}
	s.say(ctx, s.render("ivr.greeting"))
	s.say(ctx, s.render("ivr.listen"))

	if err := s.advance(StageMenuPrompt); err != nil {
		return pkg.CallOutcome{}, err
	}
	for _, key := range []string{"ivr.opt1", "ivr.opt2", "ivr.opt3"} {
		s.say(ctx, s.render(key))
	}

	if err := s.advance(StageAwaitingChoice); err != nil {
		return pkg.CallOutcome{}, err
	}
	s.printMenu()
	choice, err := s.readChoice(ctx)
	if err != nil {
		return pkg.CallOutcome{}, err
	}
	s.choice = choice

	if err := s.advance(StageResponding); err != nil {
		return pkg.CallOutcome{}, err
	}
	var response string
	s.outcome, response = s.resolve(choice)
	s.say(ctx, response)
	if s.outcome.Alert {
		s.raiseAlert(ctx)
	}

	if err := s.advance(StageClosing); err != nil {
		return s.outcome, err
	}
	s.say(ctx, s.render("ivr.closing"))

	if err := s.advance(StageCompleted); err != nil {
		return s.outcome, err
	}
	rec := calllog.NewCallRecord(s.Patient, s.Language, s.outcome, s.cfg.Now())
	if err := s.cfg.Sink.Append(ctx, rec); err != nil {
		s.printf("\n❌ %s\n", err)
		return s.outcome, fmt.Errorf("%w: %v", ErrLogAppend, err)
	}
	s.printf("\n📝 Logged\n\n✅ %s\n\n", s.render("ivr.completed"))
	return s.outcome, nil
}

// resolve maps the captured token to an outcome and the response script.
// Severity is decided here and the alert wording follows from it.
func (s *Session) resolve(choice string) (pkg.CallOutcome, string) {
	switch choice {
	case ChoiceFine:
		return pkg.CallOutcome{
			Choice:      choice,
			Description: s.render("ivr.outcome_1"),
			Severity:    pkg.SeverityNormal,
		}, s.render("ivr.resp_1")
	case ChoiceMild:
		return pkg.CallOutcome{
			Choice:      choice,
			Description: s.render("ivr.outcome_2"),
			Severity:    pkg.SeverityModerate,
		}, s.render("ivr.resp_2")
	case ChoiceWorsened:
		o := pkg.CallOutcome{Choice: choice, Severity: pkg.SeverityHigh, Alert: true}
		o.Description = s.cfg.Phrases.Render(s.Language, "ivr.outcome_alert", map[string]string{
			"outcome": s.render("ivr.outcome_3"),
			"alert":   s.render("ivr.alert"),
		})
		return o, s.render("ivr.resp_3")
	default:
		return pkg.CallOutcome{
			Choice:      choice,
			Description: s.cfg.Phrases.Render(s.Language, "ivr.outcome_invalid", map[string]string{"choice": choice}),
			Severity:    pkg.SeverityNormal,
		}, s.render("ivr.resp_invalid")
	}
}

func (s *Session) raiseAlert(ctx context.Context) {
	if s.cfg.Alerter == nil {
		log.Printf("doctor alert for %s has no alerter configured", s.Patient)
		return
	}
	a := pkg.DoctorAlert{
		ID:          uuid.New(),
		PatientName: s.Patient,
		Language:    s.Language,
		Outcome:     s.outcome.Description,
		RaisedAt:    s.cfg.Now(),
	}
	if err := s.cfg.Alerter.Alert(ctx, a); err != nil {
		log.Println("failed to raise doctor alert:", err)
	}
}

type readResult struct {
	line string
	err  error
}

// readChoice reads a single line.  EOF and timeouts yield whatever was
// typed so far, which for an empty line is an invalid choice.
func (s *Session) readChoice(ctx context.Context) (string, error) {
	s.printf("  > ")
	ch := make(chan readResult, 1)
	go func() {
		line, err := bufio.NewReader(s.cfg.In).ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	var timeout <-chan time.Time
	if s.cfg.ChoiceTimeout > 0 {
		t := time.NewTimer(s.cfg.ChoiceTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			log.Println("failed to read choice:", r.err)
		}
		return strings.TrimSpace(r.line), nil
	case <-timeout:
		s.printf("\n")
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) render(key string) string {
	return s.cfg.Phrases.Render(s.Language, key, map[string]string{"name": s.Patient})
}

// say prints the prompt and then tries to speak it.  The printed line is the
// lower-fidelity channel and is always produced.
func (s *Session) say(ctx context.Context, text string) {
	s.printf("\n🔊 [%s] %s\n", s.Language, text)
	if s.cfg.Voice == nil || s.voiceFailed {
		return
	}
	if err := s.cfg.Voice.Emit(ctx, text); err != nil {
		// one failure is enough to stop retrying for the rest of this call
		s.voiceFailed = true
		log.Println("voice unavailable, continuing with text:", err)
	}
}

func (s *Session) printHeader() {
	bar := strings.Repeat("=", 60)
	s.printf("%s\n   🏥  %s\n   🌐  %s : %s\n", bar, s.render("ivr.header"), s.render("ivr.banner_language"), s.Language)
	if s.cfg.VoiceName != "" {
		s.printf("   🎙️  Voice    : %s\n", s.cfg.VoiceName)
	}
	s.printf("%s\n", bar)
}

func (s *Session) printMenu() {
	bar := strings.Repeat("-", 45)
	s.printf("\n%s\n  %s:\n  [%s]\n  [%s]\n  [%s]\n%s\n",
		bar, s.render("ivr.choice_prompt"),
		s.render("ivr.choice_1"), s.render("ivr.choice_2"), s.render("ivr.choice_3"),
		bar)
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cfg.Out, format, args...)
}
