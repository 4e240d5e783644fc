// Package launch starts follow-up calls in a terminal window so the patient
// side of the call gets its own console.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"medfollow/pkg"
)

// ErrNoLauncher is returned when no template and no direct command could be
// started.
var ErrNoLauncher = errors.New("launch: no way to start the call")

// StartFunc starts argv without waiting for it.  It exists so tests can
// replace process creation.
type StartFunc func(ctx context.Context, argv []string) error

// Launcher starts the IVR binary for one patient.  Terminal templates are
// tried in order; if none can be started the IVR command runs directly.
type Launcher struct {
	ivr       []string
	terminals [][]string
	start     StartFunc
}

// New parses the IVR command and terminal templates.  Templates may use
// {ivr} as a whole argument (replaced by the IVR command's arguments) and
// {patient} / {language} anywhere in an argument.
func New(ivrCommand string, terminalTemplates []string) (*Launcher, error) {
	ivr, err := shellquote.Split(ivrCommand)
	if err != nil {
		return nil, fmt.Errorf("parse IVR command: %w", err)
	}
	if len(ivr) == 0 {
		return nil, errors.New("launch: empty IVR command")
	}
	l := &Launcher{ivr: ivr, start: startDetached}
	for _, tmpl := range terminalTemplates {
		argv, err := shellquote.Split(tmpl)
		if err != nil {
			return nil, fmt.Errorf("parse terminal template %q: %w", tmpl, err)
		}
		if len(argv) > 0 {
			l.terminals = append(l.terminals, argv)
		}
	}
	return l, nil
}

// WithStart replaces process creation.
func (l *Launcher) WithStart(fn StartFunc) *Launcher {
	l.start = fn
	return l
}

// Launch starts a call for patient in lang and returns once a process is
// running.  It does not wait for the call to finish.
func (l *Launcher) Launch(ctx context.Context, patient string, lang pkg.Language) error {
	if strings.TrimSpace(patient) == "" {
		patient = pkg.DefaultPatientName
	}
	direct := append(append([]string(nil), l.ivr...), patient, string(lang))

	var errs []error
	for _, tmpl := range l.terminals {
		argv := l.expand(tmpl, patient, lang)
		err := l.start(ctx, argv)
		if err == nil {
			log.Printf("follow-up call for %s started via %s", patient, argv[0])
			return nil
		}
		errs = append(errs, err)
	}
	if err := l.start(ctx, direct); err != nil {
		errs = append(errs, err)
		return fmt.Errorf("%w: %w", ErrNoLauncher, errors.Join(errs...))
	}
	log.Printf("follow-up call for %s started without a terminal", patient)
	return nil
}

func (l *Launcher) expand(tmpl []string, patient string, lang pkg.Language) []string {
	r := strings.NewReplacer("{patient}", patient, "{language}", string(lang))
	out := make([]string, 0, len(tmpl)+len(l.ivr))
	for _, arg := range tmpl {
		if arg == "{ivr}" {
			out = append(out, l.ivr...)
			continue
		}
		out = append(out, r.Replace(arg))
	}
	return out
}

// startDetached starts argv and reaps it in the background.  The process is
// not tied to ctx: the call outlives the request that launched it.
func startDetached(_ context.Context, argv []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	cmd := exec.Command(path, argv[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("%s exited: %v", argv[0], err)
		}
	}()
	return nil
}
