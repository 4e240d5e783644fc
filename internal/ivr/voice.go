package ivr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ErrNoVoice is returned by emitters that have nothing configured.
var ErrNoVoice = errors.New("ivr: no voice backend configured")

// Emitter renders one prompt on an output channel.  A failing emitter never
// stops a call; the session falls back to the printed text.
type Emitter interface {
	Emit(ctx context.Context, text string) error
}

// CommandEmitter speaks text by running an external text-to-speech command.
// The template is split like a shell command line and {text}, {voice} and
// {lang} are substituted per argument, so spoken text is never re-parsed
// by a shell.
type CommandEmitter struct {
	argv []string
	vars map[string]string
}

// NewCommandEmitter parses template.  An empty template yields an emitter
// that always fails with ErrNoVoice.
func NewCommandEmitter(template, voice, lang string) (*CommandEmitter, error) {
	argv, err := shellquote.Split(template)
	if err != nil {
		return nil, fmt.Errorf("parse voice command: %w", err)
	}
	return &CommandEmitter{argv: argv, vars: map[string]string{"voice": voice, "lang": lang}}, nil
}

func (c *CommandEmitter) Emit(ctx context.Context, text string) error {
	if len(c.argv) == 0 {
		return ErrNoVoice
	}
	args := make([]string, len(c.argv))
	for i, a := range c.argv {
		a = strings.ReplaceAll(a, "{voice}", c.vars["voice"])
		a = strings.ReplaceAll(a, "{lang}", c.vars["lang"])
		args[i] = strings.ReplaceAll(a, "{text}", text)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

// FallbackEmitter tries each emitter in order and succeeds with the first
// that does.
type FallbackEmitter []Emitter

func (f FallbackEmitter) Emit(ctx context.Context, text string) error {
	errs := make([]error, 0, len(f))
	for _, e := range f {
		if e == nil {
			continue
		}
		err := e.Emit(ctx, text)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrNoVoice
	}
	return errors.Join(errs...)
}

// Ringer plays the ring indicator before the greeting.
type Ringer interface {
	Ring(ctx context.Context) error
}

// CommandRinger runs an audio player command, for example
// "mpg123 -q ringtone.mp3".
type CommandRinger struct {
	argv []string
}

// NewCommandRinger parses template the same way as NewCommandEmitter.
func NewCommandRinger(template string) (*CommandRinger, error) {
	argv, err := shellquote.Split(template)
	if err != nil {
		return nil, fmt.Errorf("parse ringtone command: %w", err)
	}
	return &CommandRinger{argv: argv}, nil
}

func (r *CommandRinger) Ring(ctx context.Context) error {
	if len(r.argv) == 0 {
		return ErrNoVoice
	}
	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}
