// Command ivr runs one scripted follow-up call on the terminal:
//
//	ivr [patient name] [language]
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"medfollow/internal/catalogue"
	"medfollow/internal/config"
	"medfollow/internal/ivr"
	"medfollow/internal/logstore"
	"medfollow/pkg"
)

func main() {
	log.SetPrefix("[ivr] ")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	patient := pkg.DefaultPatientName
	if len(os.Args) > 1 {
		patient = os.Args[1]
	}
	lang := pkg.DefaultLanguage
	if len(os.Args) > 2 {
		lang = pkg.ParseLanguage(os.Args[2])
	}

	phrases := catalogue.MustLoad()
	if cfg.PhrasesFile != "" {
		if phrases, err = catalogue.LoadFile(cfg.PhrasesFile); err != nil {
			log.Fatalf("failed to load phrases: %v", err)
		}
	}
	lang = phrases.Resolve(lang)

	store, err := logstore.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s log: %v", cfg.LogBackend, err)
	}
	defer store.Close()

	voiceName := phrases.Get(lang, "ivr.voice")
	var voices ivr.FallbackEmitter
	for _, tmpl := range []string{cfg.IVR.TTSCommand, cfg.IVR.TTSFallbackCommand} {
		e, err := ivr.NewCommandEmitter(tmpl, voiceName, lang.Code())
		if err != nil {
			log.Printf("ignoring voice command %q: %v", tmpl, err)
			continue
		}
		voices = append(voices, e)
	}

	alerters := ivr.MultiAlerter{&ivr.ConsoleAlerter{Out: os.Stdout, Phrases: phrases}}
	if store.Notifier != nil {
		alerters = append(alerters, store.Notifier)
	}

	sessionCfg := ivr.Config{
		Phrases:       phrases,
		Voice:         voices,
		Alerter:       alerters,
		Sink:          store,
		In:            os.Stdin,
		Out:           os.Stdout,
		ChoiceTimeout: cfg.IVR.ChoiceTimeout,
		VoiceName:     voiceName,
	}
	if cfg.IVR.RingtoneCommand != "" {
		ringer, err := ivr.NewCommandRinger(cfg.IVR.RingtoneCommand)
		if err != nil {
			log.Printf("ringtone disabled: %v", err)
		} else {
			sessionCfg.Ringer = ringer
		}
	}

	session := ivr.NewSession(patient, lang, sessionCfg)
	if _, err := session.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("call abandoned")
			return
		}
		log.Fatalf("call failed: %v", err)
	}
}
