package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medfollow/internal/catalogue"
	"medfollow/internal/config"
	"medfollow/internal/core"
	httpserver "medfollow/internal/http"
	"medfollow/internal/launch"
	"medfollow/internal/llm"
	"medfollow/internal/logstore"
)

func main() {
	log.SetPrefix("[server] ")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	phrases := catalogue.MustLoad()
	if cfg.PhrasesFile != "" {
		if phrases, err = catalogue.LoadFile(cfg.PhrasesFile); err != nil {
			log.Fatalf("failed to load phrases: %v", err)
		}
	}

	store, err := logstore.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s log: %v", cfg.LogBackend, err)
	}
	defer store.Close()

	// Keywords answer on their own until an API key is configured.
	var client llm.Client
	if cfg.OpenAI.APIKey != "" {
		client = llm.NewOpenAIClient(llm.Options{
			APIKey:        cfg.OpenAI.APIKey,
			BaseURL:       cfg.OpenAI.BaseURL,
			Model:         cfg.OpenAI.Model,
			MaxTokens:     cfg.OpenAI.MaxTokens,
			Temperature:   cfg.OpenAI.Temperature,
			Timeout:       cfg.OpenAI.Timeout,
			RatePerMinute: cfg.OpenAI.RatePerMin,
		})
		log.Printf("guidance backend: %s", cfg.OpenAI.Model)
	} else {
		log.Println("OPENAI_API_KEY not set, answering from keywords only")
	}
	guidance := core.NewGuidanceService(core.NewClassifier(phrases), client)

	var launcher httpserver.Launcher
	if l, err := launch.New(cfg.IVR.Command, cfg.IVR.TerminalCommands); err != nil {
		log.Printf("call launching disabled: %v", err)
	} else {
		launcher = l
	}

	hub := httpserver.NewAlertHub()
	if alerts, err := store.Alerts(ctx); err != nil {
		log.Printf("doctor alert stream has no feed: %v", err)
	} else {
		go hub.Run(ctx, alerts)
	}

	srv := httpserver.NewServer(guidance, core.NewAnalyzer(phrases), store, launcher, hub, phrases)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Println("failed to shut down cleanly:", err)
		}
	}()

	log.Printf("Listening on %s (log backend: %s)", httpSrv.Addr, store.Backend)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
