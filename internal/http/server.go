// Package http exposes guidance, vitals analysis, booking, call launching and
// doctor alerts over a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"medfollow/internal/catalogue"
	"medfollow/internal/core"
	"medfollow/internal/metrics"
	"medfollow/pkg"
)

// Guider produces guidance for a patient message.
type Guider interface {
	Guide(ctx context.Context, u pkg.Utterance, pc pkg.PatientContext) pkg.GuidanceResult
}

// LogStore is the call/appointment log as seen by the API.
type LogStore interface {
	Append(ctx context.Context, rec pkg.LogRecord) error
	Lines(ctx context.Context) ([]string, error)
}

// Launcher starts a follow-up call.
type Launcher interface {
	Launch(ctx context.Context, patient string, lang pkg.Language) error
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
// Launcher and Alerts may be nil; their routes then answer 503.
type Server struct {
	Guide    Guider
	Vitals   *core.Analyzer
	Log      LogStore
	Launcher Launcher
	Alerts   *AlertHub
	Phrases  *catalogue.Catalogue
	Now      func() time.Time

	router chi.Router
}

// NewServer constructs a Server and its routes.
func NewServer(guide Guider, vitals *core.Analyzer, store LogStore, launcher Launcher, alerts *AlertHub, phrases *catalogue.Catalogue) *Server {
	s := &Server{
		Guide:    guide,
		Vitals:   vitals,
		Log:      store,
		Launcher: launcher,
		Alerts:   alerts,
		Phrases:  phrases,
		Now:      time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Post("/postop-chat", s.handleChat)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/book-appointment", s.handleBookAppointment)
	r.Post("/customer-care-call", s.handleCustomerCareCall)
	r.Get("/log", s.handleLog)
	r.Get("/catalogue/{language}/options/{field}", s.handleOptions)
	r.Get("/alerts/stream", s.handleAlertStream)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
