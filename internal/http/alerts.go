package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"medfollow/internal/apperr"
	"medfollow/pkg"
)

const subscriberBuffer = 16

// AlertHub fans doctor alerts out to every connected stream.  A subscriber
// that falls behind loses alerts rather than blocking the others.
type AlertHub struct {
	mu   sync.Mutex
	subs map[chan pkg.DoctorAlert]struct{}
}

func NewAlertHub() *AlertHub {
	return &AlertHub{subs: make(map[chan pkg.DoctorAlert]struct{})}
}

// Run publishes everything received from src until src closes or ctx ends.
func (h *AlertHub) Run(ctx context.Context, src <-chan pkg.DoctorAlert) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-src:
			if !ok {
				return
			}
			h.Publish(a)
		}
	}
}

// Publish delivers a to every current subscriber.
func (h *AlertHub) Publish(a pkg.DoctorAlert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- a:
		default:
			log.Printf("alert stream subscriber is behind, dropping alert for %s", a.PatientName)
		}
	}
}

// Subscribe registers a new subscriber.  The returned func unsubscribes.
func (h *AlertHub) Subscribe() (<-chan pkg.DoctorAlert, func()) {
	ch := make(chan pkg.DoctorAlert, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// Subscribers returns the number of connected streams.
func (h *AlertHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleAlertStream streams doctor alerts using SSE until the client goes
// away.  A comment line is sent periodically so idle proxies keep the
// connection open.
func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, apperr.Unavailable("doctor alerts are not configured"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperr.Internal(fmt.Errorf("streaming unsupported")))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	alerts, unsubscribe := s.Alerts.Subscribe()
	defer unsubscribe()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case a := <-alerts:
			if err := sendAlertEvent(w, a); err != nil {
				log.Println("failed to send alert event:", err)
				return
			}
			flusher.Flush()
		}
	}
}

// sendAlertEvent writes a doctor_alert event with the alert as JSON data.
func sendAlertEvent(w http.ResponseWriter, a pkg.DoctorAlert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: doctor_alert\ndata: %s\n\n", data)
	return err
}
