package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"medfollow/pkg"
)

// Notifier carries doctor alerts over postgres LISTEN/NOTIFY.  The IVR
// binary publishes with Alert; the server and operator console subscribe
// with Listen.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
}

// NewNotifier constructs a Notifier.  The channel should match the
// NOTIFY_CHANNEL environment variable.
func NewNotifier(db *sql.DB, dsn, channel string) *Notifier {
	return &Notifier{DB: db, DSN: dsn, Channel: channel}
}

// Alert publishes a as a JSON payload on the notifier's channel.
func (n *Notifier) Alert(ctx context.Context, a pkg.DoctorAlert) error {
	payload, err := encodeAlert(a)
	if err != nil {
		return err
	}
	if _, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", n.Channel, err)
	}
	return nil
}

// Listen subscribes to the channel on a dedicated connection and yields
// decoded alerts until ctx is cancelled, at which point the returned channel
// is closed.  Malformed payloads are logged and skipped.
func (n *Notifier) Listen(ctx context.Context) (<-chan pkg.DoctorAlert, error) {
	listener := pq.NewListener(n.DSN, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Println("alert listener event:", err)
		}
	})
	if err := listener.Listen(n.Channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", pq.QuoteIdentifier(n.Channel), err)
	}
	ch := make(chan pkg.DoctorAlert)
	go func() {
		defer func() {
			_ = listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-listener.Notify:
				// nil after a reconnect
				if msg == nil {
					continue
				}
				a, err := decodeAlert(msg.Extra)
				if err != nil {
					log.Println("dropping malformed alert payload:", err)
					continue
				}
				select {
				case ch <- a:
				case <-ctx.Done():
					return
				}
			case <-time.After(90 * time.Second):
				if err := listener.Ping(); err != nil {
					log.Println("alert listener ping failed:", err)
				}
			}
		}
	}()
	return ch, nil
}

func encodeAlert(a pkg.DoctorAlert) (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode alert: %w", err)
	}
	return string(b), nil
}

func decodeAlert(payload string) (pkg.DoctorAlert, error) {
	var a pkg.DoctorAlert
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return pkg.DoctorAlert{}, fmt.Errorf("decode alert: %w", err)
	}
	if a.PatientName == "" {
		return pkg.DoctorAlert{}, fmt.Errorf("decode alert: missing patient name")
	}
	return a, nil
}
