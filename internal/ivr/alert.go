package ivr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"medfollow/internal/catalogue"
	"medfollow/pkg"
)

// Alerter raises a doctor alert.  Alerts travel on their own channel so an
// operator sees them without reading the call log.
type Alerter interface {
	Alert(ctx context.Context, a pkg.DoctorAlert) error
}

// ConsoleAlerter prints the alert banner to Out in the alert's language.
type ConsoleAlerter struct {
	Out     io.Writer
	Phrases *catalogue.Catalogue
	mu      sync.Mutex
}

func (c *ConsoleAlerter) Alert(_ context.Context, a pkg.DoctorAlert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	bar := strings.Repeat("!", 55)
	_, err := fmt.Fprintf(c.Out, "\n%s\n  🚨  %s  🚨\n  %s : %s\n  %s: %s\n%s\n",
		bar,
		c.Phrases.Get(a.Language, "ivr.alert"),
		c.Phrases.Get(a.Language, "ivr.banner_patient"), a.PatientName,
		c.Phrases.Get(a.Language, "ivr.banner_language"), a.Language,
		bar)
	return err
}

// MultiAlerter fans an alert out to every alerter and joins their errors.
type MultiAlerter []Alerter

func (m MultiAlerter) Alert(ctx context.Context, a pkg.DoctorAlert) error {
	var errs []error
	for _, al := range m {
		if al == nil {
			continue
		}
		if err := al.Alert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
