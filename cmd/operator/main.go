// Command operator prints doctor alerts as follow-up calls raise them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"medfollow/internal/config"
	"medfollow/internal/logstore"
	"medfollow/internal/watch"
	"medfollow/pkg"
)

func main() {
	log.SetPrefix("[operator] ")
	history := flag.Int("history", 10, "number of earlier alerts to show on start")
	summary := flag.Bool("summary", false, "print call outcome counts per severity and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := logstore.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s log: %v", cfg.LogBackend, err)
	}
	defer store.Close()

	if *summary {
		counts, err := store.Summary(ctx)
		if err != nil {
			log.Fatalf("failed to count call outcomes: %v", err)
		}
		printSummary(os.Stdout, counts)
		return
	}

	if *history > 0 {
		lines, err := store.Lines(ctx)
		if err != nil {
			log.Printf("failed to read earlier alerts: %v", err)
		}
		for _, a := range recentAlerts(lines, *history) {
			printAlert(os.Stdout, a, time.Now())
		}
	}

	alerts, err := store.Alerts(ctx)
	if err != nil {
		log.Fatalf("cannot follow alerts: %v", err)
	}
	log.Printf("waiting for doctor alerts (%s backend)", store.Backend)
	for a := range alerts {
		printAlert(os.Stdout, a, time.Now())
	}
}

// recentAlerts returns the last n alerts found in lines, oldest first.
func recentAlerts(lines []string, n int) []pkg.DoctorAlert {
	var out []pkg.DoctorAlert
	for _, l := range lines {
		if a, ok := watch.AlertFromLine(l); ok {
			out = append(out, a)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// printSummary writes one line per severity, highest first.  Outcomes
// logged before severity was recorded are shown as "unknown".
func printSummary(w io.Writer, counts map[pkg.Severity]int) {
	for _, sev := range []pkg.Severity{pkg.SeverityHigh, pkg.SeverityModerate, pkg.SeverityNormal} {
		fmt.Fprintf(w, "%-9s %s\n", sev, humanize.Comma(int64(counts[sev])))
	}
	if n := counts[""]; n > 0 {
		fmt.Fprintf(w, "%-9s %s\n", "unknown", humanize.Comma(int64(n)))
	}
}

func printAlert(w io.Writer, a pkg.DoctorAlert, now time.Time) {
	fmt.Fprintf(w, "🚨 %-20s %-8s %s (%s)\n",
		a.PatientName, a.Language, a.Outcome, humanize.RelTime(a.RaisedAt, now, "ago", "from now"))
}
