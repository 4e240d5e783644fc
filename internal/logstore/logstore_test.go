package logstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"medfollow/internal/calllog"
	"medfollow/internal/config"
	"medfollow/pkg"
)

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend   string
		wantWatch bool
	}{
		{config.BackendFile, true},
		{config.BackendSQLite, false},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			cfg := config.Config{
				LogBackend: tc.backend,
				LogFile:    filepath.Join(dir, tc.backend+".txt"),
				SQLitePath: filepath.Join(dir, tc.backend+".db"),
			}
			ctx := context.Background()
			store, err := Open(ctx, cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer store.Close()
			if (store.WatchPath != "") != tc.wantWatch || store.Notifier != nil {
				t.Fatalf("unexpected store %+v", store)
			}
			rec := calllog.NewCallRecord("Asha", pkg.Hindi, pkg.CallOutcome{Choice: "2", Description: "mild", Severity: pkg.SeverityModerate}, time.Now())
			if err := store.Append(ctx, rec); err != nil {
				t.Fatalf("append: %v", err)
			}
			lines, err := store.Lines(ctx)
			if err != nil || len(lines) != 1 {
				t.Fatalf("lines %q, %v", lines, err)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), config.Config{LogBackend: "mongo"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAlertsRequireFeed(t *testing.T) {
	cfg := config.Config{LogBackend: config.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "a.db")}
	store, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.Alerts(context.Background()); !errors.Is(err, ErrNoAlertSource) {
		t.Fatalf("expected ErrNoAlertSource, got %v", err)
	}
}

func TestSummaryCountsCallOutcomes(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Config{
				LogBackend: backend,
				LogFile:    filepath.Join(dir, "summary.txt"),
				SQLitePath: filepath.Join(dir, "summary.db"),
			}
			ctx := context.Background()
			store, err := Open(ctx, cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer store.Close()
			now := time.Now()
			recs := []pkg.LogRecord{
				calllog.NewCallRecord("A", pkg.English, pkg.CallOutcome{Choice: "3", Description: "worse", Severity: pkg.SeverityHigh, Alert: true}, now),
				calllog.NewCallRecord("B | Jr", pkg.Hindi, pkg.CallOutcome{Choice: "3", Description: "worse", Severity: pkg.SeverityHigh, Alert: true}, now),
				calllog.NewCallRecord("C", pkg.Telugu, pkg.CallOutcome{Choice: "1", Description: "fine", Severity: pkg.SeverityNormal}, now),
				calllog.NewAppointmentRecord("D", pkg.English, pkg.Appointment{Doctor: "X", Date: "d", Time: "t"}, now),
			}
			for _, rec := range recs {
				if err := store.Append(ctx, rec); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			counts, err := store.Summary(ctx)
			if err != nil {
				t.Fatalf("summary: %v", err)
			}
			if counts[pkg.SeverityHigh] != 2 || counts[pkg.SeverityNormal] != 1 || counts[pkg.SeverityModerate] != 0 || len(counts) != 2 {
				t.Fatalf("unexpected counts %v", counts)
			}
		})
	}
}
