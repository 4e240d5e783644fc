package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"medfollow/internal/calllog"
	"medfollow/pkg"
)

func TestAlertsFollowNewHighSeverityLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.txt")
	sink := calllog.NewFileSink(path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	old := calllog.NewCallRecord("Earlier", pkg.English, pkg.CallOutcome{Choice: "3", Description: "worsened", Severity: pkg.SeverityHigh, Alert: true}, time.Now())
	if err := sink.Append(ctx, old); err != nil {
		t.Fatal(err)
	}

	alerts, err := NewLogWatcher(path).Alerts(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	fine := calllog.NewCallRecord("Fine", pkg.English, pkg.CallOutcome{Choice: "1", Description: "fine", Severity: pkg.SeverityNormal}, time.Now())
	worse := calllog.NewCallRecord("Asha", pkg.Hindi, pkg.CallOutcome{Choice: "3", Description: "worsened", Severity: pkg.SeverityHigh, Alert: true}, time.Now())
	for _, rec := range []pkg.LogRecord{fine, worse} {
		if err := sink.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case a := <-alerts:
		if a.PatientName != "Asha" || a.Language != pkg.Hindi || a.Outcome != "worsened" {
			t.Fatalf("unexpected alert %+v", a)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no alert received")
	}
}

func TestReadNewBuffersPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	w := NewLogWatcher(path)
	if lines, err := w.readNew(); err != nil || len(lines) != 0 {
		t.Fatalf("missing file: %v %v", lines, err)
	}

	write := func(s string) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if _, err := f.WriteString(s); err != nil {
			t.Fatal(err)
		}
	}

	write("first\nsec")
	lines, _ := w.readNew()
	if len(lines) != 1 || lines[0] != "first" {
		t.Fatalf("got %q", lines)
	}
	write("ond\n\nthird\n")
	lines, _ = w.readNew()
	if len(lines) != 2 || lines[0] != "second" || lines[1] != "third" {
		t.Fatalf("got %q", lines)
	}

	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, _ = w.readNew()
	if len(lines) != 1 || lines[0] != "new" {
		t.Fatalf("truncated file not reread: %q", lines)
	}
}

func TestAlertFromLine(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)
	tests := []struct {
		line string
		want bool
	}{
		{"[2026-03-14 09:30:00] Patient: A | Language: English | Option: 3 | Outcome: x | Severity: high", true},
		{"[2026-03-14 09:30:00] Patient: A | Language: English | Option: 2 | Outcome: x | Severity: moderate", false},
		{"[2026-03-14 09:30:00] APPOINTMENT | Patient: A | Doctor: D | Date: d | Time: t | Lang: English", false},
		{"garbage", false},
	}
	for _, tc := range tests {
		a, ok := AlertFromLine(tc.line)
		if ok != tc.want {
			t.Errorf("%q: got %v", tc.line, ok)
		}
		if ok && !a.RaisedAt.Equal(ts) {
			t.Errorf("raised at %v", a.RaisedAt)
		}
	}
}

func TestAlertFromLineWithSeparatorInName(t *testing.T) {
	for _, name := range []string{"Ravi Kumar", "Ravi | Jr", "Ravi|Jr"} {
		rec := calllog.NewCallRecord(name, pkg.English, pkg.CallOutcome{
			Choice:      "3",
			Description: "worsened",
			Severity:    pkg.SeverityHigh,
			Alert:       true,
		}, time.Now())
		line, err := calllog.Format(rec)
		if err != nil {
			t.Fatalf("%q: format failed: %v", name, err)
		}
		a, ok := AlertFromLine(line)
		if !ok {
			t.Fatalf("%q: alert lost for line %q", name, line)
		}
		if !strings.HasPrefix(a.PatientName, "Ravi") {
			t.Errorf("%q: unexpected patient %q", name, a.PatientName)
		}
	}
}
