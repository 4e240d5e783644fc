package calllog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medfollow/pkg"
)

// TimeLayout is the timestamp layout used inside log lines.
const TimeLayout = "2006-01-02 15:04:05"

// Sink accepts log records.  Appends are never retried by callers: a failed
// append fails the operation that produced the record.
type Sink interface {
	Append(ctx context.Context, rec pkg.LogRecord) error
}

// Reader returns the log lines written so far.
type Reader interface {
	Lines(ctx context.Context) ([]string, error)
}

// NewAppointmentRecord builds an appointment record stamped with now.
func NewAppointmentRecord(patient string, lang pkg.Language, appt pkg.Appointment, now time.Time) pkg.LogRecord {
	return pkg.LogRecord{
		ID:          uuid.New(),
		Timestamp:   now,
		Kind:        pkg.KindAppointment,
		PatientName: patient,
		Language:    lang,
		Appointment: &appt,
	}
}

// NewCallRecord builds a call-outcome record stamped with now.
func NewCallRecord(patient string, lang pkg.Language, outcome pkg.CallOutcome, now time.Time) pkg.LogRecord {
	return pkg.LogRecord{
		ID:          uuid.New(),
		Timestamp:   now,
		Kind:        pkg.KindCallOutcome,
		PatientName: patient,
		Language:    lang,
		Call:        &outcome,
	}
}

// Format renders rec as a single log line without the trailing newline.
func Format(rec pkg.LogRecord) (string, error) {
	ts := "[" + rec.Timestamp.Format(TimeLayout) + "] "
	switch rec.Kind {
	case pkg.KindAppointment:
		if rec.Appointment == nil {
			return "", errors.New("calllog: appointment record without details")
		}
		a := rec.Appointment
		line := fmt.Sprintf("%sAPPOINTMENT | Patient: %s | Doctor: %s | Date: %s | Time: %s | Lang: %s",
			ts, clean(rec.PatientName), clean(a.Doctor), clean(a.Date), clean(a.Time), rec.Language)
		if a.Reason != "" {
			line += " | Reason: " + clean(a.Reason)
		}
		return line, nil
	case pkg.KindCallOutcome:
		if rec.Call == nil {
			return "", errors.New("calllog: call record without outcome")
		}
		c := rec.Call
		return fmt.Sprintf("%sPatient: %s | Language: %s | Option: %s | Outcome: %s | Severity: %s",
			ts, clean(rec.PatientName), rec.Language, clean(c.Choice), clean(c.Description), c.Severity), nil
	default:
		return "", fmt.Errorf("calllog: unknown record kind %q", rec.Kind)
	}
}

// clean keeps every record on one line and keeps field separators out of
// values.
func clean(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ", "|", "/").Replace(s)
}

// Parse reads a line written by Format.  Call lines written before the
// severity field existed are accepted; their severity is left empty.  The
// record ID is not part of the line and stays zero.
func Parse(line string) (pkg.LogRecord, error) {
	var rec pkg.LogRecord
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return rec, errors.New("calllog: missing timestamp")
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return rec, errors.New("calllog: unterminated timestamp")
	}
	ts, err := time.ParseInLocation(TimeLayout, line[1:end], time.Local)
	if err != nil {
		return rec, fmt.Errorf("calllog: bad timestamp: %w", err)
	}
	rec.Timestamp = ts

	parts := strings.Split(line[end+2:], " | ")
	fields := make(map[string]string, len(parts))
	appointment := false
	for _, p := range parts {
		if p == "APPOINTMENT" {
			appointment = true
			continue
		}
		k, v, ok := strings.Cut(p, ": ")
		if !ok {
			return rec, fmt.Errorf("calllog: malformed field %q", p)
		}
		fields[k] = v
	}

	rec.PatientName = fields["Patient"]
	if appointment {
		rec.Kind = pkg.KindAppointment
		rec.Language = pkg.Language(fields["Lang"])
		rec.Appointment = &pkg.Appointment{
			Doctor: fields["Doctor"],
			Date:   fields["Date"],
			Time:   fields["Time"],
			Reason: fields["Reason"],
		}
		return rec, nil
	}
	option, ok := fields["Option"]
	if !ok {
		return rec, errors.New("calllog: line is neither appointment nor call")
	}
	sev := pkg.Severity(fields["Severity"])
	rec.Kind = pkg.KindCallOutcome
	rec.Language = pkg.Language(fields["Language"])
	rec.Call = &pkg.CallOutcome{
		Choice:      option,
		Description: fields["Outcome"],
		Severity:    sev,
		Alert:       sev == pkg.SeverityHigh,
	}
	return rec, nil
}

// FileSink appends records to a flat text file, one line per record.  A
// mutex serialises writers inside the process and O_APPEND keeps whole-line
// writes from separate processes from interleaving.
type FileSink struct {
	Path string
	mu   sync.Mutex
}

// NewFileSink returns a FileSink writing to path.  The file is created on
// first append.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Append(ctx context.Context, rec pkg.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := Format(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("write log: %w", err)
	}
	return f.Close()
}

// Lines returns the non-empty lines written so far.  A missing file is an
// empty log.
func (s *FileSink) Lines(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries := []string{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			entries = append(entries, line)
		}
	}
	return entries, scanner.Err()
}
