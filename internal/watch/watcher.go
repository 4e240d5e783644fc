// Package watch follows the flat call log and turns newly appended alert
// lines into doctor alerts.
package watch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"medfollow/internal/calllog"
	"medfollow/pkg"
)

// LogWatcher tails a log file.  Lines already present when watching starts
// are skipped; a truncated or replaced file is read again from the start.
type LogWatcher struct {
	Path string

	offset  int64
	partial []byte
}

func NewLogWatcher(path string) *LogWatcher {
	return &LogWatcher{Path: path}
}

// Lines emits each complete line appended after the call.  The channel is
// closed when ctx ends.
func (w *LogWatcher) Lines(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// the directory is watched so the file may be created later
	if err := watcher.Add(filepath.Dir(w.Path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	w.offset, w.partial = 0, nil
	if info, err := os.Stat(w.Path); err == nil {
		w.offset = info.Size()
	}

	out := make(chan string)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != filepath.Clean(w.Path) {
					continue
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				lines, err := w.readNew()
				if err != nil {
					log.Printf("watcher read error: %v", err)
					continue
				}
				for _, l := range lines {
					select {
					case out <- l:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	return out, nil
}

// readNew returns the complete lines written since the last read.
func (w *LogWatcher) readNew() ([]string, error) {
	f, err := os.Open(w.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < w.offset {
		w.offset, w.partial = 0, nil
	}
	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	w.offset += int64(len(data))

	data = append(w.partial, data...)
	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimRight(data[:i], "\r"); len(line) > 0 {
			lines = append(lines, string(line))
		}
		data = data[i+1:]
	}
	w.partial = append([]byte(nil), data...)
	return lines, nil
}

// Alerts emits a DoctorAlert for every appended call line whose severity is
// high.  Lines that do not parse are skipped.
func (w *LogWatcher) Alerts(ctx context.Context) (<-chan pkg.DoctorAlert, error) {
	lines, err := w.Lines(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan pkg.DoctorAlert)
	go func() {
		defer close(out)
		for line := range lines {
			a, ok := AlertFromLine(line)
			if !ok {
				continue
			}
			select {
			case out <- a:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// AlertFromLine reports whether line records an alerting call outcome.
func AlertFromLine(line string) (pkg.DoctorAlert, bool) {
	rec, err := calllog.Parse(line)
	if err != nil || rec.Call == nil || !rec.Call.Alert {
		return pkg.DoctorAlert{}, false
	}
	return pkg.DoctorAlert{
		ID:          uuid.New(),
		PatientName: rec.PatientName,
		Language:    rec.Language,
		Outcome:     rec.Call.Description,
		RaisedAt:    rec.Timestamp,
	}, true
}
