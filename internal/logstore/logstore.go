// Package logstore opens the configured call/appointment log backend.
package logstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"medfollow/internal/calllog"
	"medfollow/internal/config"
	"medfollow/internal/db"
	"medfollow/internal/watch"
	"medfollow/pkg"
)

// Store is an opened log backend.  Notifier is set only for postgres;
// WatchPath only for the flat file.
type Store struct {
	Backend   string
	Notifier  *db.Notifier
	WatchPath string

	log interface {
		calllog.Sink
		calllog.Reader
	}
	conn *sql.DB
}

// Open connects the backend named by cfg.LogBackend and applies migrations
// where needed.
func Open(ctx context.Context, cfg config.Config) (*Store, error) {
	switch cfg.LogBackend {
	case config.BackendFile:
		return &Store{Backend: cfg.LogBackend, WatchPath: cfg.LogFile, log: calllog.NewFileSink(cfg.LogFile)}, nil
	case config.BackendSQLite, config.BackendPostgres:
		dialect, err := db.ParseDialect(cfg.LogBackend)
		if err != nil {
			return nil, err
		}
		dsn := cfg.SQLitePath
		if dialect == db.Postgres {
			dsn = cfg.DatabaseURL
		}
		conn, err := db.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, conn, dialect); err != nil {
			_ = conn.Close()
			return nil, err
		}
		s := &Store{Backend: cfg.LogBackend, log: db.NewRepository(conn, dialect), conn: conn}
		if dialect == db.Postgres {
			s.Notifier = db.NewNotifier(conn, dsn, cfg.NotifyChannel)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown log backend %q", cfg.LogBackend)
}

func (s *Store) Append(ctx context.Context, rec pkg.LogRecord) error {
	return s.log.Append(ctx, rec)
}

func (s *Store) Lines(ctx context.Context) ([]string, error) {
	return s.log.Lines(ctx)
}

type severityCounter interface {
	CountBySeverity(ctx context.Context) (map[pkg.Severity]int, error)
}

// Summary counts call outcomes per severity.  Database backends count in
// SQL; the flat file is parsed line by line and unreadable lines are skipped.
func (s *Store) Summary(ctx context.Context) (map[pkg.Severity]int, error) {
	if c, ok := s.log.(severityCounter); ok {
		return c.CountBySeverity(ctx)
	}
	lines, err := s.log.Lines(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[pkg.Severity]int)
	for _, l := range lines {
		rec, err := calllog.Parse(l)
		if err != nil || rec.Call == nil {
			continue
		}
		counts[rec.Call.Severity]++
	}
	return counts, nil
}

// ErrNoAlertSource is returned by Alerts for backends that cannot be
// followed, currently sqlite.
var ErrNoAlertSource = errors.New("logstore: backend has no alert feed")

// Alerts follows doctor alerts raised by calls: postgres LISTEN for the
// database backend, a tail of the flat file otherwise.
func (s *Store) Alerts(ctx context.Context) (<-chan pkg.DoctorAlert, error) {
	switch {
	case s.Notifier != nil:
		return s.Notifier.Listen(ctx)
	case s.WatchPath != "":
		return watch.NewLogWatcher(s.WatchPath).Alerts(ctx)
	}
	return nil, ErrNoAlertSource
}

// Close releases the database connection, if any.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
