package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/sidecar/internal/history"
)

// Sink appends bootstrap events to a SQLite table.
type Sink struct {
	db    *sql.DB
	table string
}

// New opens a SQLite sink. Accepted DSNs:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db"
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if len(dsn) >= len("sqlite://") && strings.EqualFold(dsn[:len("sqlite://")], "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	s := &Sink{db: db, table: history.DefaultTable}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+`(
		id TEXT PRIMARY KEY,
		occurred_at TIMESTAMP NOT NULL,
		trigger TEXT NOT NULL,
		pid INTEGER NOT NULL,
		available BOOLEAN NOT NULL,
		status TEXT NOT NULL,
		launch_mode TEXT NOT NULL,
		message TEXT,
		checked_at_millis INTEGER NOT NULL
	);`)
	return err
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	snap := e.Snapshot
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+s.table+`(id, occurred_at, trigger, pid, available, status, launch_mode, message, checked_at_millis)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.ID, e.OccurredAt.UTC(), string(e.Trigger), e.PID, snap.Available, string(snap.Status),
		string(snap.LaunchMode), nullString(snap.Message), int64(snap.CheckedAtMillis))
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
