package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteSink persists audit events to a SQLite database. Writes are
// best-effort: failures are logged and dropped, never surfaced to callers.
type SQLiteSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSink opens or creates the database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func NewSQLiteSink(dbPath string, logger *zap.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		ts TIMESTAMP NOT NULL,
		department TEXT,
		role TEXT,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		verdict TEXT,
		detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_ts ON audit_events(ts);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &SQLiteSink{db: db, logger: logger}, nil
}

// Log implements Sink.
func (s *SQLiteSink) Log(event Event) {
	_, err := s.db.Exec(
		`INSERT INTO audit_events (id, ts, department, role, action, outcome, verdict, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Time, event.Department, event.Role,
		event.Action, event.Outcome, event.Verdict, event.Detail,
	)
	if err != nil {
		s.logger.Warn("audit write failed", zap.Error(err), zap.String("event_id", event.ID))
	}
}

// Count returns the number of stored events.
func (s *SQLiteSink) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
