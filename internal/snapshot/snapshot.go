// Package snapshot persists the last known notification set in SQLite so
// listing works offline and the engine warm-starts with data before the
// first server round trip.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/campusdesk/notisync/internal/notification"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notifications (
	id          INTEGER PRIMARY KEY,
	type        TEXT NOT NULL,
	title       TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL,
	read        INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	action_url  TEXT NOT NULL DEFAULT '',
	action_text TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at);
`

// Store is a SQLite-backed snapshot of the notification set. The snapshot is
// a cache of server truth, not an authority: Save replaces it whole.
type Store struct {
	db *sql.DB
}

// Open creates or opens a snapshot database at the provided path.
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("snapshot: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open db: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("snapshot: set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("snapshot: create schema: %w", err)
	}
	return nil
}

// Save replaces the snapshot with the given set inside one transaction.
func (s *Store) Save(notifications []notification.Notification) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM notifications"); err != nil {
		return fmt.Errorf("snapshot: clear: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO notifications
		(id, type, title, message, priority, read, created_at, action_url, action_text, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("snapshot: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, n := range notifications {
		metadata := ""
		if len(n.Metadata) > 0 {
			data, err := json.Marshal(n.Metadata)
			if err != nil {
				return fmt.Errorf("snapshot: encode metadata for %d: %w", n.ID, err)
			}
			metadata = string(data)
		}
		_, err := stmt.Exec(
			n.ID,
			n.Type.String(),
			n.Title,
			n.Message,
			n.Priority.String(),
			boolToInt(n.Read),
			n.CreatedAt.UTC().Format(time.RFC3339),
			n.ActionURL,
			n.ActionText,
			metadata,
		)
		if err != nil {
			return fmt.Errorf("snapshot: insert %d: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("snapshot: commit: %w", err)
	}
	return nil
}

// Load returns the stored set, newest-first.
func (s *Store) Load() ([]notification.Notification, error) {
	rows, err := s.db.Query(`SELECT id, type, title, message, priority, read,
		created_at, action_url, action_text, metadata
		FROM notifications ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []notification.Notification
	for rows.Next() {
		var (
			n         notification.Notification
			typ       string
			priority  string
			read      int
			createdAt string
			metadata  string
		)
		if err := rows.Scan(&n.ID, &typ, &n.Title, &n.Message, &priority, &read,
			&createdAt, &n.ActionURL, &n.ActionText, &metadata); err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}
		n.Type = notification.Type(typ)
		n.Priority = notification.Priority(priority)
		n.Read = read != 0
		at, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("snapshot: parse created_at for %d: %w", n.ID, err)
		}
		n.CreatedAt = at
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
				return nil, fmt.Errorf("snapshot: decode metadata for %d: %w", n.ID, err)
			}
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate: %w", err)
	}
	return notifications, nil
}

// Clear empties the snapshot, e.g. on logout.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM notifications"); err != nil {
		return fmt.Errorf("snapshot: clear: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
