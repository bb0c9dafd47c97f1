package task

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultKey is the slot the task snapshot is stored under.
const DefaultKey = "ai-todo-tasks"

const schema = `
CREATE TABLE IF NOT EXISTS slots (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLiteStore keeps the task snapshot in a key-value table of a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	key    string
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the slots table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, key: DefaultKey, logger: logger}, nil
}

// WithKey returns a store sharing the same database but using another slot.
func (s *SQLiteStore) WithKey(key string) *SQLiteStore {
	return &SQLiteStore{db: s.db, key: key, logger: s.logger}
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Load reads the snapshot. An absent slot or a corrupt value is treated as no tasks yet.
func (s *SQLiteStore) Load() (List, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM slots WHERE key = ?`, s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return List{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	return decodeSnapshot(raw, s.logger), nil
}

// Save upserts the snapshot. Concurrent writers resolve last-write-wins.
func (s *SQLiteStore) Save(tasks List) error {
	raw, err := encodeSnapshot(tasks)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO slots (key, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		s.key, raw, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

func encodeSnapshot(tasks List) (string, error) {
	if tasks == nil {
		tasks = List{}
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return "", fmt.Errorf("encode tasks: %w", err)
	}
	return string(b), nil
}

func decodeSnapshot(raw string, logger *slog.Logger) List {
	var tasks List
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		logger.Warn("discarding unreadable task snapshot", slog.Any("err", err))
		return List{}
	}
	if tasks == nil {
		return List{}
	}
	return tasks
}
