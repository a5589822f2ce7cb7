package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Keys under which the application state is persisted
const (
	stateKeyInput  = "input"
	stateKeyOutput = "output"
	stateKeyRules  = "rules"
)

// StateStore is a small key-value store for persisted application state.
// Load reports ok=false when the key has never been saved.
type StateStore interface {
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
	Close() error
}

// ============================================================================
// In-memory store
// ============================================================================

// MemoryStore keeps state for the lifetime of the process only
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Load(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryStore) Save(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// ============================================================================
// SQLite store
// ============================================================================

// stateEntry is one row of the state table
type stateEntry struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SQLiteStore persists state in a single SQLite table
type SQLiteStore struct {
	conn *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at path and sets up its schema
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &SQLiteStore{conn: conn}
	if err := store.setupSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setup schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) setupSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	_, err := s.conn.Exec(schema)
	return err
}

// Load returns the stored value for key
func (s *SQLiteStore) Load(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.GetContext(ctx, &value, "SELECT value FROM app_state WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

// Save inserts or replaces the value for key
func (s *SQLiteStore) Save(ctx context.Context, key, value string) error {
	entry := stateEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.conn.NamedExecContext(ctx, `
		INSERT INTO app_state (key, value, updated_at) VALUES (:key, :value, :updated_at)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, &entry)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Close closes the database handle
func (s *SQLiteStore) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// OpenStateStore returns a SQLite store for path, or a memory store when path is empty
func OpenStateStore(path string) (StateStore, error) {
	if strings.TrimSpace(path) == "" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(path)
}
