package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryStore keeps ids in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]string)}
}

func (s *MemoryStore) Get(scope string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[scope]
	return id, ok, nil
}

func (s *MemoryStore) Put(scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[scope] = id
	return nil
}

func (s *MemoryStore) Delete(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, scope)
	return nil
}

// DefaultMaxAge bounds how long a stored id is honoured. Terminal scopes
// like parent pids get recycled, so stale rows are ignored and pruned.
const DefaultMaxAge = 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	scope      TEXT PRIMARY KEY,
	id         TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

// SQLiteStore persists ids in a small sqlite database under the XDG
// state directory.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	maxAge time.Duration
	now    func() time.Time
}

// OpenSQLiteStore opens (creating if needed) the store at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open session store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing session store: %w", err)
	}
	return &SQLiteStore{db: db, path: path, maxAge: DefaultMaxAge, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Get(scope string) (string, bool, error) {
	var (
		id      string
		created int64
	)
	err := s.db.QueryRow(`SELECT id, created_at FROM sessions WHERE scope = ?`, scope).Scan(&id, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading session: %w", err)
	}
	if s.maxAge > 0 && s.now().Sub(time.UnixMilli(created)) > s.maxAge {
		_ = s.Delete(scope)
		return "", false, nil
	}
	return id, true, nil
}

func (s *SQLiteStore) Put(scope, id string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (scope, id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(scope) DO UPDATE SET id = excluded.id, created_at = excluded.created_at`,
		scope, id, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(scope string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
