// Package store caches compiled chunks in SQLite, keyed by a hash of their
// source text.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/fth/pkg/bytecode"
	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("fth.store")

// Cache stores serialized chunks. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		hash TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened chunk cache %s", path)
	return &Cache{db: db, path: path}, nil
}

// Key returns the cache key for a source text.
func Key(src string) string {
	h := xxh3.HashString128(src)
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// Get returns the cached chunk for src. The caller owns the returned chunk
// and must Free it.
func (c *Cache) Get(src string) (*bytecode.Chunk, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(src)
	var body []byte
	err := c.db.QueryRow("SELECT body FROM chunks WHERE hash = ?", key).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Infof("cache miss %s", key)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying chunk: %w", err)
	}

	chunk, err := bytecode.UnmarshalChunk(body)
	if err != nil {
		return nil, false, fmt.Errorf("decoding cached chunk %s: %w", key, err)
	}
	log.Infof("cache hit %s", key)
	return chunk, true, nil
}

// Put stores chunk as the compiled form of src, replacing any earlier
// entry.
func (c *Cache) Put(src string, chunk *bytecode.Chunk) error {
	body, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO chunks (hash, body, created) VALUES (?, ?, ?)",
		Key(src), body, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// Len returns the number of cached chunks.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Path returns the database path.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
