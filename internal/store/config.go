package store

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Config configures how the store opens its database.
type Config struct {
	// Path is the SQLite database file, or ":memory:".
	Path string

	// Synchronous is the SQLite synchronous level: OFF, NORMAL, FULL or EXTRA.
	Synchronous string

	// TxLock is the transaction locking mode: deferred, immediate or exclusive.
	TxLock string

	// MaxConnections bounds the connection pool. In-memory databases always
	// use a single connection since each connection is its own database.
	MaxConnections int

	// BusyTimeout is how long a connection waits on a locked database before
	// failing with a write conflict.
	BusyTimeout time.Duration
}

// DefaultConfig returns the configuration used by Open.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		Synchronous:    "NORMAL",
		TxLock:         "immediate",
		MaxConnections: 4,
		BusyTimeout:    5 * time.Second,
	}
}

func (c Config) inMemory() bool {
	return c.Path == ":memory:"
}

// dsn builds a go-sqlite3 DSN. Settings go in the DSN rather than one-off
// PRAGMA statements so every pooled connection gets them.
func (c Config) dsn() string {
	params := url.Values{}
	params.Set("_busy_timeout", strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))
	params.Set("_synchronous", c.Synchronous)
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", c.TxLock)
	if !c.inMemory() {
		params.Set("_journal_mode", "WAL")
	}
	return fmt.Sprintf("file:%s?%s", c.Path, params.Encode())
}
