// Package catalog provides the SageWorks metadata catalog backed by SQLite.
// It is the local stand-in for a cloud data catalog: artifact registrations,
// per-artifact metadata, model/endpoint associations, inference run history,
// and the parameter store all live here.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Catalog is the SQLite-backed metadata catalog.
type Catalog struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// New creates a catalog instance. Call Open before use.
func New(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{logger: logger}
}

// Open opens the SQLite database. Use ":memory:" for an in-memory catalog.
func (c *Catalog) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	} else {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open catalog database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping catalog database: %w", err)
	}

	c.db = db
	c.path = path
	return nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}

func (c *Catalog) ready() error {
	if c.db == nil {
		return fmt.Errorf("catalog database not opened")
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
