// Package query provides the SQL engine adapter used to register and query
// tabular artifacts. It is the local stand-in for a serverless SQL query
// service: every data source and feature set becomes a table here, and all
// EDA statistics are computed as SQL.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/sageworks-ml/sageworks/internal/frame"
)

// Config holds the configuration for connecting to a query engine.
type Config struct {
	// Type specifies the engine type (currently "duckdb").
	Type string

	// Path is the database file path. Use ":memory:" for in-memory.
	Path string

	// Schema is the default schema.
	Schema string
}

// Column describes a column of a registered table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata holds metadata about a registered table.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to provide a consistent interface across adapters.
type Rows struct {
	*sql.Rows
}

// Adapter is the interface all query engine adapters implement.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// QueryFrame executes a query and collects the result into a frame.
	QueryFrame(ctx context.Context, sql string) (*frame.Frame, error)

	// TableMetadata retrieves metadata for a registered table.
	TableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV (re)creates a table from a CSV file with inferred schema.
	LoadCSV(ctx context.Context, table, filePath string) error

	// LoadParquet (re)creates a table from a Parquet file.
	LoadParquet(ctx context.Context, table, filePath string) error

	// DropTable removes a registered table if it exists.
	DropTable(ctx context.Context, table string) error

	// DialectName returns the SQL dialect name (e.g. "duckdb").
	DialectName() string
}

// Factory creates a new adapter instance.
type Factory func() Adapter

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an adapter factory available by type name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New creates an adapter for the given engine type.
func New(name string) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown query engine type: %q (available: %v)", name, available())
	}
	return factory(), nil
}

func available() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
