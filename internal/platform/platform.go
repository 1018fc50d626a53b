// Package platform wires together the shared backends that every
// artifact operation needs: the artifact catalog, the object store,
// and the SQL query engine.
package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sageworks-ml/sageworks/internal/catalog"
	"github.com/sageworks-ml/sageworks/internal/query"
	"github.com/sageworks-ml/sageworks/internal/storage"
)

// Options configures a Platform.
type Options struct {
	// Bucket is the artifact bucket name, from SAGEWORKS_BUCKET or config.
	Bucket string

	// CatalogPath is the filesystem path of the catalog database.
	CatalogPath string

	// QueryType selects the query adapter, "duckdb" by default.
	QueryType string

	// QueryPath is the query engine database path, ":memory:" by default.
	QueryPath string

	Storage storage.Config
	Logger  *slog.Logger
}

// Platform carries the shared backends for artifact operations.
type Platform struct {
	Catalog *catalog.Catalog
	Store   storage.ObjectStore
	Query   query.Adapter
	Bucket  string
	Layout  storage.Layout
	Logger  *slog.Logger
}

// New opens all backends and ensures the artifact bucket exists.
func New(ctx context.Context, opts Options) (*Platform, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("artifact bucket not configured, set SAGEWORKS_BUCKET or the storage.bucket config key")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cat := catalog.New(logger)
	if err := cat.Open(opts.CatalogPath); err != nil {
		return nil, fmt.Errorf("failed to open artifact catalog: %w", err)
	}
	if err := cat.Migrate(); err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to migrate artifact catalog: %w", err)
	}

	store, err := storage.Open(opts.Storage)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}
	if err := store.EnsureBucket(ctx, opts.Bucket); err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to ensure artifact bucket: %w", err)
	}

	queryType := opts.QueryType
	if queryType == "" {
		queryType = "duckdb"
	}
	queryPath := opts.QueryPath
	if queryPath == "" {
		queryPath = ":memory:"
	}
	adapter, err := query.New(queryType)
	if err != nil {
		_ = cat.Close()
		return nil, err
	}
	if err := adapter.Connect(ctx, query.Config{Type: queryType, Path: queryPath}); err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to connect query engine: %w", err)
	}

	return &Platform{
		Catalog: cat,
		Store:   store,
		Query:   adapter,
		Bucket:  opts.Bucket,
		Layout:  storage.Layout{Bucket: opts.Bucket},
		Logger:  logger,
	}, nil
}

// Close releases the catalog and query engine connections.
func (p *Platform) Close() error {
	var firstErr error
	if p.Query != nil {
		if err := p.Query.Close(); err != nil {
			firstErr = err
		}
	}
	if p.Catalog != nil {
		if err := p.Catalog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
