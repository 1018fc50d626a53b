// Package dfstore persists named dataframes in the bucket as Parquet.
// Locations are slash-separated paths, so related frames can live under
// a shared prefix.
package dfstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/storage"
)

// ErrNotFound is returned when a stored dataframe does not exist.
var ErrNotFound = storage.ErrNotFound

// Entry describes one stored dataframe.
type Entry struct {
	Location     string    `json:"location"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Store reads and writes dataframes in the bucket.
type Store struct {
	store  storage.ObjectStore
	bucket string
	layout storage.Layout
	logger *slog.Logger
}

// New returns a dataframe store over the platform bucket.
func New(p *platform.Platform) *Store {
	return &Store{store: p.Store, bucket: p.Bucket, layout: p.Layout, logger: p.Logger}
}

// Upsert writes a frame to a location, overwriting any existing frame.
func (s *Store) Upsert(ctx context.Context, location string, f *frame.Frame) error {
	data, err := f.WriteParquet()
	if err != nil {
		return fmt.Errorf("failed to encode dataframe %q: %w", location, err)
	}
	key := s.layout.DataFrameKey(location)
	if err := s.store.PutObject(ctx, s.bucket, key, data); err != nil {
		return fmt.Errorf("failed to store dataframe %q: %w", location, err)
	}
	s.logger.Debug("dataframe stored", "location", location, "bytes", len(data))
	return nil
}

// Get loads the frame stored at a location.
func (s *Store) Get(ctx context.Context, location string) (*frame.Frame, error) {
	data, err := s.store.GetObject(ctx, s.bucket, s.layout.DataFrameKey(location))
	if err != nil {
		return nil, fmt.Errorf("dataframe %q: %w", location, err)
	}
	f, err := frame.ReadParquet(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dataframe %q: %w", location, err)
	}
	return f, nil
}

// Exists reports whether a location holds a dataframe.
func (s *Store) Exists(ctx context.Context, location string) (bool, error) {
	_, err := s.store.StatObject(ctx, s.bucket, s.layout.DataFrameKey(location))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// List returns every stored dataframe under a location prefix, sorted by
// location. An empty prefix lists the whole store.
func (s *Store) List(ctx context.Context, prefix string) ([]Entry, error) {
	keyPrefix := storage.PrefixDataFrames + "/"
	if prefix != "" {
		keyPrefix += strings.Trim(prefix, "/")
	}
	infos, err := s.store.ListPrefix(ctx, s.bucket, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataframes: %w", err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		location, ok := locationFromKey(info.Key)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Location:     location,
			SizeBytes:    info.SizeBytes,
			LastModified: info.LastModified,
		})
	}
	return entries, nil
}

// Delete removes the dataframe at a location. Deleting a missing
// location is not an error.
func (s *Store) Delete(ctx context.Context, location string) error {
	return s.store.RemoveObject(ctx, s.bucket, s.layout.DataFrameKey(location))
}

// locationFromKey maps an object key back to its store location.
func locationFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, storage.PrefixDataFrames+"/")
	if !ok {
		return "", false
	}
	location, ok := strings.CutSuffix(rest, ".parquet")
	if !ok {
		return "", false
	}
	return location, true
}
