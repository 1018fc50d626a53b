// Package cloudwatch is the platform log store and monitor. Log events
// are JSONL objects in the bucket under logs/<group>/<stream>.jsonl; a
// slog handler tees application records into a stream and the monitor
// tails groups the way the cloud_watch CLI expects.
package cloudwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sageworks-ml/sageworks/internal/storage"
)

// DefaultGroup is the log group application logs land in.
const DefaultGroup = "SageWorksLogGroup"

// Event is one log line in a stream. Stream is filled in by readers,
// not stored.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Stream    string    `json:"-"`
}

// StreamInfo describes one stream in a group.
type StreamInfo struct {
	Name      string
	LastEvent time.Time
}

// Store reads and writes log streams in the bucket.
type Store struct {
	store  storage.ObjectStore
	bucket string
	layout storage.Layout
}

// NewStore returns a log store over an object store.
func NewStore(store storage.ObjectStore, bucket string) *Store {
	return &Store{store: store, bucket: bucket, layout: storage.Layout{Bucket: bucket}}
}

// Append adds events to the end of a stream, creating it if needed.
func (s *Store) Append(ctx context.Context, group, stream string, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	key := s.layout.LogKey(group, stream)
	existing, err := s.store.GetObject(ctx, s.bucket, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read log stream %s/%s: %w", group, stream, err)
	}

	var buf bytes.Buffer
	buf.Write(existing)
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to encode log event: %w", err)
		}
	}
	if err := s.store.PutObject(ctx, s.bucket, key, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write log stream %s/%s: %w", group, stream, err)
	}
	return nil
}

// Events returns a stream's events within [start, end], in order. A
// zero end means no upper bound.
func (s *Store) Events(ctx context.Context, group, stream string, start, end time.Time) ([]Event, error) {
	data, err := s.store.GetObject(ctx, s.bucket, s.layout.LogKey(group, stream))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log stream %s/%s: %w", group, stream, err)
	}

	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("corrupt log line in %s/%s: %w", group, stream, err)
		}
		if ev.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && ev.Timestamp.After(end) {
			continue
		}
		ev.Stream = stream
		events = append(events, ev)
	}
	return events, nil
}

// Streams lists every stream in a group with its last-event time.
func (s *Store) Streams(ctx context.Context, group string) ([]StreamInfo, error) {
	prefix := s.layout.LogGroupPrefix(group)
	infos, err := s.store.ListPrefix(ctx, s.bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list log group %s: %w", group, err)
	}
	streams := make([]StreamInfo, 0, len(infos))
	for _, info := range infos {
		rest, ok := strings.CutPrefix(info.Key, prefix)
		if !ok {
			continue
		}
		name, ok := strings.CutSuffix(rest, ".jsonl")
		if !ok {
			continue
		}
		streams = append(streams, StreamInfo{Name: name, LastEvent: info.LastModified})
	}
	return streams, nil
}

// ActiveStreams returns the streams with events at or after start,
// sorted by name, optionally filtered by a substring.
func (s *Store) ActiveStreams(ctx context.Context, group string, start time.Time, filter string) ([]string, error) {
	streams, err := s.Streams(ctx, group)
	if err != nil {
		return nil, err
	}
	var active []string
	for _, st := range streams {
		if st.LastEvent.Before(start) {
			continue
		}
		if filter != "" && !strings.Contains(st.Name, filter) {
			continue
		}
		active = append(active, st.Name)
	}
	sort.Strings(active)
	return active, nil
}

// DeleteGroup removes every stream in a group.
func (s *Store) DeleteGroup(ctx context.Context, group string) error {
	return s.store.RemovePrefix(ctx, s.bucket, s.layout.LogGroupPrefix(group))
}
