// Package paramstore is a named parameter store backed by the catalog.
// Values are JSON and may be arbitrarily nested; values over the plain
// size limit are transparently zlib-compressed and base64-encoded.
package paramstore

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sageworks-ml/sageworks/internal/catalog"
	"github.com/sageworks-ml/sageworks/internal/platform"
)

// MaxValueBytes is the largest value the store accepts. Oversized values
// are compressed first; a value that stays over the limit after
// compression is rejected.
const MaxValueBytes = 4 * 1024

// ErrTooLarge is returned when a value exceeds MaxValueBytes even after
// compression.
var ErrTooLarge = errors.New("paramstore: value too large")

// ErrNotFound is returned when a parameter does not exist.
var ErrNotFound = catalog.ErrNotFound

// Store reads and writes named parameters.
type Store struct {
	cat    *catalog.Catalog
	logger *slog.Logger
}

// New returns a parameter store over the platform catalog.
func New(p *platform.Platform) *Store {
	return &Store{cat: p.Catalog, logger: p.Logger}
}

// Upsert stores a JSON-serializable value under a name, overwriting any
// existing value.
func (s *Store) Upsert(name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode parameter %q: %w", name, err)
	}

	param := &catalog.Parameter{Name: name, Value: string(data)}
	if len(data) > MaxValueBytes {
		encoded, err := compress(data)
		if err != nil {
			return fmt.Errorf("failed to compress parameter %q: %w", name, err)
		}
		if len(encoded) > MaxValueBytes {
			return fmt.Errorf("%w: %q is %d bytes compressed (limit %d)",
				ErrTooLarge, name, len(encoded), MaxValueBytes)
		}
		s.logger.Info("parameter compressed to fit",
			"name", name, "plain_bytes", len(data), "compressed_bytes", len(encoded))
		param.Value = encoded
		param.Compressed = true
	}
	return s.cat.SetParameter(param)
}

// Get loads a parameter and decodes its JSON value into out.
func (s *Store) Get(name string, out any) error {
	param, err := s.cat.GetParameter(name)
	if err != nil {
		return err
	}
	value := []byte(param.Value)
	if param.Compressed {
		value, err = decompress(param.Value)
		if err != nil {
			return fmt.Errorf("failed to decompress parameter %q: %w", name, err)
		}
	}
	if err := json.Unmarshal(value, out); err != nil {
		return fmt.Errorf("failed to decode parameter %q: %w", name, err)
	}
	return nil
}

// List returns all parameter names under a prefix. An empty prefix
// lists everything.
func (s *Store) List(prefix string) ([]string, error) {
	return s.cat.ListParameters(prefix)
}

// Delete removes a parameter.
func (s *Store) Delete(name string) error {
	return s.cat.DeleteParameter(name)
}

func compress(data []byte) (string, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decompress(value string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
