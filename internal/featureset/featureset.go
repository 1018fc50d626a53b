// Package featureset implements the FeatureSet artifact: feature rows
// with an id column and an event time column, backed by a parquet
// offline store in the artifact bucket.
package featureset

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"time"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/query"
)

// OfflineStoreFile is the object name of the offline feature store.
const OfflineStoreFile = "offline.parquet"

// TrainingColumn marks rows used for training (1) versus holdout (0).
const TrainingColumn = "training"

// Metadata keys specific to feature sets.
const (
	MetaIDColumn        = "sageworks_id_column"
	MetaEventTimeColumn = "sageworks_event_time_column"
)

// ExpectedMeta is the metadata a fully onboarded feature set carries.
var ExpectedMeta = append(artifact.ExpectedMeta,
	artifact.MetaInput, MetaIDColumn, MetaEventTimeColumn)

// holdoutBuckets is the modulus for the deterministic training split.
// Rows whose id hashes into the top two buckets are held out, giving
// an 80/20 split.
const holdoutBuckets = 10

// FeatureSet is a handle to a registered feature set artifact.
type FeatureSet struct {
	p    *platform.Platform
	name string
}

// New attaches to a feature set by name. The name is converted to its
// compliant form.
func New(p *platform.Platform, name string) *FeatureSet {
	return &FeatureSet{p: p, name: artifact.CompliantName(name, "_", p.Logger)}
}

// FromFrame creates a feature set from a frame. A missing id column is
// synthesized from the row index and a missing event time column is
// stamped with the current time.
func FromFrame(ctx context.Context, p *platform.Platform, f *frame.Frame,
	name, input, idColumn, eventTimeColumn string) (*FeatureSet, error) {

	fs := New(p, name)
	if err := artifact.ValidateName(fs.name); err != nil {
		return nil, fmt.Errorf("invalid feature set name %q: %w", name, err)
	}

	if idColumn == "" {
		idColumn = "id"
	}
	if f.ColumnIndex(idColumn) < 0 {
		ids := make([]any, f.NumRows())
		for i := range ids {
			ids[i] = float64(i)
		}
		if err := f.AddColumn(idColumn, ids); err != nil {
			return nil, fmt.Errorf("failed to add id column: %w", err)
		}
		p.Logger.Info("id column not found, generating one", "column", idColumn)
	}

	if eventTimeColumn == "" {
		eventTimeColumn = "event_time"
	}
	if f.ColumnIndex(eventTimeColumn) < 0 {
		now := time.Now().UTC().Format(time.RFC3339)
		times := make([]any, f.NumRows())
		for i := range times {
			times[i] = now
		}
		if err := f.AddColumn(eventTimeColumn, times); err != nil {
			return nil, fmt.Errorf("failed to add event time column: %w", err)
		}
		p.Logger.Info("event time column not found, generating one", "column", eventTimeColumn)
	}

	data, err := f.WriteParquet()
	if err != nil {
		return nil, fmt.Errorf("failed to encode offline store: %w", err)
	}
	key := p.Layout.FeatureSetKey(fs.name, OfflineStoreFile)
	if err := p.Store.PutObject(ctx, p.Bucket, key, data); err != nil {
		return nil, fmt.Errorf("failed to upload offline store: %w", err)
	}

	if err := fs.loadTable(ctx, data); err != nil {
		return nil, err
	}

	rec := &artifact.Record{
		Kind:      artifact.KindFeatureSet,
		Name:      fs.name,
		Input:     input,
		SizeBytes: int64(len(data)),
	}
	if err := p.Catalog.RegisterArtifact(rec); err != nil {
		return nil, fmt.Errorf("failed to register feature set: %w", err)
	}
	meta := artifact.Meta{
		artifact.MetaStatus: artifact.StatusReady,
		artifact.MetaInput:  input,
		artifact.MetaTags:   artifact.JoinTags(strings.Split(fs.name, "_")),
		MetaIDColumn:        idColumn,
		MetaEventTimeColumn: eventTimeColumn,
	}
	if err := p.Catalog.UpsertMeta(artifact.KindFeatureSet, fs.name, meta); err != nil {
		return nil, fmt.Errorf("failed to store feature set metadata: %w", err)
	}

	p.Logger.Info("feature set created", "name", fs.name,
		"rows", f.NumRows(), "id_column", idColumn, "event_time_column", eventTimeColumn)
	return fs, nil
}

// loadTable registers the offline store as a query engine table.
func (fs *FeatureSet) loadTable(ctx context.Context, data []byte) error {
	tmp, err := os.CreateTemp("", "sageworks-*.parquet")
	if err != nil {
		return fmt.Errorf("failed to stage offline store: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to stage offline store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage offline store: %w", err)
	}
	if err := fs.p.Query.LoadParquet(ctx, fs.name, tmp.Name()); err != nil {
		return fmt.Errorf("failed to load table %s: %w", fs.name, err)
	}
	return nil
}

// ensureTable lazily reloads the query engine table from the bucket.
func (fs *FeatureSet) ensureTable(ctx context.Context) error {
	if _, err := fs.p.Query.TableMetadata(ctx, fs.name); err == nil {
		return nil
	}
	key := fs.p.Layout.FeatureSetKey(fs.name, OfflineStoreFile)
	data, err := fs.p.Store.GetObject(ctx, fs.p.Bucket, key)
	if err != nil {
		return fmt.Errorf("offline store missing for feature set %s: %w", fs.name, err)
	}
	return fs.loadTable(ctx, data)
}

// Name returns the compliant artifact name.
func (fs *FeatureSet) Name() string { return fs.name }

// Exists reports whether the feature set is registered.
func (fs *FeatureSet) Exists() (bool, error) {
	return fs.p.Catalog.ArtifactExists(artifact.KindFeatureSet, fs.name)
}

// Summary returns the generic artifact summary.
func (fs *FeatureSet) Summary() (artifact.Summary, error) {
	rec, err := fs.p.Catalog.GetArtifact(artifact.KindFeatureSet, fs.name)
	if err != nil {
		return artifact.Summary{}, err
	}
	meta, err := fs.p.Catalog.GetMeta(artifact.KindFeatureSet, fs.name)
	if err != nil {
		return artifact.Summary{}, err
	}
	return artifact.Summarize(rec, meta, ExpectedMeta), nil
}

// IDColumn returns the feature set's id column name.
func (fs *FeatureSet) IDColumn() (string, error) {
	meta, err := fs.p.Catalog.GetMeta(artifact.KindFeatureSet, fs.name)
	if err != nil {
		return "", err
	}
	return meta[MetaIDColumn], nil
}

// EventTimeColumn returns the feature set's event time column name.
func (fs *FeatureSet) EventTimeColumn() (string, error) {
	meta, err := fs.p.Catalog.GetMeta(artifact.KindFeatureSet, fs.name)
	if err != nil {
		return "", err
	}
	return meta[MetaEventTimeColumn], nil
}

// Query runs SQL against the feature set's table.
func (fs *FeatureSet) Query(ctx context.Context, sql string) (*frame.Frame, error) {
	if err := fs.ensureTable(ctx); err != nil {
		return nil, err
	}
	return fs.p.Query.QueryFrame(ctx, sql)
}

// Sample returns up to n rows sampled from the feature set.
func (fs *FeatureSet) Sample(ctx context.Context, n int) (*frame.Frame, error) {
	if err := fs.ensureTable(ctx); err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT * FROM %s USING SAMPLE %d ROWS`,
		query.QuoteIdentifier(fs.name), n)
	return fs.p.Query.QueryFrame(ctx, sql)
}

// NumRows returns the row count of the offline store.
func (fs *FeatureSet) NumRows(ctx context.Context) (int64, error) {
	if err := fs.ensureTable(ctx); err != nil {
		return 0, err
	}
	meta, err := fs.p.Query.TableMetadata(ctx, fs.name)
	if err != nil {
		return 0, err
	}
	return meta.RowCount, nil
}

// ColumnNames returns the offline store's column names.
func (fs *FeatureSet) ColumnNames(ctx context.Context) ([]string, error) {
	if err := fs.ensureTable(ctx); err != nil {
		return nil, err
	}
	meta, err := fs.p.Query.TableMetadata(ctx, fs.name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		names[i] = c.Name
	}
	return names, nil
}

// ToFrame reads the full offline store into memory.
func (fs *FeatureSet) ToFrame(ctx context.Context) (*frame.Frame, error) {
	return fs.Query(ctx, fmt.Sprintf(`SELECT * FROM %s`, query.QuoteIdentifier(fs.name)))
}

// TrainingData returns the offline store with an added training column.
// The split is deterministic on the id column value, so re-running a
// pipeline reproduces the same holdout set.
func (fs *FeatureSet) TrainingData(ctx context.Context) (*frame.Frame, error) {
	f, err := fs.ToFrame(ctx)
	if err != nil {
		return nil, err
	}
	idColumn, err := fs.IDColumn()
	if err != nil {
		return nil, err
	}
	idx := f.ColumnIndex(idColumn)
	if idx < 0 {
		return nil, fmt.Errorf("id column %q missing from offline store", idColumn)
	}

	flags := make([]any, f.NumRows())
	for i, row := range f.Rows {
		if trainingRow(frame.CellString(row[idx])) {
			flags[i] = float64(1)
		} else {
			flags[i] = float64(0)
		}
	}
	if err := f.AddColumn(TrainingColumn, flags); err != nil {
		return nil, err
	}
	return f, nil
}

// TrainingSplit returns the training and holdout frames, without the
// training column.
func (fs *FeatureSet) TrainingSplit(ctx context.Context) (train, holdout *frame.Frame, err error) {
	f, err := fs.TrainingData(ctx)
	if err != nil {
		return nil, nil, err
	}
	idx := f.ColumnIndex(TrainingColumn)
	cols := f.Columns[:idx]

	train = frame.New(cols...)
	holdout = frame.New(cols...)
	for _, row := range f.Rows {
		target := holdout
		if v, ok := row[idx].(float64); ok && v == 1 {
			target = train
		}
		if err := target.AppendRow(row[:idx]); err != nil {
			return nil, nil, err
		}
	}
	return train, holdout, nil
}

// trainingRow reports whether an id value belongs to the training set.
func trainingRow(id string) bool {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()%holdoutBuckets < holdoutBuckets-2
}

// Delete removes the feature set: its bucket objects, its query engine
// table, and its catalog entry.
func (fs *FeatureSet) Delete(ctx context.Context) error {
	if err := fs.p.Store.RemovePrefix(ctx, fs.p.Bucket, fs.p.Layout.FeatureSetPrefix(fs.name)); err != nil {
		return fmt.Errorf("failed to remove feature set objects: %w", err)
	}
	if err := fs.p.Query.DropTable(ctx, fs.name); err != nil {
		return fmt.Errorf("failed to drop feature set table: %w", err)
	}
	if err := fs.p.Catalog.DeleteArtifact(artifact.KindFeatureSet, fs.name); err != nil {
		return err
	}
	fs.p.Logger.Info("feature set deleted", "name", fs.name)
	return nil
}
