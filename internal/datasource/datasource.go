// Package datasource implements the DataSource artifact: tabular data
// loaded into the artifact bucket and registered as a queryable table.
package datasource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/platform"
	"github.com/sageworks-ml/sageworks/internal/query"
	"github.com/sageworks-ml/sageworks/internal/storage"
)

// RawDataFile is the object name of a data source's raw data.
const RawDataFile = "data.csv"

// ExpectedMeta is the metadata a fully onboarded data source carries.
var ExpectedMeta = append(artifact.ExpectedMeta, artifact.MetaInput)

// DataSource is a handle to a registered data source artifact.
type DataSource struct {
	p    *platform.Platform
	name string
}

// New attaches to an existing (or soon to exist) data source by name.
// The name is converted to its compliant form.
func New(p *platform.Platform, name string) *DataSource {
	return &DataSource{p: p, name: artifact.CompliantName(name, "_", p.Logger)}
}

// FromSource creates a data source from a CSV file path or an s3:// URI,
// uploads the raw data to the artifact bucket, loads it into the query
// engine, and registers the artifact.
func FromSource(ctx context.Context, p *platform.Platform, source, name string) (*DataSource, error) {
	ds := New(p, name)
	if err := artifact.ValidateName(ds.name); err != nil {
		return nil, fmt.Errorf("invalid data source name %q: %w", name, err)
	}

	data, err := readSource(ctx, p, source)
	if err != nil {
		return nil, err
	}
	// Validate before uploading anything.
	if _, err := frame.FromCSV(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("source is not valid CSV: %w", err)
	}

	key := p.Layout.DataSourceKey(ds.name, RawDataFile)
	if err := p.Store.PutObject(ctx, p.Bucket, key, data); err != nil {
		return nil, fmt.Errorf("failed to upload raw data: %w", err)
	}

	if err := ds.loadTable(ctx, data); err != nil {
		return nil, err
	}

	rec := &artifact.Record{
		Kind:      artifact.KindDataSource,
		Name:      ds.name,
		Input:     source,
		SizeBytes: int64(len(data)),
	}
	if err := p.Catalog.RegisterArtifact(rec); err != nil {
		return nil, fmt.Errorf("failed to register data source: %w", err)
	}
	meta := artifact.Meta{
		artifact.MetaStatus: artifact.StatusReady,
		artifact.MetaInput:  source,
		artifact.MetaTags:   artifact.JoinTags(strings.Split(ds.name, "_")),
	}
	if err := p.Catalog.UpsertMeta(artifact.KindDataSource, ds.name, meta); err != nil {
		return nil, fmt.Errorf("failed to store data source metadata: %w", err)
	}

	p.Logger.Info("data source created", "name", ds.name, "source", source, "bytes", len(data))
	return ds, nil
}

// readSource fetches the raw bytes from a local path or an s3:// URI.
func readSource(ctx context.Context, p *platform.Platform, source string) ([]byte, error) {
	if strings.HasPrefix(source, "s3://") {
		bucket, key, err := storage.ParseURI(source)
		if err != nil {
			return nil, err
		}
		data, err := p.Store.GetObject(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return data, nil
}

// loadTable registers the raw data as a query engine table.
func (ds *DataSource) loadTable(ctx context.Context, data []byte) error {
	tmp, err := os.CreateTemp("", "sageworks-*.csv")
	if err != nil {
		return fmt.Errorf("failed to stage raw data: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to stage raw data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage raw data: %w", err)
	}
	if err := ds.p.Query.LoadCSV(ctx, ds.name, tmp.Name()); err != nil {
		return fmt.Errorf("failed to load table %s: %w", ds.name, err)
	}
	return nil
}

// ensureTable lazily reloads the query engine table from the bucket. The
// query engine is per-process, so a fresh process sees the catalog entry
// but not the table.
func (ds *DataSource) ensureTable(ctx context.Context) error {
	if _, err := ds.p.Query.TableMetadata(ctx, ds.name); err == nil {
		return nil
	}
	key := ds.p.Layout.DataSourceKey(ds.name, RawDataFile)
	data, err := ds.p.Store.GetObject(ctx, ds.p.Bucket, key)
	if err != nil {
		return fmt.Errorf("raw data missing for data source %s: %w", ds.name, err)
	}
	return ds.loadTable(ctx, data)
}

// Name returns the compliant artifact name.
func (ds *DataSource) Name() string { return ds.name }

// TableName returns the query engine table backing this data source.
func (ds *DataSource) TableName() string { return ds.name }

// Exists reports whether the data source is registered.
func (ds *DataSource) Exists() (bool, error) {
	return ds.p.Catalog.ArtifactExists(artifact.KindDataSource, ds.name)
}

// Summary returns the generic artifact summary.
func (ds *DataSource) Summary() (artifact.Summary, error) {
	rec, err := ds.p.Catalog.GetArtifact(artifact.KindDataSource, ds.name)
	if err != nil {
		return artifact.Summary{}, err
	}
	meta, err := ds.p.Catalog.GetMeta(artifact.KindDataSource, ds.name)
	if err != nil {
		return artifact.Summary{}, err
	}
	return artifact.Summarize(rec, meta, ExpectedMeta), nil
}

// Query runs SQL against the data source's table.
func (ds *DataSource) Query(ctx context.Context, sql string) (*frame.Frame, error) {
	if err := ds.ensureTable(ctx); err != nil {
		return nil, err
	}
	return ds.p.Query.QueryFrame(ctx, sql)
}

// Sample returns up to n rows sampled from the data source.
func (ds *DataSource) Sample(ctx context.Context, n int) (*frame.Frame, error) {
	if err := ds.ensureTable(ctx); err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT * FROM %s USING SAMPLE %d ROWS`,
		query.QuoteIdentifier(ds.name), n)
	return ds.p.Query.QueryFrame(ctx, sql)
}

// Metadata returns the table schema and row count.
func (ds *DataSource) Metadata(ctx context.Context) (*query.Metadata, error) {
	if err := ds.ensureTable(ctx); err != nil {
		return nil, err
	}
	return ds.p.Query.TableMetadata(ctx, ds.name)
}

// NumColumns returns the column count of the backing table.
func (ds *DataSource) NumColumns(ctx context.Context) (int, error) {
	meta, err := ds.Metadata(ctx)
	if err != nil {
		return 0, err
	}
	return len(meta.Columns), nil
}

// NumRows returns the row count of the backing table.
func (ds *DataSource) NumRows(ctx context.Context) (int64, error) {
	meta, err := ds.Metadata(ctx)
	if err != nil {
		return 0, err
	}
	return meta.RowCount, nil
}

// ColumnNames returns the column names of the backing table.
func (ds *DataSource) ColumnNames(ctx context.Context) ([]string, error) {
	meta, err := ds.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		names[i] = c.Name
	}
	return names, nil
}

// Delete removes the data source: its bucket objects, its query engine
// table, and its catalog entry.
func (ds *DataSource) Delete(ctx context.Context) error {
	if err := ds.p.Store.RemovePrefix(ctx, ds.p.Bucket, ds.p.Layout.DataSourcePrefix(ds.name)); err != nil {
		return fmt.Errorf("failed to remove data source objects: %w", err)
	}
	if err := ds.p.Query.DropTable(ctx, ds.name); err != nil {
		return fmt.Errorf("failed to drop data source table: %w", err)
	}
	if err := ds.p.Catalog.DeleteArtifact(artifact.KindDataSource, ds.name); err != nil {
		return err
	}
	ds.p.Logger.Info("data source deleted", "name", ds.name)
	return nil
}

// ToFrame reads the full data source into memory. Intended for the
// modest table sizes this tool targets.
func (ds *DataSource) ToFrame(ctx context.Context) (*frame.Frame, error) {
	return ds.Query(ctx, fmt.Sprintf(`SELECT * FROM %s`, query.QuoteIdentifier(ds.name)))
}
