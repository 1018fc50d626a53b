package catalog

import (
	"database/sql"
	"fmt"

	"github.com/sageworks-ml/sageworks/internal/artifact"
)

// RegisterArtifact inserts a new artifact row or updates the existing one
// (matched by kind + name). Created time is preserved on update.
func (c *Catalog) RegisterArtifact(rec *artifact.Record) error {
	if err := c.ready(); err != nil {
		return err
	}

	now := nowUTC()
	existing, err := c.GetArtifact(rec.Kind, rec.Name)
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("failed to check existing artifact: %w", err)
	}

	if existing != nil {
		rec.Created = existing.Created
		rec.Modified = now
		_, err = c.db.Exec(
			`UPDATE artifacts SET input = ?, owner = ?, size_bytes = ?, modified_at = ?
			 WHERE kind = ? AND name = ?`,
			rec.Input, rec.Owner, rec.SizeBytes, rec.Modified, rec.Kind, rec.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to update artifact: %w", err)
		}
		return nil
	}

	rec.Created = now
	rec.Modified = now
	_, err = c.db.Exec(
		`INSERT INTO artifacts (id, kind, name, input, owner, size_bytes, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		generateID(), rec.Kind, rec.Name, rec.Input, rec.Owner, rec.SizeBytes, rec.Created, rec.Modified,
	)
	if err != nil {
		return fmt.Errorf("failed to register artifact: %w", err)
	}
	return nil
}

// GetArtifact retrieves an artifact record by kind and name.
func (c *Catalog) GetArtifact(kind artifact.Kind, name string) (*artifact.Record, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	rec := &artifact.Record{Kind: kind, Name: name}
	err := c.db.QueryRow(
		`SELECT input, owner, size_bytes, created_at, modified_at
		 FROM artifacts WHERE kind = ? AND name = ?`,
		kind, name,
	).Scan(&rec.Input, &rec.Owner, &rec.SizeBytes, &rec.Created, &rec.Modified)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return rec, nil
}

// ArtifactExists reports whether an artifact is registered.
func (c *Catalog) ArtifactExists(kind artifact.Kind, name string) (bool, error) {
	_, err := c.GetArtifact(kind, name)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListArtifacts returns all artifacts of a kind, ordered by name.
func (c *Catalog) ListArtifacts(kind artifact.Kind) ([]*artifact.Record, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	rows, err := c.db.Query(
		`SELECT name, input, owner, size_bytes, created_at, modified_at
		 FROM artifacts WHERE kind = ? ORDER BY name`,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var recs []*artifact.Record
	for rows.Next() {
		rec := &artifact.Record{Kind: kind}
		if err := rows.Scan(&rec.Name, &rec.Input, &rec.Owner, &rec.SizeBytes, &rec.Created, &rec.Modified); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteArtifact removes an artifact and its metadata (cascade).
func (c *Catalog) DeleteArtifact(kind artifact.Kind, name string) error {
	if err := c.ready(); err != nil {
		return err
	}

	res, err := c.db.Exec(`DELETE FROM artifacts WHERE kind = ? AND name = ?`, kind, name)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchArtifact updates the modified timestamp and optionally the size.
func (c *Catalog) TouchArtifact(kind artifact.Kind, name string, sizeBytes int64) error {
	if err := c.ready(); err != nil {
		return err
	}

	_, err := c.db.Exec(
		`UPDATE artifacts SET modified_at = ?, size_bytes = ? WHERE kind = ? AND name = ?`,
		nowUTC(), sizeBytes, kind, name,
	)
	if err != nil {
		return fmt.Errorf("failed to touch artifact: %w", err)
	}
	return nil
}
