package catalog

import (
	"fmt"

	"github.com/sageworks-ml/sageworks/internal/artifact"
)

// artifactID resolves the internal id for a kind/name pair.
func (c *Catalog) artifactID(kind artifact.Kind, name string) (string, error) {
	var id string
	err := c.db.QueryRow(`SELECT id FROM artifacts WHERE kind = ? AND name = ?`, kind, name).Scan(&id)
	if err != nil {
		return "", ErrNotFound
	}
	return id, nil
}

// UpsertMeta merges new metadata keys into an artifact's metadata.
func (c *Catalog) UpsertMeta(kind artifact.Kind, name string, meta artifact.Meta) error {
	if err := c.ready(); err != nil {
		return err
	}

	id, err := c.artifactID(kind, name)
	if err != nil {
		return err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := nowUTC()
	for key, value := range meta {
		_, err := tx.Exec(
			`INSERT INTO artifact_meta (artifact_id, key, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (artifact_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			id, key, value, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert meta %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// GetMeta returns all metadata for an artifact.
func (c *Catalog) GetMeta(kind artifact.Kind, name string) (artifact.Meta, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	id, err := c.artifactID(kind, name)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.Query(`SELECT key, value FROM artifact_meta WHERE artifact_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get meta: %w", err)
	}
	defer rows.Close()

	meta := artifact.Meta{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// DeleteMetaKey removes a single metadata key from an artifact.
func (c *Catalog) DeleteMetaKey(kind artifact.Kind, name, key string) error {
	if err := c.ready(); err != nil {
		return err
	}

	id, err := c.artifactID(kind, name)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`DELETE FROM artifact_meta WHERE artifact_id = ? AND key = ?`, id, key)
	if err != nil {
		return fmt.Errorf("failed to delete meta %q: %w", key, err)
	}
	return nil
}
