package catalog

import (
	"database/sql"
	"fmt"
	"strings"
)

// Parameter is a named value in the parameter store. Compressed parameters
// hold a base64 blob; the paramstore package owns the encoding.
type Parameter struct {
	Name       string
	Value      string
	Compressed bool
}

// SetParameter inserts or overwrites a parameter.
func (c *Catalog) SetParameter(p *Parameter) error {
	if err := c.ready(); err != nil {
		return err
	}

	_, err := c.db.Exec(
		`INSERT INTO parameters (name, value, compressed, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value, compressed = excluded.compressed,
		 updated_at = excluded.updated_at`,
		p.Name, p.Value, p.Compressed, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set parameter %q: %w", p.Name, err)
	}
	return nil
}

// GetParameter retrieves a parameter by exact name.
func (c *Catalog) GetParameter(name string) (*Parameter, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	p := &Parameter{Name: name}
	err := c.db.QueryRow(
		`SELECT value, compressed FROM parameters WHERE name = ?`, name,
	).Scan(&p.Value, &p.Compressed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter %q: %w", name, err)
	}
	return p, nil
}

// ListParameters returns the names of all parameters under a prefix.
func (c *Catalog) ListParameters(prefix string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	pattern := strings.ReplaceAll(strings.ReplaceAll(prefix, "%", `\%`), "_", `\_`) + "%"
	rows, err := c.db.Query(
		`SELECT name FROM parameters WHERE name LIKE ? ESCAPE '\' ORDER BY name`, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list parameters: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// DeleteParameter removes a parameter.
func (c *Catalog) DeleteParameter(name string) error {
	if err := c.ready(); err != nil {
		return err
	}

	res, err := c.db.Exec(`DELETE FROM parameters WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete parameter %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
