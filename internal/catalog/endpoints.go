package catalog

import (
	"fmt"
	"time"
)

// InferenceRun records one inference request served by an endpoint.
type InferenceRun struct {
	ID         string
	Endpoint   string
	CaptureKey string
	Rows       int64
	StartedAt  time.Time
	Duration   time.Duration
}

// RegisterEndpoint associates an endpoint with a model. Registering the
// same pair twice is a no-op.
func (c *Catalog) RegisterEndpoint(modelName, endpointName string) error {
	if err := c.ready(); err != nil {
		return err
	}

	_, err := c.db.Exec(
		`INSERT INTO model_endpoints (model_name, endpoint_name, registered_at) VALUES (?, ?, ?)
		 ON CONFLICT (model_name, endpoint_name) DO NOTHING`,
		modelName, endpointName, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to register endpoint: %w", err)
	}
	return nil
}

// EndpointsForModel lists the endpoints registered against a model.
func (c *Catalog) EndpointsForModel(modelName string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	rows, err := c.db.Query(
		`SELECT endpoint_name FROM model_endpoints WHERE model_name = ? ORDER BY registered_at`,
		modelName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// UnregisterEndpoint removes an endpoint from all models.
func (c *Catalog) UnregisterEndpoint(endpointName string) error {
	if err := c.ready(); err != nil {
		return err
	}
	_, err := c.db.Exec(`DELETE FROM model_endpoints WHERE endpoint_name = ?`, endpointName)
	if err != nil {
		return fmt.Errorf("failed to unregister endpoint: %w", err)
	}
	return nil
}

// RecordInference stores an inference run row.
func (c *Catalog) RecordInference(run *InferenceRun) error {
	if err := c.ready(); err != nil {
		return err
	}

	if run.ID == "" {
		run.ID = generateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = nowUTC()
	}
	_, err := c.db.Exec(
		`INSERT INTO inference_runs (id, endpoint_name, capture_key, rows, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Endpoint, run.CaptureKey, run.Rows, run.StartedAt, run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record inference: %w", err)
	}
	return nil
}

// ListInferenceRuns returns the inference history for an endpoint, most
// recent first.
func (c *Catalog) ListInferenceRuns(endpointName string) ([]*InferenceRun, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	rows, err := c.db.Query(
		`SELECT id, endpoint_name, capture_key, rows, started_at, duration_ms
		 FROM inference_runs WHERE endpoint_name = ? ORDER BY started_at DESC`,
		endpointName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list inference runs: %w", err)
	}
	defer rows.Close()

	var runs []*InferenceRun
	for rows.Next() {
		run := &InferenceRun{}
		var durationMS int64
		if err := rows.Scan(&run.ID, &run.Endpoint, &run.CaptureKey, &run.Rows, &run.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan inference run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
