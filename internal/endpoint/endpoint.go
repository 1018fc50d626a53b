// Package endpoint implements the Endpoint artifact: a deployed model
// reachable over the /invocations HTTP contract, with chunked inference,
// retry on cold starts, and error row isolation.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sageworks-ml/sageworks/internal/artifact"
	"github.com/sageworks-ml/sageworks/internal/catalog"
	"github.com/sageworks-ml/sageworks/internal/featureset"
	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/model"
	"github.com/sageworks-ml/sageworks/internal/platform"
)

// Metadata keys specific to endpoints.
const (
	MetaEndpointURL           = "sageworks_endpoint_url"
	MetaServerless            = "sageworks_serverless"
	MetaServerlessMemory      = "sageworks_serverless_memory"
	MetaServerlessConcurrency = "sageworks_serverless_concurrency"
)

// ExpectedMeta is the metadata a fully onboarded endpoint carries.
var ExpectedMeta = append(artifact.ExpectedMeta, artifact.MetaInput, MetaEndpointURL)

// chunkRows is the number of rows sent per inference request.
const chunkRows = 500

// Cold start retry policy: constant delay, bounded attempts.
const (
	retryDelay    = 2 * time.Second
	retryMax      = 10
	clientTimeout = 60 * time.Second
)

// Capture file names under an endpoint's inference prefix.
const (
	PredictionsFile = "validation_predictions.csv"
	MetricsFile     = "inference_metrics.json"
)

// Endpoint is a handle to a registered endpoint artifact.
type Endpoint struct {
	p      *platform.Platform
	name   string
	client *http.Client
}

// New attaches to an endpoint by name. The name is converted to its
// compliant form.
func New(p *platform.Platform, name string) *Endpoint {
	return &Endpoint{
		p:      p,
		name:   artifact.CompliantName(name, "-", p.Logger),
		client: &http.Client{Timeout: clientTimeout},
	}
}

// Name returns the compliant artifact name.
func (e *Endpoint) Name() string { return e.name }

// Exists reports whether the endpoint is registered.
func (e *Endpoint) Exists() (bool, error) {
	return e.p.Catalog.ArtifactExists(artifact.KindEndpoint, e.name)
}

// Summary returns the generic artifact summary.
func (e *Endpoint) Summary() (artifact.Summary, error) {
	rec, err := e.p.Catalog.GetArtifact(artifact.KindEndpoint, e.name)
	if err != nil {
		return artifact.Summary{}, err
	}
	meta, err := e.p.Catalog.GetMeta(artifact.KindEndpoint, e.name)
	if err != nil {
		return artifact.Summary{}, err
	}
	return artifact.Summarize(rec, meta, ExpectedMeta), nil
}

// ModelName returns the name of the model this endpoint serves.
func (e *Endpoint) ModelName() (string, error) {
	rec, err := e.p.Catalog.GetArtifact(artifact.KindEndpoint, e.name)
	if err != nil {
		return "", err
	}
	return rec.Input, nil
}

// URL returns the endpoint's invocation base URL.
func (e *Endpoint) URL() (string, error) {
	meta, err := e.p.Catalog.GetMeta(artifact.KindEndpoint, e.name)
	if err != nil {
		return "", err
	}
	url := meta[MetaEndpointURL]
	if url == "" {
		return "", fmt.Errorf("endpoint %s has no url", e.name)
	}
	return url, nil
}

// SetURL updates the endpoint's invocation base URL.
func (e *Endpoint) SetURL(url string) error {
	return e.p.Catalog.UpsertMeta(artifact.KindEndpoint, e.name, artifact.Meta{
		MetaEndpointURL: url,
	})
}

// Ping checks the endpoint's health route.
func (e *Endpoint) Ping(ctx context.Context) error {
	url, err := e.URL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/ping", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("endpoint %s unreachable: %w", e.name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint %s unhealthy: %s", e.name, resp.Status)
	}
	return nil
}

// Predict sends the frame through the endpoint in chunks and returns
// the combined results. Rows the endpoint rejects come back with empty
// prediction columns instead of failing the whole frame; the endpoint
// error is isolated to the offending rows by binary splitting.
func (e *Endpoint) Predict(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	url, err := e.URL()
	if err != nil {
		return nil, err
	}

	c := &collector{input: f}
	for start := 0; start < f.NumRows(); start += chunkRows {
		end := start + chunkRows
		if end > f.NumRows() {
			end = f.NumRows()
		}
		if err := e.predictChunk(ctx, url, f.Slice(start, end), c); err != nil {
			return nil, err
		}
	}
	return c.result()
}

// predictChunk runs one chunk, recursively splitting on endpoint errors
// to isolate bad rows. Transport failures abort the whole run.
func (e *Endpoint) predictChunk(ctx context.Context, url string, chunk *frame.Frame, c *collector) error {
	out, err := e.invoke(ctx, url, chunk)
	if err == nil {
		return c.addSuccess(out)
	}
	var endpointErr *invocationError
	if !errors.As(err, &endpointErr) {
		return err
	}

	if chunk.NumRows() == 1 {
		e.p.Logger.Warn("row rejected by endpoint, padding predictions",
			"endpoint", e.name, "error", endpointErr.message)
		c.addFailure(chunk)
		return nil
	}

	e.p.Logger.Warn("endpoint error, splitting chunk to isolate",
		"endpoint", e.name, "rows", chunk.NumRows(), "error", endpointErr.message)
	mid := chunk.NumRows() / 2
	if err := e.predictChunk(ctx, url, chunk.Slice(0, mid), c); err != nil {
		return err
	}
	return e.predictChunk(ctx, url, chunk.Slice(mid, chunk.NumRows()), c)
}

// invocationError is an application-level rejection from the endpoint,
// as opposed to a transport failure.
type invocationError struct {
	status  int
	message string
}

func (e *invocationError) Error() string {
	return fmt.Sprintf("endpoint returned %d: %s", e.status, e.message)
}

// invoke posts one CSV chunk, retrying while the endpoint cold starts.
func (e *Endpoint) invoke(ctx context.Context, url string, chunk *frame.Frame) (*frame.Frame, error) {
	var payload bytes.Buffer
	if err := chunk.ToCSV(&payload); err != nil {
		return nil, err
	}

	var result *frame.Frame
	backoff := retry.WithMaxRetries(retryMax, retry.NewConstant(retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/invocations",
			bytes.NewReader(payload.Bytes()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "text/csv")

		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("endpoint %s unreachable: %w", e.name, err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			f, err := frame.FromCSV(bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to parse endpoint response: %w", err)
			}
			f.ConvertNumeric()
			result = f
			return nil
		case resp.StatusCode == http.StatusServiceUnavailable:
			// Cold start, the endpoint is loading its model. Not an
			// invocationError: a 503 that never resolves should abort
			// the run rather than trigger row isolation.
			e.p.Logger.Info("endpoint cold start, retrying", "endpoint", e.name)
			return retry.RetryableError(fmt.Errorf("endpoint %s is cold starting: %s",
				e.name, strings.TrimSpace(string(body))))
		default:
			return &invocationError{
				status:  resp.StatusCode,
				message: strings.TrimSpace(string(body)),
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// collector accumulates chunk results in row order, padding failed rows
// once the output shape is known.
type collector struct {
	input    *frame.Frame
	columns  []string
	rows     [][]any
	failures []int // indexes into rows holding unpadded input rows
}

func (c *collector) addSuccess(out *frame.Frame) error {
	if c.columns == nil {
		c.columns = out.Columns
	} else if len(c.columns) != len(out.Columns) {
		return fmt.Errorf("endpoint returned inconsistent columns")
	}
	c.rows = append(c.rows, out.Rows...)
	return nil
}

func (c *collector) addFailure(chunk *frame.Frame) {
	for _, row := range chunk.Rows {
		c.failures = append(c.failures, len(c.rows))
		c.rows = append(c.rows, row)
	}
}

func (c *collector) result() (*frame.Frame, error) {
	if c.columns == nil {
		// Nothing succeeded; shape the output as input plus prediction.
		c.columns = append(append([]string{}, c.input.Columns...), "prediction")
	}
	for _, idx := range c.failures {
		row := c.rows[idx]
		padded := make([]any, len(c.columns))
		copy(padded, row)
		c.rows[idx] = padded
	}
	out := frame.New(c.columns...)
	for _, row := range c.rows {
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InferenceResult bundles the predictions and computed metrics of one
// inference run.
type InferenceResult struct {
	RunID       string
	Predictions *frame.Frame
	Labels      []string
	Metrics     []model.Metrics
	Confusion   map[string]map[string]int
}

// Inference runs the evaluation frame through the endpoint, computes
// performance metrics against the model's target column, and captures
// the results to the artifact bucket.
func (e *Endpoint) Inference(ctx context.Context, eval *frame.Frame, captureName string) (*InferenceResult, error) {
	modelName, err := e.ModelName()
	if err != nil {
		return nil, err
	}
	m := model.New(e.p, modelName)
	modelType, err := m.Type()
	if err != nil {
		return nil, err
	}
	target, err := m.Target()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	predictions, err := e.Predict(ctx, eval)
	if err != nil {
		return nil, err
	}

	result := &InferenceResult{RunID: captureName, Predictions: predictions}
	switch modelType {
	case model.Classifier:
		if err := e.classifierMetrics(predictions, target, result); err != nil {
			return nil, err
		}
	case model.Regressor, model.QuantileRegressor:
		actual, predicted, err := framePairs(predictions, target)
		if err != nil {
			return nil, err
		}
		metrics, err := RegressionMetrics(actual, predicted)
		if err != nil {
			return nil, err
		}
		result.Metrics = []model.Metrics{metrics}
	default:
		e.p.Logger.Warn("no metrics defined for model type", "model_type", modelType)
	}

	if err := e.capture(ctx, result, start, time.Since(start)); err != nil {
		return nil, err
	}
	if result.Metrics != nil {
		if err := m.SetInferenceMetrics(result.Metrics, result.Confusion); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (e *Endpoint) classifierMetrics(predictions *frame.Frame, target string, result *InferenceResult) error {
	actual, err := predictions.StringColumn(target)
	if err != nil {
		return err
	}
	predicted, err := predictions.StringColumn("prediction")
	if err != nil {
		return err
	}

	probabilities := make(map[string][]float64)
	for _, col := range predictions.Columns {
		class, ok := strings.CutSuffix(col, "_proba")
		if !ok {
			continue
		}
		probs, err := predictions.Float64Column(col)
		if err != nil {
			return err
		}
		probabilities[class] = probs
	}

	labels, metrics, err := ClassificationMetrics(actual, predicted, probabilities)
	if err != nil {
		return err
	}
	result.Labels = labels
	result.Metrics = metrics
	result.Confusion = ConfusionMatrix(actual, predicted)
	return nil
}

// AutoInference evaluates the endpoint on its own feature set's holdout
// rows. An empty captureName records the run as "auto_inference".
func (e *Endpoint) AutoInference(ctx context.Context, captureName string) (*InferenceResult, error) {
	if captureName == "" {
		captureName = "auto_inference"
	}
	modelName, err := e.ModelName()
	if err != nil {
		return nil, err
	}
	m := model.New(e.p, modelName)
	rec, err := e.p.Catalog.GetArtifact(artifact.KindModel, m.Name())
	if err != nil {
		return nil, err
	}

	fs := featureset.New(e.p, rec.Input)
	_, holdout, err := fs.TrainingSplit(ctx)
	if err != nil {
		return nil, err
	}
	if holdout.NumRows() == 0 {
		return nil, fmt.Errorf("feature set %s has no holdout rows", fs.Name())
	}
	return e.Inference(ctx, holdout, captureName)
}

// capture writes the predictions and metrics to the endpoint's
// inference prefix and records the run in the catalog.
func (e *Endpoint) capture(ctx context.Context, result *InferenceResult, start time.Time, took time.Duration) error {
	if result.RunID == "" {
		result.RunID = start.UTC().Format("20060102-150405")
	}

	var csvBuf bytes.Buffer
	if err := result.Predictions.ToCSV(&csvBuf); err != nil {
		return err
	}
	predKey := e.p.Layout.EndpointInferenceKey(e.name, result.RunID, PredictionsFile)
	if err := e.p.Store.PutObject(ctx, e.p.Bucket, predKey, csvBuf.Bytes()); err != nil {
		return fmt.Errorf("failed to capture predictions: %w", err)
	}

	if result.Metrics != nil {
		encoded, err := json.MarshalIndent(result.Metrics, "", "  ")
		if err != nil {
			return err
		}
		metricsKey := e.p.Layout.EndpointInferenceKey(e.name, result.RunID, MetricsFile)
		if err := e.p.Store.PutObject(ctx, e.p.Bucket, metricsKey, encoded); err != nil {
			return fmt.Errorf("failed to capture metrics: %w", err)
		}
	}

	return e.p.Catalog.RecordInference(&catalog.InferenceRun{
		Endpoint:   e.name,
		CaptureKey: predKey,
		Rows:       int64(result.Predictions.NumRows()),
		StartedAt:  start,
		Duration:   took,
	})
}

// Delete removes the endpoint: its bucket objects, its model
// registration, and its catalog entry.
func (e *Endpoint) Delete(ctx context.Context) error {
	if err := e.p.Store.RemovePrefix(ctx, e.p.Bucket, e.p.Layout.EndpointPrefix(e.name)); err != nil {
		return fmt.Errorf("failed to remove endpoint objects: %w", err)
	}
	if err := e.p.Catalog.UnregisterEndpoint(e.name); err != nil {
		return err
	}
	if err := e.p.Catalog.DeleteArtifact(artifact.KindEndpoint, e.name); err != nil {
		return err
	}
	e.p.Logger.Info("endpoint deleted", "name", e.name)
	return nil
}
